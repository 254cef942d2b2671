// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

// Package plugin defines the in-process plugin ABI: the hook
// vocabulary a loaded shared object can subscribe to, the API surface
// it's handed back, and the dispatcher that fires hooks as protocol
// events occur (spec §4.6, §6 plugin ABI).
package plugin

import (
	"fmt"
	"plugin"

	"github.com/google/uuid"

	"github.com/nero-services/nero/irc/state"
)

// Magic is the value a plugin .so must export (as a string variable
// named PLUGIN_MAGIC) for LoadPlugin to accept it.
const Magic = "WAFFLE"

// HookType identifies the event a registered hook fires on.
type HookType int

const (
	UserConnected HookType = iota
	UserQuit
	ServerBursting
	ServerEndOfBurst
	ServerSplit
	PrivmsgChan
	PrivmsgBot
	NoticeChan
	NoticeBot
)

func (h HookType) String() string {
	switch h {
	case UserConnected:
		return "user-connected"
	case UserQuit:
		return "user-quit"
	case ServerBursting:
		return "server-bursting"
	case ServerEndOfBurst:
		return "server-end-of-burst"
	case ServerSplit:
		return "server-split"
	case PrivmsgChan:
		return "privmsg-chan"
	case PrivmsgBot:
		return "privmsg-bot"
	case NoticeChan:
		return "notice-chan"
	case NoticeBot:
		return "notice-bot"
	default:
		return "unknown"
	}
}

// HookData carries the context a fired hook receives. Not every field
// is populated for every HookType: for UserConnected and UserQuit,
// Server is the user's server and Target the user's nick (UserQuit also
// sets Message to the quit message); for text-message hooks, Origin is
// the sender's nick, Target the channel or target user, and Message the
// text.
type HookData struct {
	Type    HookType
	Server  *state.Server
	Origin  []byte
	Target  []byte
	Message []byte
	Argv    [][]byte
}

// Bot is a plugin-registered pseudo-user that the engine introduces
// onto the network during the local burst (spec §4.6).
type Bot struct {
	Nick     string
	Ident    string
	Hostname string
	Gecos    string
	Channels []BotChannel
}

// BotChannel is a channel a Bot should be placed into at burst time,
// along with the channel and member modes it should carry.
type BotChannel struct {
	Name      string
	ChanModes string
	UserModes string
}

// HookFunc is the signature a registered hook handler implements. It
// may return additional raw wire lines for the engine to enqueue.
type HookFunc func(api API, p Plugin, data *HookData) ([][]byte, error)

// Event pairs a HookType with the handler a plugin wants invoked for it.
type Event struct {
	Type HookType
	Func HookFunc
}

// Plugin is the interface every loaded shared object's exported type
// implements (spec §4.6).
type Plugin interface {
	Name() string
	Description() string
	RegisterHooks() []Event
	RegisterBots() []Bot
}

// API is the surface a hook handler is given to act back on the
// network: nick/numeric lookups and outbound message sends (spec §4.6).
type API interface {
	GetUserByNick(nick []byte) *state.User
	GetUserByNumeric(numeric []byte) *state.User
	SendPrivmsg(source *state.User, target []byte, message []byte)
	SendNotice(source *state.User, target []byte, message []byte)
	SendTextMessage(source *state.User, target []byte, message []byte, isPrivmsg bool)
	SendPrivmsgRawTarget(source *state.User, target []byte, message []byte)
	// Enqueue queues a raw wire line built by a hook handler directly,
	// for callers that need more than the Send* helpers express.
	Enqueue(line []byte)
}

// Handle identifies a loaded plugin for hook-to-owner resolution,
// replacing the original's raw `*const Plugin` pointer-identity
// comparison (spec §9 redesign note): a *Plugin interface value doesn't
// have stable pointer identity once copied across call boundaries in
// Go, and comparing interface values directly would compare the
// underlying concrete type's equality semantics instead. A random
// Handle per load sidesteps both.
type Handle uuid.UUID

func newHandle() Handle {
	return Handle(uuid.New())
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// InitFunc is the signature a plugin's exported `nero_initialize`
// symbol must have.
type InitFunc func() (Plugin, error)

// LoadedPlugin is a plugin shared object opened via the stdlib plugin
// package — the direct Go analog of the original's libloading-based
// dynamic load: both resolve exported symbols from a shared object at
// runtime by name.
type LoadedPlugin struct {
	Handle Handle
	Plugin Plugin
	path   string
}

// LoadPlugin opens the .so at path, validates its PLUGIN_MAGIC symbol,
// and calls its nero_initialize entry point.
func LoadPlugin(path string) (*LoadedPlugin, error) {
	lib, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: open %s: %w", path, err)
	}

	magicSym, err := lib.Lookup("PLUGIN_MAGIC")
	if err != nil {
		return nil, fmt.Errorf("plugin: %s missing PLUGIN_MAGIC: %w", path, err)
	}
	magicPtr, ok := magicSym.(*string)
	if !ok {
		return nil, fmt.Errorf("plugin: %s PLUGIN_MAGIC has the wrong type", path)
	}
	if *magicPtr != Magic {
		return nil, fmt.Errorf("plugin: %s has invalid magic: expected %s, got %s", path, Magic, *magicPtr)
	}

	initSym, err := lib.Lookup("nero_initialize")
	if err != nil {
		return nil, fmt.Errorf("plugin: %s missing nero_initialize: %w", path, err)
	}
	initFunc, ok := initSym.(func() (Plugin, error))
	if !ok {
		return nil, fmt.Errorf("plugin: %s nero_initialize has the wrong signature", path)
	}

	instance, err := initFunc()
	if err != nil {
		return nil, fmt.Errorf("plugin: %s initializer failed: %w", path, err)
	}

	return &LoadedPlugin{
		Handle: newHandle(),
		Plugin: instance,
		path:   path,
	}, nil
}
