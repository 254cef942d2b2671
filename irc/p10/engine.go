// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

// Package p10 implements the IRCu P10 server-to-server protocol state
// machine: handshake, command dispatch, and burst generation (spec §4.4,
// §4.5).
package p10

import (
	"fmt"

	"github.com/nero-services/nero/irc/config"
	"github.com/nero-services/nero/irc/logger"
	"github.com/nero-services/nero/irc/plugin"
	"github.com/nero-services/nero/irc/state"
	"github.com/nero-services/nero/irc/wire"
)

// Engine drives one uplink connection's protocol state: it owns the
// network state store, the outbound wire-line queue, and the plugin
// dispatcher, and turns inbound lines into state mutations plus
// outbound lines.
type Engine struct {
	Network *state.Network
	Log     *logger.Manager
	Plugins *plugin.Dispatcher
	Cfg     config.Uplink

	// Now returns the current time as a P10 timestamp. It's injectable
	// (rather than calling time.Now directly) so tests can drive the
	// clock deterministically (spec §9: "now should be refreshed at the
	// start of each inbound line, ideally via an injectable clock").
	Now func() uint64

	outbound [][]byte
}

// New builds an Engine for a not-yet-connected uplink. me is this
// daemon's own server identity, keyed by the numeric configured for
// this link.
func New(cfg config.Uplink, log *logger.Manager, dispatcher *plugin.Dispatcher, now func() uint64) *Engine {
	me := state.NewServer(state.ServerID(cfg.Numeric), []byte(cfg.Hostname), []byte(cfg.Description))
	return &Engine{
		Network: state.New(me),
		Log:     log,
		Plugins: dispatcher,
		Cfg:     cfg,
		Now:     now,
	}
}

// Enqueue appends a raw wire line to the outbound queue. It also
// implements plugin.API's Enqueue method, letting hook handlers push
// lines the higher-level Send* helpers don't express.
func (e *Engine) Enqueue(line []byte) {
	e.outbound = append(e.outbound, line)
}

// Drain returns and clears the outbound queue. The net I/O layer calls
// this after every inbound line has been processed, to flush in order
// (spec §5).
func (e *Engine) Drain() [][]byte {
	out := e.outbound
	e.outbound = nil
	return out
}

// StartHandshake emits the PASS and SERVER lines that open a link,
// moving the network into the Bursting phase (spec §4.4).
func (e *Engine) StartHandshake() {
	if e.Network.Phase != state.Connecting {
		return
	}
	e.Network.SetPhase(state.Bursting)

	epoch := e.Now()
	e.Enqueue([]byte(fmt.Sprintf("PASS :%s", e.Cfg.SendPass)))
	e.Enqueue([]byte(fmt.Sprintf("SERVER %s 1 %d %d J10 %sA]] +s6 :%s",
		e.Cfg.Hostname, epoch, epoch, e.Cfg.Numeric, e.Cfg.Description)))
}

// Process tokenizes and dispatches a single inbound wire line. Parse
// and dispatch failures are logged, never panics (spec §7).
func (e *Engine) Process(line []byte) {
	e.Network.Lock()
	defer e.Network.Unlock()

	e.Network.Now = e.Now()

	haveUplink := e.Network.Uplink != nil
	l, err := wire.ParseLine(line, haveUplink)
	if err != nil {
		e.Log.Error("p10", "truncated line: %s", line)
		return
	}
	if len(l.Command) == 0 {
		return
	}

	full := make([][]byte, 0, len(l.Args)+1)
	full = append(full, l.Command)
	full = append(full, l.Args...)
	argc := len(full)

	var derr error
	switch string(l.Command) {
	case "SERVER", "S":
		derr = e.cmdServer(l.Origin, argc, full)
	case "PASS":
		derr = e.cmdPass(argc, full)
	case "N":
		derr = e.cmdN(l.Origin, argc, full)
	case "Q":
		derr = e.cmdQ(l.Origin, argc, full)
	case "B":
		derr = e.cmdB(argc, full)
	case "T":
		derr = e.cmdT(l.Origin, argc, full)
	case "G":
		derr = e.cmdG(argc, full)
	case "P":
		derr = e.cmdTextMessage(l.Origin, argc, full, true)
	case "O":
		derr = e.cmdTextMessage(l.Origin, argc, full, false)
	case "GL":
		// No-op: G-line propagation is out of scope, but the record
		// shape (state.Gline) is kept on Server for a future handler.
	case "EB":
		derr = e.cmdEB(l.Origin)
	case "EA":
		// No-op.
	default:
		derr = fmt.Errorf("unknown command %q", l.Command)
	}

	if derr != nil {
		e.Log.Error("p10", "parse error on %q: %v", l.Command, derr)
	}
}
