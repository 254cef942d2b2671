// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

// Package state holds the in-memory graph of Servers, Users, Channels
// and channel Memberships that the protocol engine maintains: the
// network state store from spec §3 and §4.7.
//
// Ownership follows the arena-plus-stable-ID redesign from spec §9
// instead of the original Rc<RefCell<>> graph: every entity is keyed by
// a value that the spec already requires to be unique (a server's
// 2-byte numeric prefix, a user's 3-to-5-byte numnick, a channel's
// case-folded name), so those keys double as stable IDs. Back-pointers
// (a User's owning Server, a Membership's Channel and User) are plain
// pointers into the same arena rather than separate lookups, which is
// safe precisely because mutation only ever happens through Network's
// single mutex.
package state

import (
	"bytes"
	"sync"
)

// ServerID is a server's 2-byte P10 numeric prefix.
type ServerID string

// UserID is a user's 3-to-5-byte P10 numnick.
type UserID string

// ChannelID is a channel's ASCII-lowercased name.
type ChannelID string

// Phase is a connection's position in the handshake lifecycle (spec §4.4).
type Phase int

const (
	Connecting Phase = iota
	Bursting
	Connected
	Quitting
)

func (p Phase) String() string {
	switch p {
	case Connecting:
		return "connecting"
	case Bursting:
		return "bursting"
	case Connected:
		return "connected"
	case Quitting:
		return "quitting"
	default:
		return "unknown"
	}
}

// Gline is a network-wide host ban record. GL handling is a no-op per
// spec §4.4, but the record is carried so a future handler, or a plugin,
// has somewhere to persist one.
type Gline struct {
	Issued   uint64
	LastMod  uint64
	Expires  uint64
	Lifetime uint64
	Issuer   []byte
	Target   []byte
	Reason   []byte
}

// Server is a node in the server tree (spec §3 Server).
type Server struct {
	ID           ServerID
	Hostname     []byte
	Description  []byte
	Hops         int8
	Boot         uint64
	LinkTime     uint64
	Uplink       *Server
	Children     []*Server
	Users        []*User
	Glines       []Gline
	SelfBurst    bool
	NumericAccum uint64
}

// User is a single network user (spec §3 User). Numnick is immutable
// once assigned; Nick may change (an `N` nick-change command mutates it
// in place).
type User struct {
	Numnick      UserID
	Nick         []byte
	Ident        []byte
	Host         []byte
	IP           []byte
	Gecos        []byte
	Account      []byte
	AwayMessage  []byte
	Modes        uint64
	FakeIdent    []byte
	FakeHost     []byte
	RegisteredAt uint64
	Server       *Server
}

// Channel is a single network channel (spec §3 Channel).
type Channel struct {
	Name        []byte
	Fold        ChannelID
	Topic       []byte
	TopicNick   []byte
	TopicTime   uint64
	Created     uint64
	Modes       uint64
	Key         []byte
	Limit       uint64
	UPass       []byte
	APass       []byte
	Bans        [][]byte
	DelayedJoin bool
	Members     []*Membership
}

// Membership links a User into a Channel (spec §3 Membership).
type Membership struct {
	User    *User
	Channel *Channel
	Modes   uint64
	OpLevel uint64
	Idle    uint64
}

// Network is the aggregate root: the global graph of servers, users and
// channels, plus the indexes used to look them up (spec §3 NetworkState,
// §4.7 Store lookups). Config, plugins, hooks and the outbound write
// buffer are owned one level up by the protocol engine, not here, so
// this package stays free of a dependency on the config/plugin layers.
type Network struct {
	mu sync.Mutex

	Phase  Phase
	Now    uint64
	Me     *Server
	Uplink *Server

	servers map[ServerID]*Server
	users   map[UserID]*User
	channels map[ChannelID]*Channel

	// UnburstedChannels holds the case-folded names of locally-owned
	// channels that have not yet had their burst emitted (spec §4.5).
	UnburstedChannels []ChannelID
}

// New creates an empty Network, with "me" as the local root server.
func New(me *Server) *Network {
	return &Network{
		Phase:   Connecting,
		Me:      me,
		servers: map[ServerID]*Server{me.ID: me},
		users:   map[UserID]*User{},
		channels: map[ChannelID]*Channel{},
	}
}

// Lock and Unlock expose the single-writable-borrow invariant (spec §5)
// to callers that need to hold it across more than one Network method
// call (the protocol engine, processing one inbound line at a time).
func (n *Network) Lock()   { n.mu.Lock() }
func (n *Network) Unlock() { n.mu.Unlock() }

// SetPhase enforces the monotone Connecting -> Bursting -> Connected ->
// Quitting transition order (spec §3 invariants).
func (n *Network) SetPhase(p Phase) {
	if p >= n.Phase {
		n.Phase = p
	}
}

// Fold lowercases a channel name for case-insensitive ASCII lookup
// (spec §4.7: "a nick lookup is case-insensitive in ASCII").
func Fold(name []byte) ChannelID {
	lowered := make([]byte, len(name))
	for i, b := range name {
		if b >= 'A' && b <= 'Z' {
			b += 'a' - 'A'
		}
		lowered[i] = b
	}
	return ChannelID(lowered)
}

// AddServer registers a server in the global index.
func (n *Network) AddServer(s *Server) {
	n.servers[s.ID] = s
}

// FindServerNumeric looks a server up by its exact 2-byte numeric.
func (n *Network) FindServerNumeric(numeric []byte) *Server {
	return n.servers[ServerID(numeric)]
}

// FindServerFromUserNumeric resolves the owning server of a user numnick
// by truncating to its first 2 bytes.
func (n *Network) FindServerFromUserNumeric(numeric []byte) *Server {
	if len(numeric) < 2 {
		return nil
	}
	return n.FindServerNumeric(numeric[:2])
}

// ServerCount returns the number of known servers.
func (n *Network) ServerCount() int { return len(n.servers) }

// AddUser registers a user in both the global index and its owning
// server's user list (spec §3: "every user in the global list is also
// in exactly one server's user list").
func (n *Network) AddUser(u *User) {
	n.users[u.Numnick] = u
	if u.Server != nil {
		u.Server.Users = append(u.Server.Users, u)
	}
}

// RemoveUser removes a user from the global index and its owning
// server's user list. Returns false if the numnick was never present.
func (n *Network) RemoveUser(numeric []byte) bool {
	id := UserID(numeric)
	u, ok := n.users[id]
	if !ok {
		return false
	}

	delete(n.users, id)

	if u.Server != nil {
		users := u.Server.Users
		for i, candidate := range users {
			if candidate == u {
				u.Server.Users = append(users[:i], users[i+1:]...)
				break
			}
		}
	}

	return true
}

// FindUserNumeric looks a user up by its exact byte numnick.
func (n *Network) FindUserNumeric(numeric []byte) *User {
	return n.users[UserID(numeric)]
}

// FindUserNick looks a user up by ASCII-case-insensitive nick.
func (n *Network) FindUserNick(nick []byte) *User {
	folded := Fold(nick)
	for _, u := range n.users {
		if Fold(u.Nick) == folded {
			return u
		}
	}
	return nil
}

// UserCount returns the number of known users.
func (n *Network) UserCount() int { return len(n.users) }

// AddChannel registers a channel in the global index.
func (n *Network) AddChannel(c *Channel) {
	n.channels[c.Fold] = c
}

// FindChannel looks a channel up by case-folded name.
func (n *Network) FindChannel(name []byte) *Channel {
	return n.channels[Fold(name)]
}

// ChannelCount returns the number of known channels.
func (n *Network) ChannelCount() int { return len(n.channels) }

// AllChannels returns every known channel, in no particular order.
func (n *Network) AllChannels() []*Channel {
	out := make([]*Channel, 0, len(n.channels))
	for _, c := range n.channels {
		out = append(out, c)
	}
	return out
}

// MarkUnbursted appends name to the unbursted-channel list if it is not
// already present.
func (n *Network) MarkUnbursted(name []byte) {
	id := Fold(name)
	for _, existing := range n.UnburstedChannels {
		if existing == id {
			return
		}
	}
	n.UnburstedChannels = append(n.UnburstedChannels, id)
}

// IsUnbursted reports whether name is still pending its local burst.
func (n *Network) IsUnbursted(name []byte) bool {
	id := Fold(name)
	for _, existing := range n.UnburstedChannels {
		if existing == id {
			return true
		}
	}
	return false
}

// ClearUnbursted removes name from the pending-burst list.
func (n *Network) ClearUnbursted(name []byte) {
	id := Fold(name)
	for i, existing := range n.UnburstedChannels {
		if existing == id {
			n.UnburstedChannels = append(n.UnburstedChannels[:i], n.UnburstedChannels[i+1:]...)
			return
		}
	}
}

// AddMember appends user as a member of channel, in join order, and
// grants automatic chanop to the first member of a previously empty,
// non-registered, non-APASS channel (spec §3 invariant).
func (n *Network) AddMember(channel *Channel, user *User) *Membership {
	m := &Membership{User: user, Channel: channel, Idle: n.Now}

	if len(channel.Members) == 0 && !channelRegisteredOrApass(channel) {
		m.Modes |= MemberChanop
	}

	channel.Members = append(channel.Members, m)
	return m
}

// These mirror modes.ChanRegistered, modes.ChanApass and
// modes.MemberChanop without importing the modes package, to keep state
// free of a dependency on mode-bit definitions beyond the bits this
// invariant needs.
const (
	channelModeRegistered = 1 << 13
	channelModeApass      = 1 << 14
	MemberChanop          = 1 << 0
)

func channelRegisteredOrApass(c *Channel) bool {
	return c.Modes&channelModeRegistered != 0 || c.Modes&channelModeApass != 0
}

// FindMember finds a channel's membership record for a user, if any.
func (c *Channel) FindMember(user *User) *Membership {
	for _, m := range c.Members {
		if m.User == user {
			return m
		}
	}
	return nil
}

// RemoveBan removes the first ban matching mask, if present.
func (c *Channel) RemoveBan(mask []byte) {
	for i, ban := range c.Bans {
		if bytes.Equal(ban, mask) {
			c.Bans = append(c.Bans[:i], c.Bans[i+1:]...)
			return
		}
	}
}

// NewChannel creates a Channel with the given name and creation time,
// with its case-folded lookup key pre-computed.
func NewChannel(name []byte, created uint64) *Channel {
	return &Channel{
		Name:    append([]byte{}, name...),
		Fold:    Fold(name),
		Created: created,
	}
}

// NewUser creates a User owned by uplink.
func NewUser(nick, ident, host []byte, uplink *Server) *User {
	return &User{
		Nick:   append([]byte{}, nick...),
		Ident:  append([]byte{}, ident...),
		Host:   append([]byte{}, host...),
		Server: uplink,
	}
}

// NewServer creates a Server with the given hostname and description.
func NewServer(id ServerID, hostname, description []byte) *Server {
	return &Server{
		ID:          id,
		Hostname:    append([]byte{}, hostname...),
		Description: append([]byte{}, description...),
		SelfBurst:   true,
	}
}
