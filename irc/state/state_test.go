package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nero-services/nero/irc/state"
)

func newTestNetwork() *state.Network {
	me := state.NewServer("AA", []byte("irc.example.org"), []byte("test server"))
	return state.New(me)
}

func TestPhaseIsMonotone(t *testing.T) {
	n := newTestNetwork()
	assert.Equal(t, state.Connecting, n.Phase)

	n.SetPhase(state.Bursting)
	assert.Equal(t, state.Bursting, n.Phase)

	n.SetPhase(state.Connecting)
	assert.Equal(t, state.Bursting, n.Phase, "phase must never move backwards")

	n.SetPhase(state.Connected)
	assert.Equal(t, state.Connected, n.Phase)

	n.SetPhase(state.Quitting)
	assert.Equal(t, state.Quitting, n.Phase)
}

func TestAddUserIsIndexedGloballyAndPerServer(t *testing.T) {
	n := newTestNetwork()
	uplink := state.NewServer("AB", []byte("uplink.example.org"), []byte("uplink"))
	n.AddServer(uplink)

	user := state.NewUser([]byte("Nero"), []byte("nero"), []byte("host.example.org"), uplink)
	user.Numnick = "ABAAA"
	n.AddUser(user)

	found := n.FindUserNumeric([]byte("ABAAA"))
	require.NotNil(t, found)
	assert.Same(t, user, found)

	require.Len(t, uplink.Users, 1)
	assert.Same(t, user, uplink.Users[0])
}

func TestRemoveUserClearsBothIndexes(t *testing.T) {
	n := newTestNetwork()
	uplink := state.NewServer("AB", []byte("uplink.example.org"), []byte("uplink"))
	n.AddServer(uplink)

	user := state.NewUser([]byte("Nero"), []byte("nero"), []byte("host.example.org"), uplink)
	user.Numnick = "ABAAA"
	n.AddUser(user)

	assert.True(t, n.RemoveUser([]byte("ABAAA")))
	assert.Nil(t, n.FindUserNumeric([]byte("ABAAA")))
	assert.Empty(t, uplink.Users)

	assert.False(t, n.RemoveUser([]byte("ABAAA")), "removing an already-gone numeric reports false, not an error")
}

func TestFindUserNickIsCaseInsensitive(t *testing.T) {
	n := newTestNetwork()
	uplink := state.NewServer("AB", []byte("uplink.example.org"), []byte("uplink"))
	n.AddServer(uplink)

	user := state.NewUser([]byte("Nero"), []byte("nero"), []byte("host.example.org"), uplink)
	user.Numnick = "ABAAA"
	n.AddUser(user)

	assert.Same(t, user, n.FindUserNick([]byte("nero")))
	assert.Same(t, user, n.FindUserNick([]byte("NERO")))
	assert.Nil(t, n.FindUserNick([]byte("somebodyelse")))
}

func TestFindChannelIsCaseFolded(t *testing.T) {
	n := newTestNetwork()
	ch := state.NewChannel([]byte("#Nero"), 1000)
	n.AddChannel(ch)

	assert.Same(t, ch, n.FindChannel([]byte("#nero")))
	assert.Same(t, ch, n.FindChannel([]byte("#NERO")))
}

func TestFirstMemberOfFreshChannelGetsAutoChanop(t *testing.T) {
	n := newTestNetwork()
	ch := state.NewChannel([]byte("#nero"), 1000)
	n.AddChannel(ch)

	uplink := state.NewServer("AB", []byte("uplink.example.org"), []byte("uplink"))
	n.AddServer(uplink)
	first := state.NewUser([]byte("First"), []byte("first"), []byte("host"), uplink)
	first.Numnick = "ABAAA"
	n.AddUser(first)

	second := state.NewUser([]byte("Second"), []byte("second"), []byte("host"), uplink)
	second.Numnick = "ABAAB"
	n.AddUser(second)

	m1 := n.AddMember(ch, first)
	assert.NotZero(t, m1.Modes&state.MemberChanop, "the first member of an empty, unregistered channel is auto-opped")

	m2 := n.AddMember(ch, second)
	assert.Zero(t, m2.Modes&state.MemberChanop, "later joiners are not auto-opped")
}

func TestAutoChanopSkippedForRegisteredOrApassChannel(t *testing.T) {
	n := newTestNetwork()
	ch := state.NewChannel([]byte("#nero"), 1000)
	ch.Modes |= 1 << 13 // registered bit; mirrors modes.ChanRegistered without importing the modes package
	n.AddChannel(ch)

	uplink := state.NewServer("AB", []byte("uplink.example.org"), []byte("uplink"))
	n.AddServer(uplink)
	user := state.NewUser([]byte("First"), []byte("first"), []byte("host"), uplink)
	user.Numnick = "ABAAA"
	n.AddUser(user)

	m := n.AddMember(ch, user)
	assert.Zero(t, m.Modes&state.MemberChanop, "a registered channel never auto-ops its first joiner")
}

func TestUnburstedChannelTrackingIsIdempotent(t *testing.T) {
	n := newTestNetwork()
	name := []byte("#nero")

	assert.False(t, n.IsUnbursted(name))
	n.MarkUnbursted(name)
	n.MarkUnbursted(name)
	assert.True(t, n.IsUnbursted(name))

	n.ClearUnbursted(name)
	assert.False(t, n.IsUnbursted(name))
}

func TestFindServerFromUserNumericTruncatesToServerPrefix(t *testing.T) {
	n := newTestNetwork()
	uplink := state.NewServer("AB", []byte("uplink.example.org"), []byte("uplink"))
	n.AddServer(uplink)

	assert.Same(t, uplink, n.FindServerFromUserNumeric([]byte("ABAAA")))
	assert.Nil(t, n.FindServerFromUserNumeric([]byte("A")))
}

func TestRemoveBanRemovesFirstMatchOnly(t *testing.T) {
	ch := state.NewChannel([]byte("#nero"), 1000)
	ch.Bans = [][]byte{[]byte("*!*@a.example.org"), []byte("*!*@b.example.org")}

	ch.RemoveBan([]byte("*!*@a.example.org"))
	require.Len(t, ch.Bans, 1)
	assert.Equal(t, "*!*@b.example.org", string(ch.Bans[0]))
}
