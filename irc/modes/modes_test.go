package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nero-services/nero/irc/state"
)

func TestApplyUserModesSetsStampedAccountAndFakeHost(t *testing.T) {
	user := state.NewUser([]byte("nick"), []byte("ident"), []byte("host"), nil)

	ApplyUserModes(user, []byte("+owgrh blindsight someu@someh"))

	assert.NotZero(t, user.Modes&UserStamped)
	assert.NotZero(t, user.Modes&UserOper)
	assert.NotZero(t, user.Modes&UserGlobal)
	assert.Zero(t, user.Modes&UserHiddenHost)
	assert.Equal(t, "blindsight", string(user.Account))
	assert.Equal(t, "someu", string(user.FakeIdent))
	assert.Equal(t, "someh", string(user.FakeHost))

	ApplyUserModes(user, []byte("+x"))

	assert.NotZero(t, user.Modes&UserHiddenHost)
	// Already-set bits from the first mode string survive.
	assert.NotZero(t, user.Modes&UserStamped)
	assert.NotZero(t, user.Modes&UserOper)
	assert.NotZero(t, user.Modes&UserGlobal)
}

func TestApplyChannelModesLimitAndTrailingFlags(t *testing.T) {
	channel := state.NewChannel([]byte("#room"), 0)

	ApplyChannelModes(channel, splitWords("+ntl 34"))

	assert.Equal(t, ChanLimit|ChanNoPrivmsgs|ChanTopicLimit, channel.Modes)
	assert.EqualValues(t, 34, channel.Limit)
}

func TestApplyChannelModesKeyAndUpass(t *testing.T) {
	channel := state.NewChannel([]byte("#room"), 0)
	assert.Zero(t, channel.Modes)

	ApplyChannelModes(channel, splitWords("+kU THAKEY userpass"))

	assert.Equal(t, "THAKEY", string(channel.Key))
	assert.Equal(t, "userpass", string(channel.UPass))
	assert.Equal(t, ChanKey|ChanUpass, channel.Modes)
}

func TestApplyChannelModeEveryLetter(t *testing.T) {
	channel := state.NewChannel([]byte("#room"), 0)

	cases := []struct {
		letter byte
		bit    uint64
	}{
		{'p', ChanPrivate},
		{'s', ChanSecret},
		{'m', ChanModerated},
		{'t', ChanTopicLimit},
		{'i', ChanInviteOnly},
		{'n', ChanNoPrivmsgs},
		{'k', ChanKey},
		{'b', ChanBan},
		{'l', ChanLimit},
		{'D', ChanDelayJoins},
		{'r', ChanRegOnly},
		{'c', ChanNoColors},
		{'C', ChanNoCtcps},
		{'z', ChanRegistered},
		{'A', ChanApass},
		{'U', ChanUpass},
	}

	for _, c := range cases {
		assert.Zero(t, channel.Modes&c.bit, "letter %c", c.letter)
		ApplyChannelMode(channel, true, c.letter)
		assert.NotZero(t, channel.Modes&c.bit, "letter %c", c.letter)
	}
}

func TestApplyChannelModeClearsBitOnRemove(t *testing.T) {
	channel := state.NewChannel([]byte("#room"), 0)
	ApplyChannelMode(channel, true, 'p')
	ApplyChannelMode(channel, true, 's')
	assert.Equal(t, ChanPrivate|ChanSecret, channel.Modes)

	ApplyChannelMode(channel, false, 'p')

	// The corrected behavior (spec §9): removing a mode clears only its
	// own bit, leaving the others untouched.
	assert.Zero(t, channel.Modes&ChanPrivate)
	assert.NotZero(t, channel.Modes&ChanSecret)
}

func TestBuildChannelModeStringRoundTrips(t *testing.T) {
	channel := state.NewChannel([]byte("#room"), 0)
	ApplyChannelModes(channel, splitWords("+ntl 34"))

	out := BuildChannelModeString(channel)
	// Letters render in channelLetters table order (t, n, l), not the
	// order they appeared in the input mode string.
	assert.Equal(t, "tnl 34", out)
}

// splitWords is a tiny test helper turning a "+abc arg1 arg2" string into
// the [][]byte token slice ApplyChannelModes expects, mirroring how the
// burst/command layer would have already tokenized it off the wire.
func splitWords(s string) [][]byte {
	var out [][]byte
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ' ' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			out = append(out, []byte(s[start:i]))
			start = -1
		}
	}
	return out
}
