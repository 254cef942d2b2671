// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

// Package modes implements the three independent P10 mode-bit
// vocabularies — user, channel and channel-member — and the engine that
// applies a mode string or a burst's mode tokens to an entity (spec §4.3).
package modes

import (
	"strconv"

	"github.com/nero-services/nero/irc/state"
)

// User mode bits.
const (
	UserOper       uint64 = 1 << 0
	UserInvisible  uint64 = 1 << 1
	UserWallop     uint64 = 1 << 2
	UserDeaf       uint64 = 1 << 3
	UserService    uint64 = 1 << 4
	UserGlobal     uint64 = 1 << 5
	UserNochan     uint64 = 1 << 6
	UserNoidle     uint64 = 1 << 7
	UserHiddenHost uint64 = 1 << 8
	UserStamped    uint64 = 1 << 9
)

// Channel mode bits, in letter order p s m t i n k b l D r c C z A U.
const (
	ChanPrivate    uint64 = 1 << 0
	ChanSecret     uint64 = 1 << 1
	ChanModerated  uint64 = 1 << 2
	ChanTopicLimit uint64 = 1 << 3
	ChanInviteOnly uint64 = 1 << 4
	ChanNoPrivmsgs uint64 = 1 << 5
	ChanKey        uint64 = 1 << 6
	ChanBan        uint64 = 1 << 7
	ChanLimit      uint64 = 1 << 8
	ChanDelayJoins uint64 = 1 << 9
	ChanRegOnly    uint64 = 1 << 10
	ChanNoColors   uint64 = 1 << 11
	ChanNoCtcps    uint64 = 1 << 12
	ChanRegistered uint64 = 1 << 13
	ChanApass      uint64 = 1 << 14
	ChanUpass      uint64 = 1 << 15
)

// Channel member mode bits.
const (
	MemberChanop uint64 = 1 << 0
	MemberVoice  uint64 = 1 << 1
	MemberHidden uint64 = 1 << 2
)

// channelLetters maps letter position to bit, in the order from spec §6.
var channelLetters = []byte("psmtinkblDrcCzAU")

var channelLetterBit = func() map[byte]uint64 {
	m := make(map[byte]uint64, len(channelLetters))
	for i, c := range channelLetters {
		m[c] = 1 << uint(i)
	}
	return m
}()

// IsArgConsumingLetter reports whether letter is one of the channel
// mode letters that consumes one positional token when set: key,
// limit, apass, upass (spec §4.3).
func IsArgConsumingLetter(letter byte) bool {
	switch letter {
	case 'k', 'l', 'A', 'U':
		return true
	default:
		return false
	}
}

// ApplyUserModes parses a user mode string (e.g. "+owgrh blindsight
// someu@someh") and mutates user in place. Unknown letters are ignored,
// not fatal (spec §4.3, §7).
//
// 'r' and 'h' are special: they don't carry their argument inline like
// channel modes do. Instead, a single cursor into the trailing words
// after the letter run is shared between every 'r'/'h' encountered,
// and advances past one word each time — so in "+rh tag host", 'r'
// consumes "tag" and 'h' consumes "host", in the order the letters
// appear in the run, regardless of how many other letters sit between
// them.
func ApplyUserModes(user *state.User, modes []byte) {
	runEnd := 0
	for runEnd < len(modes) && modes[runEnd] != ' ' {
		runEnd++
	}

	wordptr := runEnd
	for wordptr < len(modes) && modes[wordptr] == ' ' {
		wordptr++
	}

	adding := true
	for i := 0; i < runEnd; i++ {
		switch modes[i] {
		case '+':
			adding = true
		case '-':
			adding = false
		case 'o':
			setUserBit(user, adding, UserOper)
		case 'i':
			setUserBit(user, adding, UserInvisible)
		case 'w':
			setUserBit(user, adding, UserWallop)
		case 'd':
			setUserBit(user, adding, UserDeaf)
		case 'k':
			setUserBit(user, adding, UserService)
		case 'g':
			setUserBit(user, adding, UserGlobal)
		case 'n':
			setUserBit(user, adding, UserNochan)
		case 'I':
			setUserBit(user, adding, UserNoidle)
		case 'x':
			setUserBit(user, adding, UserHiddenHost)
		case 'r':
			wordptr = applyAccountStamp(user, adding, modes, wordptr)
		case 'h':
			wordptr = applyFakeHost(user, modes, wordptr)
		default:
			// Unknown mode letter: ignored; nothing is logged.
		}
	}
}

// applyAccountStamp consumes the "<account>[:<numeric-stamp>]" word at
// wordptr and returns the cursor advanced past it (and any following
// spaces).
func applyAccountStamp(user *state.User, adding bool, modes []byte, wordptr int) int {
	var tag []byte
	for wordptr < len(modes) && modes[wordptr] != ' ' && modes[wordptr] != ':' {
		tag = append(tag, modes[wordptr])
		wordptr++
	}

	if wordptr < len(modes) && modes[wordptr] == ':' {
		wordptr++
		for wordptr < len(modes) && modes[wordptr] != ' ' && modes[wordptr] != ':' {
			wordptr++
		}
	}

	for wordptr < len(modes) && modes[wordptr] == ' ' {
		wordptr++
	}

	setUserBit(user, adding, UserStamped)
	user.Account = tag
	return wordptr
}

// applyFakeHost consumes the "[<ident>@]<host>" word at wordptr and
// returns the cursor advanced past it.
func applyFakeHost(user *state.User, modes []byte, wordptr int) int {
	var mask []byte
	for wordptr < len(modes) && modes[wordptr] != ' ' {
		mask = append(mask, modes[wordptr])
		wordptr++
	}

	for wordptr < len(modes) && modes[wordptr] == ' ' {
		wordptr++
	}

	var front, back []byte
	gotAt := false
	for _, c := range mask {
		if c == '@' && !gotAt {
			gotAt = true
			continue
		}
		if gotAt {
			back = append(back, c)
		} else {
			front = append(front, c)
		}
	}

	if len(back) > 0 {
		user.FakeIdent = front
		user.FakeHost = back
	} else {
		user.FakeHost = front
	}

	return wordptr
}

func setUserBit(user *state.User, adding bool, bit uint64) {
	if adding {
		user.Modes |= bit
	} else {
		user.Modes &^= bit
	}
}

// ApplyChannelModes applies a burst/mode-change's mode tokens to
// channel: tokens[0] is the "+psmt..." letter run, and subsequent
// tokens are consumed in order by the argument-taking letters it
// contains (spec §4.3).
func ApplyChannelModes(channel *state.Channel, tokens [][]byte) {
	if len(tokens) == 0 {
		return
	}

	letters := tokens[0]
	adding := true
	if len(letters) > 0 && (letters[0] == '+' || letters[0] == '-') {
		adding = letters[0] == '+'
		letters = letters[1:]
	}

	argIdx := 1
	for _, c := range letters {
		ApplyChannelMode(channel, adding, c)

		if !adding || !IsArgConsumingLetter(c) {
			continue
		}

		if argIdx >= len(tokens) {
			continue
		}
		arg := tokens[argIdx]
		argIdx++

		switch c {
		case 'l':
			channel.Limit = parseLimit(arg)
		case 'k':
			channel.Key = append([]byte{}, arg...)
		case 'A':
			channel.APass = append([]byte{}, arg...)
		case 'U':
			channel.UPass = append([]byte{}, arg...)
		}
	}
}

// parseLimit parses the +l argument as base-10 unsigned 64-bit; a
// malformed value falls back to 0, not an error (spec §4.3).
func parseLimit(arg []byte) uint64 {
	v, err := strconv.ParseUint(string(arg), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// ApplyChannelMode toggles a single channel mode letter's bit. Unknown
// letters are ignored.
func ApplyChannelMode(channel *state.Channel, adding bool, letter byte) {
	bit, ok := channelLetterBit[letter]
	if !ok {
		return
	}
	setChannelBit(channel, adding, bit)
}

func setChannelBit(channel *state.Channel, adding bool, bit uint64) {
	if adding {
		channel.Modes |= bit
	} else {
		// Intended semantics: clear the bit. (spec §9 Ambiguities: the
		// original source's remove branch is `modes &= flag`, which
		// looks like a bug; this is the corrected clear-bit behavior.)
		channel.Modes &^= bit
	}
}

// ApplyMemberMode toggles a chanop/voice/hidden bit on a membership.
func ApplyMemberMode(member *state.Membership, letter byte, adding bool) {
	var bit uint64
	switch letter {
	case 'o':
		bit = MemberChanop
	case 'v':
		bit = MemberVoice
	default:
		return
	}

	if adding {
		member.Modes |= bit
	} else {
		member.Modes &^= bit
	}
}

// BuildChannelModeString renders a channel's mode bits back into a
// "psmt... <limit> <key> <upass> <apass>"-shaped string, in the order
// the P10_CHANNEL_MODES letter table defines (spec §4.5, §8 round-trip).
// No leading '+' is written; callers prepend it.
func BuildChannelModeString(channel *state.Channel) string {
	buf := make([]byte, 0, len(channelLetters))
	for i, letter := range channelLetters {
		if channel.Modes&(1<<uint(i)) != 0 {
			buf = append(buf, letter)
		}
	}

	out := string(buf)

	if channel.Modes&ChanLimit != 0 && channel.Limit > 0 {
		out += " " + strconv.FormatUint(channel.Limit, 10)
	}

	if channel.Modes&ChanKey != 0 && len(channel.Key) > 0 {
		out += " " + string(channel.Key)
	}

	if channel.Modes&ChanUpass != 0 && len(channel.UPass) > 0 {
		out += " " + string(channel.UPass)
	}

	if channel.Modes&ChanApass != 0 && len(channel.APass) > 0 {
		out += " " + string(channel.APass)
	}

	return out
}
