package p10

import (
	"fmt"

	"github.com/nero-services/nero/irc/state"
)

// ircUser renders a user's N line for a burst, as introduced by
// server numeric. The "+iok _" is a fixed mode string and empty-IP
// token, not a re-serialization of user.Modes or user.IP.
func (e *Engine) ircUser(numeric string, now uint64, user *state.User) []byte {
	return []byte(fmt.Sprintf("%s N %s 1 %d %s %s +iok _ %s :%s",
		numeric, user.Nick, now, user.Ident, user.Host, user.Numnick, user.Gecos))
}

// ircEOB renders our own end-of-burst announcement.
func (e *Engine) ircEOB() []byte {
	return []byte(fmt.Sprintf("%s EB", e.Cfg.Numeric))
}

// ircEOBAck renders the end-of-burst acknowledgement we send back once
// our uplink's own EB has been seen.
func (e *Engine) ircEOBAck() []byte {
	return []byte(fmt.Sprintf("%s EA", e.Cfg.Numeric))
}

// ircPongASLL answers an ASLL ping, echoing back the two timestamp
// tokens the G line carried.
func (e *Engine) ircPongASLL(who, origTS []byte) []byte {
	return []byte(fmt.Sprintf("%s Z %s %s 0 %s", e.Cfg.Numeric, who, origTS, origTS))
}

// textMessageLimit caps the length of one outbound P/O line, the
// "<source> P|O <target> :" prefix included.
const textMessageLimit = 500

// ircTextMessage renders source's message to target as one or more P10
// P/O lines, splitting on byte boundaries when the combined line would
// exceed the wire limit.
//
// The original source computes its chunk count from
// message.len()+prefix.len() but then indexes only into message using
// fixed 500-byte offsets, which can walk past the end of message and
// panic when message is short but the prefix pushes the total over the
// limit. This instead sizes each chunk to what actually fits after the
// prefix, and always emits at least one line — even for an empty
// message — so oversized or edge-case input never crashes (spec §7).
func (e *Engine) ircTextMessage(source []byte, target, message []byte, isPrivmsg bool) [][]byte {
	cmd := "P"
	if !isPrivmsg {
		cmd = "O"
	}

	prefix := fmt.Sprintf("%s %s %s :", source, cmd, target)
	limit := textMessageLimit - len(prefix)
	if limit < 1 {
		limit = 1
	}

	if len(message) == 0 {
		return [][]byte{[]byte(prefix)}
	}

	var lines [][]byte
	for begin := 0; begin < len(message); begin += limit {
		end := begin + limit
		if end > len(message) {
			end = len(message)
		}
		lines = append(lines, []byte(prefix+string(message[begin:end])))
	}
	return lines
}

// ircPrivmsg renders source's PRIVMSG to target.
func (e *Engine) ircPrivmsg(source []byte, target, message []byte) [][]byte {
	return e.ircTextMessage(source, target, message, true)
}

// ircNotice renders source's NOTICE to target.
func (e *Engine) ircNotice(source []byte, target, message []byte) [][]byte {
	return e.ircTextMessage(source, target, message, false)
}

// GetUserByNick implements plugin.API.
func (e *Engine) GetUserByNick(nick []byte) *state.User {
	return e.Network.FindUserNick(nick)
}

// GetUserByNumeric implements plugin.API.
func (e *Engine) GetUserByNumeric(numeric []byte) *state.User {
	return e.Network.FindUserNumeric(numeric)
}

// SendPrivmsg implements plugin.API: source is already a live
// *state.User, so its numnick is read directly rather than looked up
// again by nick, as the original does for its detached user clones.
func (e *Engine) SendPrivmsg(source *state.User, target []byte, message []byte) {
	e.sendTextMessage(source, target, message, true)
}

// SendNotice implements plugin.API.
func (e *Engine) SendNotice(source *state.User, target []byte, message []byte) {
	e.sendTextMessage(source, target, message, false)
}

// SendTextMessage implements plugin.API.
func (e *Engine) SendTextMessage(source *state.User, target []byte, message []byte, isPrivmsg bool) {
	e.sendTextMessage(source, target, message, isPrivmsg)
}

func (e *Engine) sendTextMessage(source *state.User, target []byte, message []byte, isPrivmsg bool) {
	var originNumeric []byte
	if source != nil {
		originNumeric = []byte(source.Numnick)
	} else {
		originNumeric = []byte(e.Cfg.Numeric)
	}

	for _, line := range e.ircTextMessage(originNumeric, target, message, isPrivmsg) {
		e.Enqueue(line)
	}
}

// SendPrivmsgRawTarget implements plugin.API: target is sent as-is
// rather than resolved from a nick or numeric first, for callers (e.g.
// a bot addressing a raw channel/service name) that already have the
// exact wire-form target.
func (e *Engine) SendPrivmsgRawTarget(source *state.User, target []byte, message []byte) {
	e.sendTextMessage(source, target, message, true)
}
