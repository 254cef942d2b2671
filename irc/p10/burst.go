package p10

import (
	"fmt"

	"github.com/nero-services/nero/irc/modes"
	"github.com/nero-services/nero/irc/plugin"
	"github.com/nero-services/nero/irc/state"
	"github.com/nero-services/nero/irc/wire"
)

// AddLocalBot materializes a plugin-registered Bot as a locally-owned
// user: it's allocated a numnick off our own server's numeric accumulator
// (spec §4.2 "AddLocalBot's numnick allocation"), given a placeholder IP
// and +iok modes, and joined into each of the bot's configured channels
// with the requested chanop/voice member modes. This is what actually
// populates e.Network.Me.Users, which burstOurUsers and burstOurChannel
// depend on to have anything to burst.
func (e *Engine) AddLocalBot(bot plugin.Bot) *state.User {
	user := state.NewUser([]byte(bot.Nick), []byte(bot.Ident), []byte(bot.Hostname), e.Network.Me)
	user.IP = []byte("255.255.255.255")
	user.Gecos = []byte(bot.Gecos)

	numnick := wire.NextNumnick([]byte(e.Network.Me.ID), &e.Network.Me.NumericAccum)
	user.Numnick = state.UserID(numnick)
	modes.ApplyUserModes(user, []byte("+iok"))

	e.Network.AddUser(user)

	for _, ch := range bot.Channels {
		channel := e.addChannel([]byte(ch.Name), e.Network.Now, splitFields([]byte(ch.ChanModes)), nil)

		member, err := e.addChannelMember(channel, numnick)
		if err != nil {
			e.Log.Error("p10", "failed to join local bot %s to %s: %v", bot.Nick, ch.Name, err)
			continue
		}

		for _, m := range ch.UserModes {
			switch m {
			case 'o':
				member.Modes |= modes.MemberChanop
			case 'v':
				member.Modes |= modes.MemberVoice
			}
		}
	}

	return user
}

// addUser creates and registers a new remote user under uplink.
func (e *Engine) addUser(uplink *state.Server, nick, ident, hostname, userModes, numeric, gecos, timestamp, realip []byte) (*state.User, error) {
	if len(numeric) < 3 || len(numeric) > 5 {
		return nil, fmt.Errorf("numeric %q has the wrong length", numeric)
	}
	if uplink == nil {
		return nil, fmt.Errorf("no uplink server for numeric %q", numeric)
	}

	user := state.NewUser(nick, ident, hostname, uplink)
	user.IP = wire.Base64ToIP(realip)
	user.Gecos = append([]byte{}, gecos...)
	user.Numnick = state.UserID(numeric)
	user.RegisteredAt = parseUint(timestamp)

	modes.ApplyUserModes(user, userModes)

	e.Network.AddUser(user)
	return user, nil
}

// addChannel finds or creates the channel named name, applying the
// burst's mode and ban lists only on creation — an existing channel's
// state isn't replaced by a later, redundant burst, except that an
// earlier creation time always wins and resets the topic (spec §4.5).
func (e *Engine) addChannel(name []byte, created uint64, modeTokens [][]byte, banList []byte) *state.Channel {
	if existing := e.Network.FindChannel(name); existing != nil {
		if existing.Created > created {
			existing.Created = created
			existing.TopicTime = 0
			existing.Topic = nil
		}
		return existing
	}

	channel := state.NewChannel(name, created)
	modes.ApplyChannelModes(channel, modeTokens)
	e.setChannelBans(channel, banList)
	e.Network.AddChannel(channel)
	return channel
}

// setChannelBans parses a space-separated ban-mask list (no colon rule
// applies here: it's a plain whitespace split, not a wire line).
func (e *Engine) setChannelBans(channel *state.Channel, banList []byte) {
	for _, ban := range splitFields(banList) {
		channel.Bans = append(channel.Bans, ban)
	}
}

// splitFields is a plain ASCII-space splitter, distinct from
// wire.Tokenize's colon-rule: ban lists and similar comma/space-joined
// burst fields never carry a trailing free-text argument.
func splitFields(input []byte) [][]byte {
	var out [][]byte
	var tmp []byte
	for _, b := range input {
		if b == ' ' {
			if len(tmp) > 0 {
				out = append(out, tmp)
				tmp = nil
			}
			continue
		}
		tmp = append(tmp, b)
	}
	if len(tmp) > 0 {
		out = append(out, tmp)
	}
	return out
}

// addChannelMember adds the user identified by numeric to channel.
func (e *Engine) addChannelMember(channel *state.Channel, numeric []byte) (*state.Membership, error) {
	user := e.Network.FindUserNumeric(numeric)
	if user == nil {
		return nil, fmt.Errorf("unknown numeric %q", numeric)
	}

	member := e.Network.AddMember(channel, user)
	e.Log.Debug("p10", "added member %s to channel %s", user.Nick, channel.Name)
	return member, nil
}

// setChannelTopic applies a topic change, recording who set it if known.
func (e *Engine) setChannelTopic(channel *state.Channel, user *state.User, topic []byte) {
	channel.Topic = append([]byte{}, topic...)
	channel.TopicTime = e.Network.Now
	if user != nil {
		channel.TopicNick = append([]byte{}, user.Nick...)
	}
}

// burstOurChannel emits the B line(s) introducing a locally-pending
// channel to a server that has just linked to us: modes, members (with
// run-length-encoded chanop/voice transitions), and bans, each chunked
// so no single line exceeds 500 bytes.
//
// The ban loop appends each mask with a leading space instead of
// overwriting the accumulated line (spec §9 Ambiguities: the original
// source's ban loop assigns instead of appending, dropping every ban
// but the last).
func (e *Engine) burstOurChannel(created uint64, channel *state.Channel) {
	localNumeric := string(e.Network.Me.ID)
	baseBurst := fmt.Sprintf("%s B %s %d ", localNumeric, channel.Name, created)
	chanModes := modes.BuildChannelModeString(channel)
	burstMessage := baseBurst + "+" + chanModes + " "

	wasOpped, wasVoiced := false, false

	for _, member := range channel.Members {
		user := member.User
		needColon := false
		oplen := 0

		if member.Modes&modes.MemberChanop != 0 && !wasOpped {
			needColon = true
			wasOpped = true
			oplen++
		}
		if member.Modes&modes.MemberVoice != 0 && !wasVoiced {
			needColon = true
			wasVoiced = true
			oplen++
		}
		if member.Modes&modes.MemberChanop == 0 && wasOpped {
			needColon = true
			wasOpped = false
		}
		if member.Modes&modes.MemberVoice == 0 && wasVoiced {
			needColon = true
			wasVoiced = false
		}
		if needColon {
			oplen++
		}

		if len(burstMessage)+len(user.Numnick)+oplen+1 >= 500 {
			e.Enqueue([]byte(burstMessage))
			burstMessage = baseBurst
		}

		burstMessage += string(user.Numnick)
		if needColon {
			burstMessage += ":"
			if member.Modes&modes.MemberChanop != 0 {
				burstMessage += "o"
			}
			if member.Modes&modes.MemberVoice != 0 {
				burstMessage += "v"
			}
		}

		burstMessage += ","
	}

	if len(burstMessage) > 0 {
		burstMessage = burstMessage[:len(burstMessage)-1]
	}

	needBanPrefix := true
	for _, ban := range channel.Bans {
		if len(burstMessage)+len(ban)+2 >= 500 {
			e.Enqueue([]byte(burstMessage))
			burstMessage = baseBurst
			needBanPrefix = true
		}
		if needBanPrefix {
			burstMessage += ":%"
			needBanPrefix = false
		}
		burstMessage += " " + string(ban)
	}

	if burstMessage != baseBurst {
		e.Enqueue([]byte(burstMessage))
	}
}

// burstOurUsers introduces every locally-owned user to a newly linked
// uplink, then marks every known channel pending its own burst (spec
// §4.5): the channel burst itself is deferred until the uplink's B
// line for that channel arrives, at which point cmdB calls
// burstOurChannel before merging in the uplink's view.
func (e *Engine) burstOurUsers() {
	numeric := e.Cfg.Numeric
	now := e.Network.Now

	for _, user := range e.Network.Me.Users {
		e.Enqueue(e.ircUser(numeric, now, user))
	}

	for _, channel := range e.Network.AllChannels() {
		e.Network.MarkUnbursted(channel.Name)
	}
}
