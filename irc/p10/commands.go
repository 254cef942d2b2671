package p10

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/nero-services/nero/irc/modes"
	"github.com/nero-services/nero/irc/plugin"
	"github.com/nero-services/nero/irc/state"
	"github.com/nero-services/nero/irc/wire"
)

// cmdPass validates PASS :<password> against the configured recv_pass.
// A mismatch is logged, not fatal — the uplink's own SERVER line is
// what ultimately decides whether the link is usable.
func (e *Engine) cmdPass(argc int, argv [][]byte) error {
	if argc != 2 {
		return fmt.Errorf("PASS: expected 2 args, got %d", argc)
	}

	if e.Network.Uplink != nil {
		return nil
	}

	if string(argv[1]) != e.Cfg.RecvPass {
		e.Log.Error("p10", "uplink password did not match our configured password")
	}

	return nil
}

// cmdServer handles SERVER/S: either our uplink introducing itself for
// the first time (which triggers our own local-user burst), or a
// downstream server being introduced by an already-known server.
func (e *Engine) cmdServer(origin []byte, argc int, argv [][]byte) error {
	if argc < 9 {
		return fmt.Errorf("SERVER: expected at least 9 args, got %d", argc)
	}
	if len(argv[6]) < 2 {
		return fmt.Errorf("SERVER: malformed numeric token %q", argv[6])
	}

	server := state.NewServer(state.ServerID(argv[6][:2]), argv[1], argv[8])
	server.SelfBurst = true
	server.Hops = parseInt8(argv[2])
	server.Boot = parseUint(argv[3])
	server.LinkTime = parseUint(argv[4])

	e.Log.Debug("p10", "adding server %s with numeric %s", server.Hostname, server.ID)

	if e.Network.Uplink == nil {
		e.Network.Uplink = server
		e.Network.AddServer(server)
		e.burstOurUsers()
	} else {
		if up := e.Network.FindServerNumeric(origin); up != nil {
			server.Uplink = up
			up.Children = append(up.Children, server)
		}
		e.Network.AddServer(server)
	}

	return nil
}

// cmdEB handles End-of-Burst: once our direct uplink's own EB arrives,
// we ack it and announce our own end of burst, moving into Connected.
func (e *Engine) cmdEB(origin []byte) error {
	if e.Network.Uplink == nil {
		return fmt.Errorf("EB: no uplink established")
	}

	sender := e.Network.FindServerNumeric(origin)
	if sender == nil {
		return fmt.Errorf("EB: unknown server numeric %q", origin)
	}

	if bytes.Equal(sender.Hostname, e.Network.Uplink.Hostname) {
		e.Enqueue(e.ircEOB())
		e.Enqueue(e.ircEOBAck())
		e.Network.SetPhase(state.Connected)
	}

	sender.SelfBurst = false
	return nil
}

// cmdG answers a ping (ASLL) from the uplink.
func (e *Engine) cmdG(argc int, argv [][]byte) error {
	if argc > 3 {
		e.Enqueue(e.ircPongASLL(argv[2], argv[3]))
	}
	return nil
}

// cmdTextMessage handles PRIVMSG (P) and NOTICE (O), firing the
// matching plugin hook instead of relaying the message anywhere itself
// — message delivery to real IRC clients is out of scope (spec §1).
func (e *Engine) cmdTextMessage(origin []byte, argc int, argv [][]byte, isPrivmsg bool) error {
	if argc < 2 {
		return fmt.Errorf("text message: expected at least 2 args, got %d", argc)
	}

	user := e.Network.FindUserNumeric(origin)
	if user == nil {
		return fmt.Errorf("text message: unknown origin %q", origin)
	}

	message := argv[argc-1]
	target := argv[1]
	if len(target) == 0 {
		return fmt.Errorf("text message: empty target")
	}

	isChan := target[0] == '#' || target[0] == '&'
	var hookType plugin.HookType
	switch {
	case isChan && isPrivmsg:
		hookType = plugin.PrivmsgChan
	case isChan && !isPrivmsg:
		hookType = plugin.NoticeChan
	case !isChan && isPrivmsg:
		hookType = plugin.PrivmsgBot
	default:
		hookType = plugin.NoticeBot
	}

	targetKey := target
	if hookType == plugin.PrivmsgBot {
		if targetUser := e.Network.FindUserNumeric(target); targetUser != nil {
			targetKey = targetUser.Nick
		}
	}

	e.Plugins.FireHook(e, &plugin.HookData{
		Type:    hookType,
		Origin:  append([]byte{}, user.Nick...),
		Target:  append([]byte{}, targetKey...),
		Message: append([]byte{}, message...),
	})

	return nil
}

// cmdT handles a TOPIC burst/change.
func (e *Engine) cmdT(origin []byte, argc int, argv [][]byte) error {
	if argc < 3 {
		return fmt.Errorf("T: expected at least 3 args, got %d", argc)
	}

	channel := e.Network.FindChannel(argv[1])
	if channel == nil {
		return fmt.Errorf("T: unknown channel %q", argv[1])
	}

	topicTime := e.Network.Now
	if argc >= 5 {
		topicTime = parseUint(argv[3])
	}

	user := e.Network.FindUserNumeric(origin)
	e.setChannelTopic(channel, user, argv[argc-1])
	channel.TopicTime = topicTime

	return nil
}

// cmdQ handles a user quitting or splitting off the network.
func (e *Engine) cmdQ(origin []byte, argc int, argv [][]byte) error {
	user := e.Network.FindUserNumeric(origin)
	if user == nil {
		return fmt.Errorf("Q: unknown origin %q", origin)
	}

	message := argv[argc-1]
	e.Log.Debug("p10", "user %s disconnected: %s", user.Nick, message)

	e.Plugins.FireHook(e, &plugin.HookData{
		Type:    plugin.UserQuit,
		Server:  user.Server,
		Target:  append([]byte{}, user.Nick...),
		Message: append([]byte{}, message...),
	})

	e.Network.RemoveUser(origin)
	return nil
}

// cmdN handles N: a nick change for a known user, or a new user
// connecting through a known server.
func (e *Engine) cmdN(origin []byte, argc int, argv [][]byte) error {
	if user := e.Network.FindUserNumeric(origin); user != nil {
		if argc < 2 {
			return fmt.Errorf("N: expected at least 2 args for a nick change, got %d", argc)
		}
		e.Log.Debug("p10", "user %s changing nick to %s", user.Nick, argv[1])
		user.Nick = append([]byte{}, argv[1]...)
		return nil
	}

	if argc < 9 {
		return fmt.Errorf("N: expected at least 9 args for a new user, got %d", argc)
	}

	uplink := e.Network.FindServerNumeric(origin)

	var userModes []byte
	if argc > 9 {
		userModes = wire.Unsplit(argv, 6, argc-9)
	} else {
		userModes = []byte("+")
	}

	user, err := e.addUser(uplink, argv[1], argv[4], argv[5], userModes, argv[argc-2], argv[argc-1], argv[3], argv[argc-3])
	if err != nil {
		return fmt.Errorf("N: %w", err)
	}

	e.Log.Debug("p10", "user %s connecting", user.Nick)
	e.Plugins.FireHook(e, &plugin.HookData{
		Type:   plugin.UserConnected,
		Server: user.Server,
		Target: append([]byte{}, user.Nick...),
	})

	return nil
}

// cmdB handles a channel burst: channel modes, bans, and the member
// list with per-member chanop/voice/oplevel annotations.
func (e *Engine) cmdB(argc int, argv [][]byte) error {
	if argc < 3 {
		return fmt.Errorf("B: expected at least 3 args, got %d", argc)
	}

	createdTime := parseUintOr(argv[2], e.Network.Now)

	next := 3
	nModes := 1
	var modeTokens [][]byte
	var banList []byte
	var userList []byte

	for next < argc {
		tok := argv[next]
		if len(tok) == 0 {
			next++
			continue
		}

		switch tok[0] {
		case '+':
			for _, c := range tok[1:] {
				if modes.IsArgConsumingLetter(c) {
					nModes++
				}
			}
			if next+nModes > argc {
				nModes = argc - next
			}
			modeTokens = argv[next : next+nModes]
			next += nModes
		case '%':
			banList = tok[1:]
			next++
		default:
			userList = tok
			next++
		}
	}

	if e.Network.IsUnbursted(argv[1]) {
		if channel := e.Network.FindChannel(argv[1]); channel != nil {
			e.burstOurChannel(createdTime, channel)
		}
		e.Network.ClearUnbursted(argv[1])
	}

	channel := e.addChannel(argv[1], createdTime, modeTokens, banList)
	if channel == nil {
		return fmt.Errorf("B: could not add channel %q", argv[1])
	}

	e.parseChannelMembers(channel, userList)
	return nil
}

// parseChannelMembers walks a B line's comma-separated numeric list,
// each optionally annotated with ":o"/":v"/a digit-run for oplevel
// (spec §4.5, and the "any digit collapses to oplevel 999" quirk
// preserved intentionally per spec §9 Ambiguities).
func (e *Engine) parseChannelMembers(channel *state.Channel, userList []byte) {
	var memberModes uint64
	var oplevel uint64
	var userbuf []byte
	gotColon := false

	flush := func() {
		member, err := e.addChannelMember(channel, userbuf)
		if err != nil {
			e.Log.Error("p10", "failed to find numeric member %q in channel %s", userbuf, channel.Name)
		} else {
			member.Modes = memberModes
			member.OpLevel = oplevel
		}
		userbuf = nil
		gotColon = false
	}

	for index := 0; index < len(userList); index++ {
		c := userList[index]
		isLast := index+1 == len(userList)

		if c == ',' || (index > 0 && isLast) {
			if isLast && c != ',' {
				applyMemberAnnotation(c, gotColon, &memberModes, &oplevel, &userbuf)
			}
			flush()
			continue
		}

		if c == ':' {
			gotColon = true
			memberModes = 0
			oplevel = 0
			continue
		}

		applyMemberAnnotation(c, gotColon, &memberModes, &oplevel, &userbuf)
	}
}

func applyMemberAnnotation(c byte, gotColon bool, memberModes, oplevel *uint64, userbuf *[]byte) {
	if !gotColon {
		*userbuf = append(*userbuf, c)
		return
	}

	switch {
	case c == 'o':
		*memberModes |= modes.MemberChanop
	case c == 'v':
		*memberModes |= modes.MemberVoice
	case c >= '0' && c <= '9':
		*oplevel = 999
	}
}

func parseInt8(b []byte) int8 {
	v, err := strconv.ParseInt(string(b), 10, 8)
	if err != nil {
		return 0
	}
	return int8(v)
}

func parseUint(b []byte) uint64 {
	return parseUintOr(b, 0)
}

func parseUintOr(b []byte, fallback uint64) uint64 {
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
