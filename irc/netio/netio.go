// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

// Package netio dials the uplink and drives the read-process-drain-write
// loop that turns a TCP byte stream into calls on a p10.Engine (spec §5:
// "connection management and TLS/socket plumbing are out of scope;
// interfaces only" — this is that interface's one concrete instance).
package netio

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/goshuirc/irc-go/ircreader"

	"github.com/nero-services/nero/irc/config"
	"github.com/nero-services/nero/irc/logger"
)

// maxLineBytes bounds a single inbound line, guarding against an uplink
// (or a misbehaving intermediate) that never sends a newline.
const maxLineBytes = 8192

// dialTimeout bounds the initial TCP connect attempt.
const dialTimeout = 30 * time.Second

// Engine is the subset of p10.Engine that netio needs to drive the
// connection loop, kept narrow so netio doesn't import p10 (which would
// create an import cycle were p10 ever to need connection lifecycle
// events back).
type Engine interface {
	StartHandshake()
	Process(line []byte)
	Drain() [][]byte
}

// Conn owns one uplink TCP connection and the engine driving it.
type Conn struct {
	engine Engine
	log    *logger.Manager
	conn   net.Conn
	writer *bufio.Writer
	reader ircreader.IrcReader
}

// Dial connects to uplink and returns a Conn ready to Run.
func Dial(uplink config.Uplink, engine Engine, log *logger.Manager) (*Conn, error) {
	addr := fmt.Sprintf("%s:%d", uplink.IP, uplink.Port)

	tcpConn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("netio: dial %s: %w", addr, err)
	}

	c := &Conn{
		engine: engine,
		log:    log,
		conn:   tcpConn,
		writer: bufio.NewWriter(tcpConn),
	}
	c.reader.Reader = tcpConn
	c.reader.MaxLineBytes = maxLineBytes

	return c, nil
}

// Run starts the handshake and then loops: read one line, process it,
// drain and flush whatever the engine queued in response, repeat. It
// returns when the connection is closed or a read/write error occurs.
func (c *Conn) Run() error {
	c.engine.StartHandshake()
	if err := c.flush(); err != nil {
		return err
	}

	for {
		line, err := c.reader.ReadLine()
		if err != nil {
			return fmt.Errorf("netio: read: %w", err)
		}

		line = trimRight(line)
		if len(line) == 0 {
			continue
		}

		c.log.Debug("netio", "<- %s", line)
		c.engine.Process(line)

		if err := c.flush(); err != nil {
			return err
		}
	}
}

// flush writes and clears every line the engine has queued since the
// last flush, each terminated with a bare LF per spec §4.1.
func (c *Conn) flush() error {
	for _, line := range c.engine.Drain() {
		c.log.Debug("netio", "-> %s", line)

		if _, err := c.writer.Write(line); err != nil {
			return fmt.Errorf("netio: write: %w", err)
		}
		if len(line) == 0 || line[len(line)-1] != '\n' {
			if err := c.writer.WriteByte('\n'); err != nil {
				return fmt.Errorf("netio: write: %w", err)
			}
		}
	}
	return c.writer.Flush()
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// trimRight strips trailing CR/LF from a line the way the original
// source's trim_bytes_right did, since P10 lines may arrive with either
// terminator.
func trimRight(line []byte) []byte {
	end := len(line)
	for end > 0 && (line[end-1] == '\r' || line[end-1] == '\n') {
		end--
	}
	return line[:end]
}
