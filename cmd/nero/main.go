// Copyright (c) 2016-2017 Daniel Oaks <daniel@danieloaks.net>
// released under the MIT license

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/nero-services/nero/irc/config"
	"github.com/nero-services/nero/irc/logger"
	"github.com/nero-services/nero/irc/netio"
	"github.com/nero-services/nero/irc/p10"
	"github.com/nero-services/nero/irc/plugin"
)

const version = "0.1.0"

const usage = `nero - P10 server-to-server link daemon.

Usage:
	nero run [--conf <filename>]
	nero version
	nero -h | --help

Options:
	--conf <filename>  Configuration file to use [default: etc/nero.toml].
	-h --help          Show this screen.`

func main() {
	arguments, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if ok, _ := arguments.Bool("version"); ok {
		fmt.Println("nero", version)
		return
	}

	if ok, _ := arguments.Bool("run"); ok {
		confPath, _ := arguments.String("--conf")
		if err := run(confPath); err != nil {
			fmt.Fprintln(os.Stderr, "nero:", err)
			os.Exit(1)
		}
	}
}

// run loads configuration, wires up the engine, loads plugins, and
// drives the uplink connection loop until it drops or fails (spec §1,
// §6, mirroring the original's run()/net::boot entry point).
func run(confPath string) error {
	log := logger.NewManager(logger.Info)

	cfg, err := config.Load(confPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if cfg.Uplink.Protocol != "p10" && cfg.Uplink.Protocol != "P10" {
		return fmt.Errorf("only p10 is currently supported, got %q", cfg.Uplink.Protocol)
	}

	dispatcher := plugin.NewDispatcher(log)
	for _, pc := range cfg.Plugins {
		if !pc.Load {
			continue
		}
		if err := dispatcher.Load(pc.File); err != nil {
			log.Warn("main", "continuing without plugin %s: %v", pc.File, err)
		}
	}

	engine := p10.New(cfg.Uplink, log, dispatcher, nowP10Timestamp)

	for _, bot := range dispatcher.Bots() {
		user := engine.AddLocalBot(bot)
		log.Info("main", "added local bot %s (%s)", user.Nick, user.Numnick)
	}

	conn, err := netio.Dial(cfg.Uplink, engine, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Info("main", "connected to %s:%d, starting handshake", cfg.Uplink.IP, cfg.Uplink.Port)
	return conn.Run()
}

// nowP10Timestamp is the Engine's real clock: a P10 timestamp is Unix
// seconds (spec §4.2). Tests inject a fixed function instead.
func nowP10Timestamp() uint64 {
	return uint64(time.Now().Unix())
}
