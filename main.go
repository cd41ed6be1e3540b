/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/marionette/engine"
	"github.com/spaghettifunk/marionette/engine/config"
	"github.com/spaghettifunk/marionette/engine/core"
	"github.com/spaghettifunk/marionette/testbed"
)

func main() {
	configPath := flag.String("config", "marionette.toml", "path to the engine configuration")
	headless := flag.Bool("headless", false, "render with the in-memory device, no window")
	frames := flag.Uint64("frames", 0, "stop after this many frames, 0 runs until quit")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		if cfg, err = config.Load(*configPath); err != nil {
			core.LogFatal("%s", err)
		}
	} else {
		core.LogWarn("no config at %s, using defaults", *configPath)
	}
	if *headless {
		cfg.Renderer.Backend = config.BackendHeadless
	}

	tb := testbed.NewTestGame()

	e, err := engine.New(tb.Game, cfg)
	if err != nil {
		core.LogFatal("%s", err)
	}
	e.SetFrameLimit(*frames)

	if err := e.Initialize(); err != nil {
		core.LogFatal("failed to initialize: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.Stop()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown failed: %s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
