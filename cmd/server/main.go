package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paulrobello/par-shape-2d/internal/config"
	"github.com/paulrobello/par-shape-2d/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	levelPath := flag.String("level", "", "path to a yaml level file (overrides the config)")
	addr := flag.String("addr", "", "listen address (overrides the config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error loading config:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *levelPath != "" {
		cfg.Level.Path = *levelPath
	}
	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}

	srv, cleanup, err := injector.InitializeServer(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error starting server:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Server stopped:", err)
		cleanup()
		os.Exit(1)
	}
}
