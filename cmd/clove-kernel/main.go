// Copyright 2026 The Clove Authors
// SPDX-License-Identifier: Apache-2.0

// Clove-kernel is the agent runtime's single privileged process: it
// listens on a Unix socket, dispatches every syscall an agent sends,
// and supervises the agent processes it spawns.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/AnujJha88/Clove/internal/kernel"
	"github.com/AnujJha88/Clove/internal/transport"
	"github.com/AnujJha88/Clove/lib/config"
	"github.com/AnujJha88/Clove/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		socketPath string
		noSandbox bool
		logLevel string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to the kernel's YAML config file (overrides CLOVE_CONFIG)")
	flag.StringVar(&socketPath, "socket", "", "override the config file's socket_path")
	flag.BoolVar(&noSandbox, "no-sandbox", false, "disable namespace/cgroup isolation even when available")
	flag.StringVar(&logLevel, "log-level", "", "override the config file's log_level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("clove-kernel %s\n", version.Version)
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if socketPath != "" {
		cfg.SocketPath = socketPath
	}
	if noSandbox {
		cfg.NoSandbox = true
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kc := kernel.New(cfg, logger)
	server := transport.New(cfg.SocketPath, kc, logger)

	var wg sync.WaitGroup
	wg.Add(2)

	var serveErr error
	go func() {
		defer wg.Done()
		kc.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		serveErr = server.Serve(ctx)
	}()

	logger.Info("clove-kernel started", "socket", cfg.SocketPath, "version", version.Version)
	wg.Wait()

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return fmt.Errorf("transport: %w", serveErr)
	}
	logger.Info("clove-kernel stopped")
	return nil
}

func loadConfig(explicitPath string) (*config.Config, error) {
	if explicitPath != "" {
		return config.LoadFile(explicitPath)
	}
	return config.Load()
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
