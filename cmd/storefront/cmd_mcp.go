package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/storefront/internal/app"
	"github.com/felixgeelhaar/storefront/internal/config"
	mcpserver "github.com/felixgeelhaar/storefront/internal/mcp"
)

// cmdMCP starts the MCP server on stdio. It runs its own application root
// over the configured storage, so it shares the persisted session and carts
// with the daemon.
func cmdMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dir, err := config.EnsureStorefrontDir()
	if err != nil {
		return fmt.Errorf("get storefront dir: %w", err)
	}

	// stdout carries the protocol
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(ctx, app.Options{Config: cfg, Dir: dir})
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Close()

	mcpSrv := mcpserver.NewServer(mcpserver.Config{
		App:     application,
		Version: Version,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return mcpSrv.ServeStdio(ctx)
}
