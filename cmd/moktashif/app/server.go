// Package app provides the Moktashif server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/moktashif/cmd/moktashif/app/options"
	"github.com/kart-io/moktashif/internal/assistant"
	"github.com/kart-io/moktashif/pkg/infra/app"
)

const (
	// commandDesc is the description of the command.
	commandDesc = `Moktashif Cybersecurity Assistant

A chat assistant restricted to the cybersecurity domain.

This server provides:
  - Streaming chat with per-user conversation history
  - Long-term memory of personal facts and uploaded documents
  - Document upload, chunking and retrieval-augmented answers
  - Hierarchical summarization of long documents
  - Web-search-augmented answers for current events`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(assistant.Name),
		app.WithShortDescription("Moktashif cybersecurity chat assistant"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
