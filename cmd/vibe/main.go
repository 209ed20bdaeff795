package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vibetodo/internal/cli"
	"github.com/gosuda/vibetodo/internal/config"
	"github.com/gosuda/vibetodo/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Console logging until the config file says otherwise.
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := cli.New(os.Stdin, os.Stdout, os.Stderr)
	err := app.Run(ctx, os.Args[1:])
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return 0
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		if p, perr := config.DefaultPath(); perr == nil {
			fmt.Fprintln(os.Stderr, "check your configuration in", p)
		}
		return 3
	case errors.Is(err, domain.ErrBackendUnavailable):
		return 4
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound):
		return 2
	default:
		return 1
	}
}
