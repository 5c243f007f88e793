package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/spec-kit/lesson-scheduler/internal/cli"
	"github.com/spec-kit/lesson-scheduler/internal/config"
	"github.com/spec-kit/lesson-scheduler/internal/observability"
	"github.com/spec-kit/lesson-scheduler/internal/store"
)

var CLI struct {
	Version kong.VersionFlag
	Verbose bool   `short:"v" help:"Log debug output to stderr."`
	Driver  string `help:"Override STORE_DRIVER (postgres, sqlite, memory)."`

	Migrate cli.MigrateCmd `cmd:"" help:"Apply the store schema."`
	Pair    cli.PairCmd    `cmd:"" help:"Pair two users by email."`
	Unpair  cli.UnpairCmd  `cmd:"" help:"Dissolve a user's pairing."`
	Day     cli.DayCmd     `cmd:"" help:"Show a user's merged unavailability for a date."`
	ICS     cli.ICSCmd     `cmd:"" name:"ics" help:"Export a user's iCalendar feed."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("schedctl"),
		kong.Description("Operator tool for the lesson scheduler store"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	if CLI.Driver != "" {
		cfg.Store.Driver = CLI.Driver
	}
	if kctx.Command() == "migrate" {
		cfg.Postgres.RunMigrations = true
	}

	logger := observability.NewCLILogger(CLI.Verbose)
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	st, err := store.Open(ctx, *cfg, logger)
	if err != nil {
		fail(err)
	}
	defer st.Close()

	if err := kctx.Run(cli.NewContext(ctx, *cfg, st, os.Stdout, logger)); err != nil {
		st.Close()
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
