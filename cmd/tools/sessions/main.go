// sessions lists persisted dashboard sessions and optionally prunes idle ones.
//
//	sessions --limit 50 --prune 720h
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/pflag"

	"github.com/david/gsa-finder/internal/config"
	"github.com/david/gsa-finder/internal/db"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var limit int
	var prune time.Duration

	flagSet := pflag.NewFlagSet("sessions", pflag.ContinueOnError)
	flagSet.IntVar(&limit, "limit", 20, "number of sessions to list")
	flagSet.DurationVar(&prune, "prune", 0, "delete sessions idle for longer than this (e.g. 720h)")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}
	if prune < 0 {
		return fmt.Errorf("--prune must not be negative, got %s", prune)
	}

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := db.NewStore(pool)

	if prune > 0 {
		n, err := store.PruneSessions(ctx, time.Now().Add(-prune))
		if err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		fmt.Fprintf(out, "Pruned %d entries\n", n)
	}

	sessions, err := store.ListSessions(ctx, limit)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Session", "Entries", "Idle", "Updated At"})
	for _, s := range sessions {
		t.AppendRow(table.Row{s.ID, s.Entries, time.Since(s.UpdatedAt).Round(time.Second).String(), s.UpdatedAt.Format(time.DateTime)})
	}
	t.Render()
	return nil
}
