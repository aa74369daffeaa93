package main

import (
	"context"
	"fmt"
	"log"

	"github.com/david/gsa-finder/internal/config"
	"github.com/david/gsa-finder/internal/db"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	var migrations int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&migrations); err != nil {
		log.Fatalf("Query failed (has the server run its migrations?): %v", err)
	}

	var sessions, entries, lastViews, presets, overrides int
	err = pool.QueryRow(ctx, `
		SELECT
			count(DISTINCT session_id),
			count(*),
			count(*) FILTER (WHERE key = 'gsa.last.filters.v1'),
			count(*) FILTER (WHERE key = 'gsa.presets.v1'),
			count(*) FILTER (WHERE key = 'gsa.status.overrides.v1')
		FROM dashboard_kv
	`).Scan(&sessions, &entries, &lastViews, &presets, &overrides)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}

	fmt.Printf("Applied migrations: %d\n", migrations)
	fmt.Printf("Sessions: %d\n", sessions)
	fmt.Printf("Entries: %d\n", entries)
	fmt.Printf("With last view: %d\n", lastViews)
	fmt.Printf("With presets: %d\n", presets)
	fmt.Printf("With status overrides: %d\n", overrides)
}
