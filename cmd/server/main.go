package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/david/gsa-finder/internal/api"
	"github.com/david/gsa-finder/internal/auth"
	"github.com/david/gsa-finder/internal/catalog"
	"github.com/david/gsa-finder/internal/config"
	"github.com/david/gsa-finder/internal/db"
	"github.com/david/gsa-finder/internal/metrics"
	"github.com/david/gsa-finder/internal/source"
	"github.com/david/gsa-finder/internal/state"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	metrics.Register()

	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}

	// Session state lives in Postgres when configured, in memory otherwise.
	var persister api.PersisterFactory
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()

		if err := db.ApplyMigrations(ctx, pool); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		store := db.NewStore(pool)
		persister = func(id uuid.UUID) state.Persister { return store.Session(id) }
	} else {
		log.Print("DATABASE_URL is not set; session state is kept in memory")
	}

	data := source.NewDataset(cfg.DataSource, source.NewFetcher(source.FetchConfig{
		MaxRetries: cfg.DataMaxRetries,
	}))
	// A failed load leaves the dataset in the failed state; clients retry
	// through /api/v1/data/reload.
	if err := data.Load(ctx); err != nil {
		log.Printf("Initial data load failed: %v", err)
	}

	signer, err := auth.NewSigner(cfg.SessionSecret, 0)
	if err != nil {
		log.Fatalf("Failed to init session signer: %v", err)
	}
	sessions := api.NewSessions(api.SessionConfig{
		Cookie:    cfg.SessionCookie,
		Signer:    signer,
		Persister: persister,
		Delay:     state.RandomDelay(cfg.ApplyDelayMin, cfg.ApplyDelayJitter),
	})
	go sessions.RunSweeper(ctx, 10*time.Minute, 12*time.Hour)

	srv := api.NewServer(api.Options{
		Data:        data,
		Catalog:     cat,
		Sessions:    sessions,
		CORSOrigins: cfg.CORSOrigins,
	})
	log.Printf("Server starting on port %s...", cfg.Port)
	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal(err)
	}
}
