package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/scatter/go/internal/dbconfig"
	"github.com/mcdev12/scatter/go/internal/repository"
)

func setupDatabase(ctx context.Context) (*sql.DB, error) {
	cfg, err := dbconfig.NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	database, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	cfg.ApplyPool(database)

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("dsn", cfg.Redacted()).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("connected to database")
	return database, nil
}

// setupStore returns the repository selected by STORAGE. The returned close
// function releases the database, if any.
func setupStore(ctx context.Context) (repository.Store, func(), error) {
	switch storage := getEnv("STORAGE", "memory"); storage {
	case "memory":
		log.Warn().Msg("using in-memory storage, state is lost on restart")
		return repository.NewMemory(), func() {}, nil
	case "postgres":
		database, err := setupDatabase(ctx)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewPostgres(database)
		if err := store.Migrate(ctx); err != nil {
			database.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return store, func() { database.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE %q", storage)
	}
}
