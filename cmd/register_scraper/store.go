package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/council-registers/internal/config"
	"github.com/jonathan/council-registers/internal/db"
	"github.com/jonathan/council-registers/internal/homepage"
	"github.com/jonathan/council-registers/internal/loader"
	"github.com/jonathan/council-registers/internal/pipeline"
	"github.com/jonathan/council-registers/internal/server"
	"github.com/jonathan/council-registers/internal/sqlitedb"
	"github.com/jonathan/council-registers/internal/types"
)

// appStore is satisfied by both the PostgreSQL and the SQLite store.
type appStore interface {
	pipeline.Store
	homepage.Store
	server.Store
	loader.Store
	ListRegisterTexts(ctx context.Context) ([]types.RegisterText, error)
	Migrate(ctx context.Context) error
	Close()
}

var (
	_ appStore = (*db.DB)(nil)
	_ appStore = (*sqlitedb.Store)(nil)
)

// openStore connects to SQLite when a path is configured, otherwise to
// PostgreSQL. A SQLite file is migrated on open.
func openStore(ctx context.Context, c *config.Config) (appStore, error) {
	if c.SQLitePath != "" {
		s, err := sqlitedb.Open(ctx, c.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		slog.Debug("using sqlite store", "path", c.SQLitePath)
		return s, nil
	}

	d, err := db.Connect(ctx, c.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return d, nil
}
