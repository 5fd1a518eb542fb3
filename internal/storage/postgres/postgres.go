// Package postgres implements the storage.Backend interface on PostgreSQL.
// The connection is opened lazily in Init; everything else is the GORM backend.
package postgres

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/internal/database"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	gormstorage "github.com/wlsgn1217/MARBLER/internal/storage/gorm"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

var errNotInitialized = errors.New("postgres backend not initialized")

// Backend connects to Postgres and delegates to the GORM backend.
type Backend struct {
	cfg   config.PostgresConfig
	ref   geo.Georef
	log   zerolog.Logger
	inner *gormstorage.Backend
}

// New creates a new Postgres storage backend. No connection is made until Init.
func New(cfg config.PostgresConfig, ref geo.Georef, log zerolog.Logger) *Backend {
	return &Backend{cfg: cfg, ref: ref, log: log}
}

// Init connects, validates the connection and migrates the schema.
func (b *Backend) Init() error {
	b.log.Debug().Str("host", b.cfg.Host).Str("port", b.cfg.Port).Str("database", b.cfg.Database).
		Msg("Connecting to Postgres DB")

	db, err := database.GetPostgresDB(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	b.log.Info().Msg("Connected to database")

	inner := gormstorage.New(gormstorage.Dependencies{DB: db, Georef: b.ref, Logger: b.log})
	if err := inner.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.inner = inner
	return nil
}

// Close flushes pending writes and closes the pool.
func (b *Backend) Close() error {
	if b.inner == nil {
		return nil
	}
	flushErr := b.inner.Close()
	sqlDB, err := b.inner.DB().DB()
	if err == nil {
		err = sqlDB.Close()
	}
	b.inner = nil
	if flushErr != nil {
		return flushErr
	}
	return err
}

// StartEpisode delegates to the GORM backend.
func (b *Backend) StartEpisode(e *core.Episode) error {
	if b.inner == nil {
		return errNotInitialized
	}
	return b.inner.StartEpisode(e)
}

// RecordStep delegates to the GORM backend.
func (b *Backend) RecordStep(s *core.StepRecord) error {
	if b.inner == nil {
		return errNotInitialized
	}
	return b.inner.RecordStep(s)
}

// EndEpisode delegates to the GORM backend.
func (b *Backend) EndEpisode(s *core.EpisodeSummary) error {
	if b.inner == nil {
		return errNotInitialized
	}
	return b.inner.EndEpisode(s)
}
