// Package sqlitestorage implements the storage.Backend interface using SQLite.
// It wraps the GORM backend; the only SQLite-specific concerns are opening the
// database and, for in-memory databases, dumping to disk via VACUUM INTO when
// an episode ends.
package sqlitestorage

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/internal/database"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	gormstorage "github.com/wlsgn1217/MARBLER/internal/storage/gorm"
	"github.com/wlsgn1217/MARBLER/pkg/core"
	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db  *gorm.DB
	cfg config.SQLiteConfig
	log zerolog.Logger
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, ref geo.Georef, log zerolog.Logger) (*Backend, error) {
	db, err := database.GetSqliteDB(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite DB: %w", err)
	}
	if cfg.Path != "" {
		log.Info().Str("path", cfg.Path).Msg("Using local SQLite DB")
	} else {
		log.Info().Str("dumpPath", cfg.DumpPath).Msg("Using in-memory SQLite DB with disk dump per episode")
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{
			DB:     db,
			Georef: ref,
			Logger: log,
		}),
		db:  db,
		cfg: cfg,
		log: log,
	}, nil
}

// EndEpisode finalizes the episode and snapshots an in-memory database.
func (b *Backend) EndEpisode(s *core.EpisodeSummary) error {
	if err := b.Backend.EndEpisode(s); err != nil {
		return err
	}
	return b.dump()
}

// Close flushes the GORM backend and closes the connection.
func (b *Backend) Close() error {
	flushErr := b.Backend.Close()
	sqlDB, err := b.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	return flushErr
}

// dump writes the in-memory database to DumpPath. VACUUM INTO creates a
// point-in-time snapshot, so recording can continue immediately.
func (b *Backend) dump() error {
	if b.cfg.Path != "" || b.cfg.DumpPath == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		b.log.Error().Err(err).Msg("Error dumping to disk")
		return err
	}
	b.log.Debug().Dur("duration", time.Since(start)).Str("path", b.cfg.DumpPath).Msg("Dumped to disk")
	return nil
}
