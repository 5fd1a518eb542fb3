// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	gormstorage "github.com/wlsgn1217/MARBLER/internal/storage/gorm"
	"github.com/wlsgn1217/MARBLER/internal/storage/memory"
	"github.com/wlsgn1217/MARBLER/internal/storage/postgres"
	sqlitestorage "github.com/wlsgn1217/MARBLER/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, ref geo.Georef, log zerolog.Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, ref, log), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, ref, log)
	case "memory":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

var (
	_ Backend    = (*memory.Backend)(nil)
	_ Exportable = (*memory.Backend)(nil)
	_ Backend    = (*gormstorage.Backend)(nil)
	_ Backend    = (*sqlitestorage.Backend)(nil)
	_ Backend    = (*postgres.Backend)(nil)
)
