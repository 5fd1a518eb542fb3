// internal/storage/storage_test.go
package storage_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/internal/storage"
	"github.com/wlsgn1217/MARBLER/internal/storage/memory"
	sqlitestorage "github.com/wlsgn1217/MARBLER/internal/storage/sqlite"
)

func TestNewBackend(t *testing.T) {
	ref, err := geo.NewGeoref(0, 0)
	require.NoError(t, err)

	b, err := storage.NewBackend(config.StorageConfig{Type: "memory", Memory: config.MemoryConfig{OutputDir: t.TempDir()}}, ref, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)
	_, ok := b.(storage.Exportable)
	assert.True(t, ok)

	b, err = storage.NewBackend(config.StorageConfig{Type: "sqlite"}, ref, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &sqlitestorage.Backend{}, b)
	require.NoError(t, b.Close())

	_, err = storage.NewBackend(config.StorageConfig{Type: "parquet"}, ref, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown storage type")
}
