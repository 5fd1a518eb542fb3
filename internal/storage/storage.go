// internal/storage/storage.go
package storage

import "github.com/wlsgn1217/MARBLER/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Episode management
	StartEpisode(e *core.Episode) error
	EndEpisode(s *core.EpisodeSummary) error

	// Step recording
	RecordStep(s *core.StepRecord) error
}

// Exportable is an optional interface for storage backends that write one
// file per episode.
type Exportable interface {
	ExportedFilePath() string
}
