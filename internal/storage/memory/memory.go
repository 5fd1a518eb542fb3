// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// ErrNoEpisode is returned when steps arrive outside an episode
var ErrNoEpisode = errors.New("no episode in progress")

// Backend stores episode data in memory and exports each episode to JSON
type Backend struct {
	cfg     config.MemoryConfig
	episode *core.Episode
	steps   []core.StepRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartEpisode begins recording a new episode, discarding anything unexported
func (b *Backend) StartEpisode(e *core.Episode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.episode = e
	b.steps = nil
	return nil
}

// RecordStep appends a step. The record is copied, callers may reuse it.
func (b *Backend) RecordStep(s *core.StepRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.episode == nil {
		return ErrNoEpisode
	}
	rec := *s
	rec.Agents = append([]core.AgentStep(nil), s.Agents...)
	b.steps = append(b.steps, rec)
	return nil
}

// EndEpisode finalizes and exports the episode data
func (b *Backend) EndEpisode(s *core.EpisodeSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.episode == nil {
		return ErrNoEpisode
	}
	err := b.exportJSON(s)
	b.episode = nil
	b.steps = nil
	return err
}

// ExportedFilePath returns the path of the last exported episode
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// StepCount returns the number of steps held for the current episode
func (b *Backend) StepCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.steps)
}
