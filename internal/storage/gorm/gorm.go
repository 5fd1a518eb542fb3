// Package gormstorage implements the storage.Backend interface on any GORM
// dialect. Steps and agent states are queued and written in batches.
package gormstorage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wlsgn1217/MARBLER/internal/database"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/internal/model"
	"github.com/wlsgn1217/MARBLER/internal/model/convert"
	"github.com/wlsgn1217/MARBLER/internal/queue"
	"github.com/wlsgn1217/MARBLER/pkg/core"
	"gorm.io/gorm"
)

// DefaultFlushSize is the number of queued agent states that triggers a write
const DefaultFlushSize = 2000

// ErrNoEpisode is returned when steps arrive outside an episode
var ErrNoEpisode = errors.New("no episode in progress")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB        *gorm.DB
	Georef    geo.Georef
	Logger    zerolog.Logger
	FlushSize int
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps    Dependencies
	steps   *queue.Batch[model.Step]
	states  *queue.Batch[model.AgentState]
	episode *model.Episode

	mu sync.Mutex
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.FlushSize <= 0 {
		deps.FlushSize = DefaultFlushSize
	}
	return &Backend{
		deps:   deps,
		steps:  queue.NewBatch[model.Step](deps.FlushSize),
		states: queue.NewBatch[model.AgentState](deps.FlushSize),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	b.deps.Logger.Info().Msg("Migrating schema")
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}
	b.deps.Logger.Info().Msg("Database setup complete")
	return nil
}

// Close flushes anything still queued.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush()
}

// StartEpisode inserts the episode row so steps can reference it.
func (b *Backend) StartEpisode(e *core.Episode) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.flush(); err != nil {
		return err
	}

	m := convert.CoreToEpisode(e, b.deps.Georef)
	if err := b.deps.DB.Create(&m).Error; err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}
	b.episode = &m
	b.deps.Logger.Debug().Str("episode", e.ID).Uint("id", m.ID).Msg("Episode stored")
	return nil
}

// RecordStep converts and queues a step with its agent states.
func (b *Backend) RecordStep(s *core.StepRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.episode == nil {
		return ErrNoEpisode
	}
	step, states := convert.CoreToStep(b.episode.ID, s, b.deps.Georef)
	stepsDue := b.steps.Add(step)
	statesDue := b.states.Add(states...)

	if stepsDue || statesDue {
		return b.flush()
	}
	return nil
}

// EndEpisode writes the remaining queue and the episode totals.
func (b *Backend) EndEpisode(s *core.EpisodeSummary) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.episode == nil {
		return ErrNoEpisode
	}
	if err := b.flush(); err != nil {
		return err
	}

	convert.ApplySummary(b.episode, s)
	err := b.deps.DB.Model(b.episode).Select(
		"EndTime", "Steps", "TotalReward", "Loads", "Unloads", "Distance", "Message",
	).Updates(b.episode).Error
	b.episode = nil
	if err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}
	return nil
}

// flush drains both queues. Callers hold b.mu.
func (b *Backend) flush() error {
	if err := writeQueue(b.deps.DB, b.steps, "steps", b.deps.Logger); err != nil {
		return err
	}
	return writeQueue(b.deps.DB, b.states, "agent states", b.deps.Logger)
}

// writeQueue writes everything buffered in a batch in one transaction.
// Items are requeued on failure.
func writeQueue[T any](db *gorm.DB, q *queue.Batch[T], name string, log zerolog.Logger) error {
	if q.Len() == 0 {
		return nil
	}

	tx := db.Begin()
	items := q.Drain()
	if err := tx.Create(&items).Error; err != nil {
		log.Error().Err(err).Str("queue", name).Msg("Error writing queue")
		tx.Rollback()
		q.Requeue(items)
		return fmt.Errorf("error creating %s: %w", name, err)
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items)
		return fmt.Errorf("error committing %s: %w", name, err)
	}

	log.Debug().Str("queue", name).Int("count", len(items)).Msg("Wrote queue")
	return nil
}
