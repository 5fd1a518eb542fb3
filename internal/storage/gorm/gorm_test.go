package gormstorage

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wlsgn1217/MARBLER/internal/database"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/internal/model"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

func newTestBackend(t *testing.T, flushSize int) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB("")
	require.NoError(t, err)
	ref, err := geo.NewGeoref(0, 0)
	require.NoError(t, err)

	b := New(Dependencies{DB: db, Georef: ref, Logger: zerolog.Nop(), FlushSize: flushSize})
	require.NoError(t, b.Init())
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return b
}

func episode() *core.Episode {
	return &core.Episode{
		ID:        "episode-1",
		StartTime: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Seed:      3,
		NumAgents: 2,
		Arena:     core.Arena{Left: -1.5, Right: 1.5, Up: -1, Down: 1},
		Spawns:    core.Poses{{X: -1}, {X: 1}},
	}
}

func step(n int) *core.StepRecord {
	return &core.StepRecord{
		EpisodeID: "episode-1",
		Step:      n,
		Time:      time.Date(2026, 3, 1, 12, 0, n, 0, time.UTC),
		Agents: []core.AgentStep{
			{Index: 0, Pose: core.Pose{X: 0.5, Y: 0.25}, Action: core.ActionRight, Reward: 1, Loaded: true},
			{Index: 1, Pose: core.Pose{X: -0.5}, Action: core.ActionNone},
		},
	}
}

func TestNew_DefaultFlushSize(t *testing.T) {
	b := New(Dependencies{})
	assert.Equal(t, DefaultFlushSize, b.deps.FlushSize)
	assert.Error(t, b.Init())
}

func TestRecordStep_WithoutEpisode(t *testing.T) {
	b := newTestBackend(t, 0)
	assert.ErrorIs(t, b.RecordStep(step(1)), ErrNoEpisode)
	assert.ErrorIs(t, b.EndEpisode(&core.EpisodeSummary{}), ErrNoEpisode)
}

func TestEpisodeLifecycle(t *testing.T) {
	b := newTestBackend(t, 0)

	require.NoError(t, b.StartEpisode(episode()))
	require.NoError(t, b.RecordStep(step(1)))
	require.NoError(t, b.RecordStep(step(2)))

	// below the flush size nothing is written yet
	var count int64
	require.NoError(t, b.DB().Model(&model.AgentState{}).Count(&count).Error)
	assert.Zero(t, count)

	require.NoError(t, b.EndEpisode(&core.EpisodeSummary{
		EpisodeID:   "episode-1",
		EndTime:     time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC),
		Steps:       2,
		TotalReward: 2,
		Loads:       1,
		Message:     "boundary",
	}))

	var ep model.Episode
	require.NoError(t, b.DB().Where("uuid = ?", "episode-1").First(&ep).Error)
	assert.Equal(t, 2, ep.Steps)
	assert.Equal(t, 2.0, ep.TotalReward)
	assert.Equal(t, "boundary", ep.Message)
	assert.Equal(t, int64(3), ep.Seed)

	var steps []model.Step
	require.NoError(t, b.DB().Order("number").Find(&steps).Error)
	require.Len(t, steps, 2)
	assert.Equal(t, ep.ID, steps[0].EpisodeID)
	assert.Equal(t, 1.0, steps[1].Reward)

	var states []model.AgentState
	require.NoError(t, b.DB().Where("step_number = ?", 2).Order("agent_index").Find(&states).Error)
	require.Len(t, states, 2)
	assert.Equal(t, "right", states[0].Action)
	assert.True(t, states[0].Loaded)
	assert.Equal(t, 0.5, states[0].X)
}

func TestRecordStep_FlushesAtThreshold(t *testing.T) {
	b := newTestBackend(t, 2)

	require.NoError(t, b.StartEpisode(episode()))
	require.NoError(t, b.RecordStep(step(1)))

	var count int64
	require.NoError(t, b.DB().Model(&model.AgentState{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
	assert.Zero(t, b.states.Len())
}

func TestClose_FlushesQueue(t *testing.T) {
	b := newTestBackend(t, 0)

	require.NoError(t, b.StartEpisode(episode()))
	require.NoError(t, b.RecordStep(step(1)))
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, b.DB().Model(&model.Step{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
