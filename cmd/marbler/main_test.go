package main

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wlsgn1217/MARBLER/internal/config"
	"github.com/wlsgn1217/MARBLER/internal/env"
	"github.com/wlsgn1217/MARBLER/internal/executor"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

type countingSink struct {
	mu      sync.Mutex
	started []*core.Episode
	steps   int
	ended   []core.EpisodeSummary
}

func (s *countingSink) StartEpisode(e *core.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, e)
	return nil
}

func (s *countingSink) RecordStep(*core.StepRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps++
	return nil
}

func (s *countingSink) EndEpisode(sum *core.EpisodeSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, *sum)
	return nil
}

func newTestDriver(t *testing.T, maxSteps int) (*driver, *countingSink) {
	cfg := env.DefaultConfig()
	cfg.Seed = 3
	cfg.MaxEpisodeSteps = maxSteps

	w, err := env.New(cfg, executor.Direct{}, env.WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)

	sink := &countingSink{}
	return &driver{
		env:        w,
		sink:       sink,
		rng:        rand.New(rand.NewPCG(1, 2)),
		logger:     slog.New(slog.DiscardHandler),
		progress:   &progress{},
		originLong: 8.5,
		originLat:  47.4,
	}, sink
}

func TestDriver_Run(t *testing.T) {
	d, sink := newTestDriver(t, 10)
	flushed := 0
	d.afterEpisode = func(context.Context) error {
		flushed++
		return nil
	}

	summaries, err := d.Run(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	for _, s := range summaries {
		assert.Equal(t, 11, s.Steps, "an episode ends once the step count exceeds the maximum")
		assert.NotEmpty(t, s.EpisodeID)
		assert.False(t, s.EndTime.IsZero())
		assert.GreaterOrEqual(t, s.Distance, 0.0)
	}
	assert.NotEqual(t, summaries[0].EpisodeID, summaries[1].EpisodeID)

	require.Len(t, sink.started, 2)
	assert.Equal(t, 8.5, sink.started[0].OriginLong)
	assert.Equal(t, 47.4, sink.started[0].OriginLat)
	assert.Equal(t, 22, sink.steps)
	assert.Len(t, sink.ended, 2)
	assert.Equal(t, 2, flushed)
}

func TestDriver_Cancelled(t *testing.T) {
	d, sink := newTestDriver(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summaries, err := d.Run(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, summaries, 1)
	assert.Zero(t, summaries[0].Steps)
	assert.Len(t, sink.ended, 1, "the interrupted episode is still closed")
}

func TestProgress_Attrs(t *testing.T) {
	p := &progress{}
	assert.Nil(t, p.attrs())

	p.set("ep", 4)
	attrs := p.attrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "ep", attrs[0].Value.String())
	assert.Equal(t, int64(4), attrs[1].Value.Int64())
}

func TestBuildLayout_Default(t *testing.T) {
	report := buildLayout(env.DefaultConfig())

	assert.Len(t, report.Obstacles, 4)
	require.Len(t, report.Zones, 6)
	assert.Equal(t, "Load Zone 1", report.Zones[0].Label)
	assert.Equal(t, "Unload 4", report.Zones[5].Label)

	require.Len(t, report.Overlaps, 4)
	assert.Equal(t, overlapReport{Zone: "Unload 1", Obstacle: 0}, report.Overlaps[0])
}

func TestWriteLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeLayout(&buf, env.DefaultConfig()))

	var decoded struct {
		Arena core.Arena `yaml:"arena"`
		Zones []struct {
			Label string        `yaml:"label"`
			Kind  core.ZoneKind `yaml:"kind"`
			Color string        `yaml:"color"`
		} `yaml:"zones"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, env.DefaultConfig().Arena, decoded.Arena)
	require.Len(t, decoded.Zones, 6)
	assert.Equal(t, core.ZoneUnload, decoded.Zones[2].Kind)
	assert.Equal(t, "green", decoded.Zones[2].Color)
}

func writeConfig(t *testing.T, body string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(body), 0644))
	return dir
}

func TestRunCommand(t *testing.T) {
	t.Cleanup(viper.Reset)
	out := t.TempDir()
	dir := writeConfig(t, `
logsDir: `+filepath.Join(out, "logs")+`
env:
  maxEpisodeSteps: 5
  episodes: 1
storage:
  type: memory
  memory:
    outputDir: `+filepath.Join(out, "recordings")+`
    compressOutput: false
`)

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"run", "--config", dir, "--episodes", "2", "--seed", "9"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "steps=6")
	assert.True(t, strings.HasPrefix(lines[2], "last export: "))

	exports, err := filepath.Glob(filepath.Join(out, "recordings", "*.json"))
	require.NoError(t, err)
	assert.Len(t, exports, 2)

	logs, err := filepath.Glob(filepath.Join(out, "logs", "marbler-*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestRunCommand_UnknownStorage(t *testing.T) {
	t.Cleanup(viper.Reset)
	out := t.TempDir()
	dir := writeConfig(t, `
logsDir: `+filepath.Join(out, "logs")+`
storage:
  type: nosuch
`)

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--config", dir})
	assert.ErrorContains(t, cmd.Execute(), "unknown storage type")
}

func TestLayoutCommand(t *testing.T) {
	t.Cleanup(viper.Reset)
	dir := writeConfig(t, `
env:
  obstacles:
    - [0, 0, 0.2, 0.2]
  goalZones:
    - [-1.4, -0.5, 0.2, 0.2, load, red]
    - [1.0, 0.5, 0.2, 0.2, unload, green]
`)

	cmd := newRootCmd()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"layout", "--config", dir})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, stdout.String(), "label: Load Zone 1")
	assert.Contains(t, stdout.String(), "label: Unload 1")
	assert.NotContains(t, stdout.String(), "overlaps:")
}
