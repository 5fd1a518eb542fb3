package env

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wlsgn1217/MARBLER/internal/executor"
	"github.com/wlsgn1217/MARBLER/internal/observation"
	"github.com/wlsgn1217/MARBLER/internal/reward"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// scripted places agents on Reset and then either teleports them through
// moves or copies the commanded goals.
type scripted struct {
	start   core.Poses
	moves   []core.Poses
	message string
	frames  []core.Poses
	calls   int
	goals   []core.Poses
}

func (s *scripted) Reset(poses core.Poses) {
	s.calls = 0
	if s.start != nil {
		copy(poses, s.start)
	}
}

func (s *scripted) Step(poses, goals core.Poses, _ []core.Action) executor.Outcome {
	s.goals = append(s.goals, goals.Clone())
	if s.calls < len(s.moves) && s.moves[s.calls] != nil {
		copy(poses, s.moves[s.calls])
	} else {
		copy(poses, goals)
	}
	s.calls++
	return executor.Outcome{
		Message:  s.message,
		Distance: make([]float64, len(poses)),
		Frames:   s.frames,
	}
}

func singleAgent() Config {
	cfg := DefaultConfig()
	cfg.NumAgents = 1
	cfg.Seed = 42
	return cfg
}

func noop(n int) []core.Action {
	actions := make([]core.Action, n)
	for i := range actions {
		actions[i] = core.ActionNone
	}
	return actions
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NumAgents = 0
	_, err := New(cfg, executor.Direct{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Arena.Left, cfg.Arena.Right = 1, -1
	_, err = New(cfg, executor.Direct{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, core.ErrInvalidArena)

	_, err = New(DefaultConfig(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_DefaultLayout(t *testing.T) {
	w, err := New(DefaultConfig(), executor.Direct{})
	require.NoError(t, err)

	assert.Len(t, w.Obstacles(), 4)
	assert.Len(t, w.Zones(), 6)
	assert.Equal(t, 4, w.NumAgents())
	assert.Equal(t, core.NumActions, w.ActionSpace())
	assert.Equal(t, Space{Dim: 12, Low: -2, High: 2}, w.ObservationSpace())

	for i, a := range w.Agents() {
		assert.Equal(t, i, a.Index)
	}
}

func TestReset_ReturnsZeroObservations(t *testing.T) {
	w, err := New(DefaultConfig(), executor.Direct{})
	require.NoError(t, err)

	obs := w.Reset()
	require.Len(t, obs, 4)
	for _, o := range obs {
		assert.Len(t, o, observation.Dim(3))
		for _, v := range o {
			assert.Zero(t, v)
		}
	}
	assert.Zero(t, w.Steps())
	assert.NotEmpty(t, w.EpisodeID())
	assert.Len(t, w.Poses(), 4)
}

func TestReset_SeedIsDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 7

	a, err := New(cfg, executor.Direct{})
	require.NoError(t, err)
	b, err := New(cfg, executor.Direct{})
	require.NoError(t, err)

	a.Reset()
	b.Reset()
	assert.Equal(t, a.Poses(), b.Poses())
	assert.NotEqual(t, a.EpisodeID(), b.EpisodeID())
}

func TestReset_ClearsLoadStateAndSteps(t *testing.T) {
	exec := &scripted{start: core.Poses{{X: -1.4, Y: 0.5}}}
	w, err := New(singleAgent(), exec)
	require.NoError(t, err)

	w.Reset()
	_, err = w.Step(noop(1))
	require.NoError(t, err)
	require.Equal(t, []core.LoadState{core.Loaded}, w.LoadStates())

	w.Reset()
	assert.Equal(t, []core.LoadState{core.Unloaded}, w.LoadStates())
	assert.Zero(t, w.Steps())
}

func TestStep_BeforeReset(t *testing.T) {
	w, err := New(DefaultConfig(), executor.Direct{})
	require.NoError(t, err)

	_, err = w.Step(noop(4))
	assert.ErrorIs(t, err, ErrNotReset)
}

func TestStep_RejectsBadActions(t *testing.T) {
	w, err := New(DefaultConfig(), executor.Direct{})
	require.NoError(t, err)
	w.Reset()

	_, err = w.Step(noop(3))
	assert.ErrorIs(t, err, ErrActionCount)

	actions := noop(4)
	actions[2] = core.Action(9)
	_, err = w.Step(actions)
	assert.ErrorIs(t, err, ErrInvalidAction)

	assert.Zero(t, w.Steps(), "rejected steps must not advance the counter")
}

func TestStep_NoActionKeepsPoses(t *testing.T) {
	w, err := New(DefaultConfig(), executor.Direct{})
	require.NoError(t, err)
	w.Reset()
	before := w.Poses()

	res, err := w.Step(noop(4))
	require.NoError(t, err)

	assert.Equal(t, before, w.Poses())
	assert.Equal(t, 1, w.Steps())
	assert.Len(t, res.Observations, 4)
	assert.Len(t, res.Rewards, 4)
	assert.Equal(t, []bool{false, false, false, false}, res.Terminated)
	assert.Empty(t, res.Info.Message)
	assert.Equal(t, []float64{0, 0, 0, 0}, res.Info.DistTravelled)
}

func TestStep_ObservationsReflectMovedPose(t *testing.T) {
	exec := &scripted{start: core.Poses{{X: 0, Y: 0.5}}}
	w, err := New(singleAgent(), exec)
	require.NoError(t, err)
	w.Reset()

	res, err := w.Step([]core.Action{core.ActionLeft})
	require.NoError(t, err)

	require.Len(t, exec.goals, 1)
	assert.InDelta(t, -0.1, exec.goals[0][0].X, 1e-9)
	assert.InDelta(t, 0.5, exec.goals[0][0].Y, 1e-9)

	obs := res.Observations[0]
	require.Len(t, obs, observation.Dim(3))
	assert.InDelta(t, -0.1, obs[0], 1e-9)
	assert.InDelta(t, 0.5, obs[1], 1e-9)
	assert.Zero(t, obs[2])
	assert.Equal(t, make([]float64, 9), obs[3:], "missing neighbours are zero padded")
}

func TestStep_LoadThenUnload(t *testing.T) {
	exec := &scripted{
		start: core.Poses{{X: -1.4, Y: 0.5}},
		moves: []core.Poses{nil, {{X: 0.25, Y: -0.85}}},
	}
	w, err := New(singleAgent(), exec)
	require.NoError(t, err)
	w.Reset()

	res, err := w.Step(noop(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, res.Rewards)
	assert.Equal(t, 1, res.Loads)
	assert.Zero(t, res.Observations[0][2], "observation is built before the reward update")

	res, err = w.Step(noop(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, res.Rewards)
	assert.Equal(t, 1, res.Unloads)
	assert.Equal(t, 1.0, res.Observations[0][2])
	assert.Equal(t, []core.LoadState{core.Unloaded}, w.LoadStates())
}

func TestStep_TerminatesAfterMaxSteps(t *testing.T) {
	cfg := singleAgent()
	cfg.MaxEpisodeSteps = 2
	exec := &scripted{start: core.Poses{{X: 0, Y: 0.5}}}
	w, err := New(cfg, exec)
	require.NoError(t, err)
	w.Reset()

	for i := 0; i < 2; i++ {
		res, err := w.Step(noop(1))
		require.NoError(t, err)
		assert.False(t, res.Done(), "step %d", i+1)
	}
	res, err := w.Step(noop(1))
	require.NoError(t, err)
	assert.True(t, res.Done())
	assert.Equal(t, []float64{0}, res.Rewards)
}

func TestStep_ExecutorMessageTerminates(t *testing.T) {
	exec := &scripted{
		start:   core.Poses{{X: -1.4, Y: 0.5}, {X: 0, Y: 0.5}},
		message: "diverged",
	}
	cfg := singleAgent()
	cfg.NumAgents = 2
	w, err := New(cfg, exec)
	require.NoError(t, err)
	w.Reset()

	res, err := w.Step(noop(2))
	require.NoError(t, err)
	assert.Equal(t, reward.Penalty(2), res.Rewards)
	assert.Equal(t, []bool{true, true}, res.Terminated)
	assert.Equal(t, "diverged", res.Info.Message)
	assert.Equal(t, []core.LoadState{core.Unloaded, core.Unloaded}, w.LoadStates(),
		"rewards are not evaluated on executor termination")
}

func TestStep_FramesOnlyWhenEnabled(t *testing.T) {
	frames := []core.Poses{{{X: 0, Y: 0.5}}}

	exec := &scripted{start: core.Poses{{X: 0, Y: 0.5}}, frames: frames}
	w, err := New(singleAgent(), exec)
	require.NoError(t, err)
	w.Reset()
	res, err := w.Step(noop(1))
	require.NoError(t, err)
	assert.Nil(t, res.Info.Frames)

	cfg := singleAgent()
	cfg.SaveFrames = true
	exec = &scripted{start: core.Poses{{X: 0, Y: 0.5}}, frames: frames}
	w, err = New(cfg, exec)
	require.NoError(t, err)
	w.Reset()
	res, err = w.Step(noop(1))
	require.NoError(t, err)
	assert.Equal(t, frames, res.Info.Frames)
}

func TestStep_BlockedGoalIsRedirected(t *testing.T) {
	// Right of (0.05, 0) lands inside the inflated first shelving column.
	exec := &scripted{start: core.Poses{{X: 0.05, Y: 0}}}
	w, err := New(singleAgent(), exec)
	require.NoError(t, err)
	w.Reset()

	_, err = w.Step([]core.Action{core.ActionRight})
	require.NoError(t, err)

	goal := exec.goals[0][0]
	assert.Less(t, goal.X, 0.15, "goal must stay clear of the shelving column")
}

func TestRecord(t *testing.T) {
	exec := &scripted{start: core.Poses{{X: -1.4, Y: 0.5}}}
	w, err := New(singleAgent(), exec)
	require.NoError(t, err)
	w.Reset()

	actions := []core.Action{core.ActionDown}
	res, err := w.Step(actions)
	require.NoError(t, err)

	rec := w.Record(actions, res)
	assert.Equal(t, w.EpisodeID(), rec.EpisodeID)
	assert.Equal(t, 1, rec.Step)
	assert.False(t, rec.Terminated)
	require.Len(t, rec.Agents, 1)
	assert.Equal(t, core.ActionDown, rec.Agents[0].Action)
	assert.True(t, rec.Agents[0].Loaded)
	assert.Equal(t, 1.0, rec.Agents[0].Reward)
	assert.InDelta(t, 0.6, rec.Agents[0].Pose.Y, 1e-9)
	assert.Equal(t, rec.Agents[0].Pose, rec.Agents[0].Goal)
	assert.Equal(t, 1.0, rec.TotalReward())

	ep := w.Episode()
	assert.Equal(t, w.EpisodeID(), ep.ID)
	assert.Equal(t, int64(42), ep.Seed)
	assert.Equal(t, 1, ep.NumAgents)
	assert.Len(t, ep.Zones, 6)
}

func TestWithRand(t *testing.T) {
	cfg := DefaultConfig()
	a, err := New(cfg, executor.Direct{}, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	b, err := New(cfg, executor.Direct{}, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)

	a.Reset()
	b.Reset()
	assert.Equal(t, a.Poses(), b.Poses())
}

func TestFrameShift(t *testing.T) {
	dx, dy := frameShift(DefaultConfig().Arena)
	assert.Zero(t, dx)
	assert.Zero(t, dy)

	dx, dy = frameShift(core.Arena{Left: -1, Right: 1.5, Up: -1, Down: 0.5})
	assert.InDelta(t, 0.25, dx, 1e-9)
	assert.InDelta(t, 0.25, dy, 1e-9)
}

func TestConfig_Layout(t *testing.T) {
	cfg := DefaultConfig()
	obstacles, zones := cfg.Layout()
	assert.Equal(t, DefaultObstacles(), obstacles)
	assert.Equal(t, DefaultZones(0.3), zones)

	cfg.Obstacles = []core.Obstacle{{X: 0, Y: 0, Width: 0.1, Height: 0.1}}
	obstacles, zones = cfg.Layout()
	assert.Len(t, obstacles, 1)
	assert.Len(t, zones, 6)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero step", func(c *Config) { c.StepDist = 0 }},
		{"negative neighbours", func(c *Config) { c.NumNeighbors = -1 }},
		{"negative start", func(c *Config) { c.StartDist = -0.1 }},
		{"zero max steps", func(c *Config) { c.MaxEpisodeSteps = 0 }},
		{"flat obstacle", func(c *Config) { c.Obstacles = []core.Obstacle{{Width: 1}} }},
		{"flat zone", func(c *Config) { c.Zones = []core.Zone{{Rect: core.Rect{Height: 1}}} }},
	}

	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
