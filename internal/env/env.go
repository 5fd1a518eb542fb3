// Package env is the multi-agent warehouse environment: reset/step cycles over
// goal generation, an external motion executor and the reward state machine.
package env

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wlsgn1217/MARBLER/internal/agent"
	"github.com/wlsgn1217/MARBLER/internal/executor"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/internal/observation"
	"github.com/wlsgn1217/MARBLER/internal/reward"
	"github.com/wlsgn1217/MARBLER/internal/spawn"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

var (
	// ErrNotReset is returned by Step before the first Reset
	ErrNotReset = errors.New("environment has not been reset")
	// ErrActionCount is returned when the action list does not match the agent count
	ErrActionCount = errors.New("wrong number of actions")
	// ErrInvalidAction is returned for an action outside the five known commands
	ErrInvalidAction = errors.New("invalid action")
)

// Physical testbed half extents. Reset shifts spawns so that a configured
// arena narrower than the testbed stays centred on it.
const (
	PhysicalHalfWidth  = 1.5
	PhysicalHalfHeight = 1.0
)

// Info is the per-step side channel
type Info struct {
	Message       string       `json:"message,omitempty"`
	DistTravelled []float64    `json:"dist_travelled"`
	Frames        []core.Poses `json:"frames,omitempty"`
}

// StepResult is everything Step returns.
// Goals, Loads and Unloads are bookkeeping for recorders.
type StepResult struct {
	Observations [][]float64
	Rewards      []float64
	Terminated   []bool
	Info         Info

	Goals   core.Poses
	Loads   int
	Unloads int
}

// Done reports whether the episode is over for every agent.
func (r StepResult) Done() bool {
	for _, t := range r.Terminated {
		if !t {
			return false
		}
	}
	return len(r.Terminated) > 0
}

// Space describes the per-agent observation box
type Space struct {
	Dim  int
	Low  float64
	High float64
}

// Option configures a Warehouse
type Option func(*Warehouse)

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Warehouse) {
		w.logger = logger
	}
}

// WithRand replaces the seeded random source.
func WithRand(rng *rand.Rand) Option {
	return func(w *Warehouse) {
		w.rng = rng
	}
}

// Warehouse is the episode orchestrator. It is not safe for concurrent use.
type Warehouse struct {
	cfg       Config
	obstacles []core.Obstacle
	zones     []core.Zone
	agents    []*agent.Agent
	poses     core.Poses
	exec      executor.Executor
	engine    reward.Engine
	rng       *rand.Rand
	seed      int64
	logger    *slog.Logger
	inst      *instruments

	ready     bool
	steps     int
	episodeID string
	startTime time.Time
	placement spawn.Placement
}

// New builds a warehouse around the given executor.
func New(cfg Config, exec executor.Executor, opts ...Option) (*Warehouse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: nil executor", ErrInvalidConfig)
	}

	obstacles, zones := cfg.Layout()
	w := &Warehouse{
		cfg:       cfg,
		obstacles: obstacles,
		zones:     zones,
		exec:      exec,
		engine: reward.Engine{
			Zones:   zones,
			Rewards: reward.Rewards{Load: cfg.LoadReward, Unload: cfg.UnloadReward},
		},
		seed: cfg.Seed,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.rng == nil {
		seed := uint64(cfg.Seed)
		if cfg.Seed == -1 {
			seed = rand.Uint64()
			w.seed = int64(seed)
		}
		w.rng = rand.New(rand.NewPCG(seed, seed))
	}

	inst, err := newInstruments()
	if err != nil {
		return nil, err
	}
	w.inst = inst

	w.agents = make([]*agent.Agent, cfg.NumAgents)
	for i := range w.agents {
		w.agents[i] = agent.New(i)
	}

	labels := core.ZoneLabels(zones)
	for _, o := range geo.Overlaps(zones, obstacles, geo.RobotRadius) {
		w.logger.Warn("Zone overlaps inflated obstacle",
			"zone", labels[o.Zone], "obstacle", o.Obstacle)
	}

	return w, nil
}

// Reset starts a new episode and returns zero placeholder observations.
func (w *Warehouse) Reset() [][]float64 {
	w.steps = 0
	for _, a := range w.agents {
		a.State = core.Unloaded
	}

	w.placement = spawn.Generate(w.rng, spawn.Request{
		N:             w.cfg.NumAgents,
		Arena:         w.cfg.Arena,
		Obstacles:     w.obstacles,
		MinSeparation: w.cfg.StartDist,
		MaxAttempts:   w.cfg.SpawnAttempts,
	}, w.logger)
	if fallback := len(w.placement.Poses) - w.placement.Sampled; fallback > 0 {
		w.inst.spawnFallback.Add(context.Background(), int64(fallback))
	}

	dx, dy := frameShift(w.cfg.Arena)
	w.poses = w.placement.Poses.Clone()
	for i := range w.poses {
		w.poses[i].X += dx
		w.poses[i].Y += dy
	}

	w.exec.Reset(w.poses)
	w.episodeID = uuid.NewString()
	w.startTime = time.Now()
	w.ready = true

	w.logger.Debug("Episode reset", "episode", w.episodeID, "agents", len(w.agents),
		"sampled", w.placement.Sampled, "attempts", w.placement.Attempts)

	return observation.Zeros(len(w.agents), w.cfg.NumNeighbors)
}

// frameShift maps arena coordinates onto the physical testbed frame.
func frameShift(a core.Arena) (dx, dy float64) {
	dx = (PhysicalHalfWidth+a.Left)/2 - (PhysicalHalfWidth-a.Right)/2
	dy = -(PhysicalHalfHeight+a.Up)/2 + (PhysicalHalfHeight-a.Down)/2
	return dx, dy
}

// Step applies one action per agent.
func (w *Warehouse) Step(actions []core.Action) (StepResult, error) {
	if !w.ready {
		return StepResult{}, ErrNotReset
	}
	if len(actions) != len(w.agents) {
		return StepResult{}, fmt.Errorf("%w: got %d, want %d", ErrActionCount, len(actions), len(w.agents))
	}
	for i, a := range actions {
		if !a.Valid() {
			return StepResult{}, fmt.Errorf("%w: agent %d sent %d", ErrInvalidAction, i, int(a))
		}
	}

	ctx := context.Background()
	w.steps++
	w.inst.steps.Add(ctx, 1)

	goals := w.goals(ctx, actions)
	out := w.exec.Step(w.poses, goals, actions)

	res := StepResult{
		Observations: observation.Build(w.agents, w.poses, w.cfg.NumNeighbors),
		Goals:        goals,
		Info:         Info{DistTravelled: out.Distance},
	}
	if w.cfg.SaveFrames {
		res.Info.Frames = out.Frames
	}

	terminated := false
	if out.Message == "" {
		ev := w.engine.Evaluate(w.agents, w.poses)
		res.Rewards = ev.Rewards
		res.Loads = ev.Loads
		res.Unloads = ev.Unloads
		terminated = w.steps > w.cfg.MaxEpisodeSteps
	} else {
		w.logger.Warn("Ending episode due to executor message",
			"episode", w.episodeID, "step", w.steps, "message", out.Message)
		w.inst.terminations.Add(ctx, 1, metric.WithAttributes(attribute.String("message", out.Message)))
		res.Info.Message = out.Message
		res.Rewards = reward.Penalty(len(w.agents))
		terminated = true
	}

	res.Terminated = make([]bool, len(w.agents))
	for i := range res.Terminated {
		res.Terminated[i] = terminated
	}

	var total float64
	for _, r := range res.Rewards {
		total += r
	}
	w.inst.rewards.Add(ctx, total)

	return res, nil
}

// goals computes the commanded pose for every agent from a snapshot of the current poses.
func (w *Warehouse) goals(ctx context.Context, actions []core.Action) core.Poses {
	params := agent.Params{
		Arena:     w.cfg.Arena,
		StepDist:  w.cfg.StepDist,
		Obstacles: w.obstacles,
	}
	goals := w.poses.Clone()
	for i, a := range w.agents {
		g, outcome := agent.NextGoal(goals[a.Index], actions[i], params)
		goals[a.Index] = g
		w.inst.goals.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome.String())))
	}
	return goals
}

// Record converts a step result into the form recorders persist.
func (w *Warehouse) Record(actions []core.Action, res StepResult) *core.StepRecord {
	rec := &core.StepRecord{
		EpisodeID:  w.episodeID,
		Step:       w.steps,
		Time:       time.Now(),
		Message:    res.Info.Message,
		Terminated: res.Done(),
		Agents:     make([]core.AgentStep, len(w.agents)),
	}
	for i, a := range w.agents {
		as := core.AgentStep{
			Index:  a.Index,
			Pose:   w.poses[a.Index],
			Loaded: a.Loaded(),
		}
		if i < len(actions) {
			as.Action = actions[i]
		}
		if a.Index < len(res.Goals) {
			as.Goal = res.Goals[a.Index]
		}
		if i < len(res.Rewards) {
			as.Reward = res.Rewards[i]
		}
		if a.Index < len(res.Info.DistTravelled) {
			as.Distance = res.Info.DistTravelled[a.Index]
		}
		rec.Agents[i] = as
	}
	return rec
}

// Episode describes the current episode for recorders.
func (w *Warehouse) Episode() *core.Episode {
	return &core.Episode{
		ID:        w.episodeID,
		StartTime: w.startTime,
		Seed:      w.seed,
		NumAgents: len(w.agents),
		Arena:     w.cfg.Arena,
		Obstacles: w.obstacles,
		Zones:     w.zones,
		Spawns:    w.placement.Poses.Clone(),
		Sampled:   w.placement.Sampled,
	}
}

// EpisodeID returns the id assigned at the last Reset.
func (w *Warehouse) EpisodeID() string { return w.episodeID }

// Steps returns the number of steps taken since the last Reset.
func (w *Warehouse) Steps() int { return w.steps }

// NumAgents returns the configured robot count.
func (w *Warehouse) NumAgents() int { return len(w.agents) }

// Poses returns a copy of the actual agent poses.
func (w *Warehouse) Poses() core.Poses { return w.poses.Clone() }

// LoadStates returns every agent's load state by index.
func (w *Warehouse) LoadStates() []core.LoadState {
	out := make([]core.LoadState, len(w.agents))
	for _, a := range w.agents {
		out[a.Index] = a.State
	}
	return out
}

// Obstacles returns the resolved obstacle list.
func (w *Warehouse) Obstacles() []core.Obstacle { return w.obstacles }

// Zones returns the resolved zone list.
func (w *Warehouse) Zones() []core.Zone { return w.zones }

// Agents returns the agents in index order.
func (w *Warehouse) Agents() []*agent.Agent { return w.agents }

// ActionSpace returns the number of discrete actions per agent.
func (w *Warehouse) ActionSpace() int { return core.NumActions }

// ObservationSpace returns the per-agent observation box.
func (w *Warehouse) ObservationSpace() Space {
	return Space{
		Dim:  observation.Dim(w.cfg.NumNeighbors),
		Low:  observation.Low,
		High: observation.High,
	}
}
