package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/wlsgn1217/MARBLER/internal/env"
	"github.com/wlsgn1217/MARBLER/internal/recorder"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// progress tracks the episode and step being run, for log context.
type progress struct {
	mu      sync.RWMutex
	episode string
	step    int
}

func (p *progress) set(episode string, step int) {
	p.mu.Lock()
	p.episode, p.step = episode, step
	p.mu.Unlock()
}

func (p *progress) attrs() []slog.Attr {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.episode == "" {
		return nil
	}
	return []slog.Attr{slog.String("episode", p.episode), slog.Int("step", p.step)}
}

// driver plays episodes with uniformly random actions.
type driver struct {
	env      *env.Warehouse
	sink     recorder.Sink
	rng      *rand.Rand
	logger   *slog.Logger
	progress *progress

	originLong float64
	originLat  float64

	// afterEpisode runs once an episode summary has been handed to the sink.
	afterEpisode func(context.Context) error
}

// Run plays the given number of episodes. A cancelled context ends the
// current episode early; its summary is still recorded.
func (d *driver) Run(ctx context.Context, episodes int) ([]core.EpisodeSummary, error) {
	summaries := make([]core.EpisodeSummary, 0, episodes)
	for i := 0; i < episodes; i++ {
		s, err := d.episode(ctx)
		if s.EpisodeID != "" {
			summaries = append(summaries, s)
		}
		if err != nil {
			return summaries, err
		}
	}
	return summaries, nil
}

func (d *driver) randomActions() []core.Action {
	actions := make([]core.Action, d.env.NumAgents())
	for i := range actions {
		actions[i] = core.Action(d.rng.IntN(core.NumActions))
	}
	return actions
}

func (d *driver) episode(ctx context.Context) (core.EpisodeSummary, error) {
	d.env.Reset()
	ep := d.env.Episode()
	ep.OriginLong, ep.OriginLat = d.originLong, d.originLat
	if d.progress != nil {
		d.progress.set(ep.ID, 0)
	}

	summary := core.EpisodeSummary{EpisodeID: ep.ID}
	if err := d.sink.StartEpisode(ep); err != nil {
		return summary, fmt.Errorf("starting episode %s: %w", ep.ID, err)
	}
	d.logger.Info("Episode started", "seed", ep.Seed, "agents", ep.NumAgents, "sampled", ep.Sampled)

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		actions := d.randomActions()
		res, err := d.env.Step(actions)
		if err != nil {
			runErr = err
			break
		}
		if d.progress != nil {
			d.progress.set(ep.ID, d.env.Steps())
		}

		rec := d.env.Record(actions, res)
		summary.Steps = rec.Step
		summary.TotalReward += rec.TotalReward()
		summary.Loads += res.Loads
		summary.Unloads += res.Unloads
		for _, dist := range res.Info.DistTravelled {
			summary.Distance += dist
		}
		if res.Info.Message != "" {
			summary.Message = res.Info.Message
		}

		if err := d.sink.RecordStep(rec); err != nil {
			d.logger.Error("Failed to record step", "error", err)
		}
		if res.Done() {
			break
		}
	}

	summary.EndTime = time.Now()
	if err := d.sink.EndEpisode(&summary); err != nil && runErr == nil {
		runErr = fmt.Errorf("ending episode %s: %w", ep.ID, err)
	}
	d.logger.Info("Episode finished",
		"steps", summary.Steps,
		"reward", summary.TotalReward,
		"loads", summary.Loads,
		"unloads", summary.Unloads,
		"distance", summary.Distance,
		"message", summary.Message,
	)

	if d.afterEpisode != nil {
		if err := d.afterEpisode(ctx); err != nil {
			d.logger.Warn("Post-episode hook failed", "error", err)
		}
	}
	return summary, runErr
}
