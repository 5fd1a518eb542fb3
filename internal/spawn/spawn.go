// Package spawn places agents at the start of an episode.
package spawn

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

const (
	// SampleMargin keeps random spawns away from the arena walls
	SampleMargin = 0.2
	// CornerInset places fallback spawns inside the arena corners
	CornerInset = 0.3
	// DefaultMaxAttempts bounds random sampling
	DefaultMaxAttempts = 1000
)

// Request describes the spawn problem
type Request struct {
	N             int
	Arena         core.Arena
	Obstacles     []core.Obstacle
	MinSeparation float64
	MaxAttempts   int
}

// Placement is the spawn result.
// Poses[:Sampled] came from random sampling; the rest are corner fallbacks.
type Placement struct {
	Poses    core.Poses
	Sampled  int
	Attempts int
}

// Fallback reports whether any pose came from the corner fallback.
func (p Placement) Fallback() bool {
	return p.Sampled < len(p.Poses)
}

// Generate always returns exactly req.N poses.
func Generate(rng *rand.Rand, req Request, logger *slog.Logger) Placement {
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	area := req.Arena.Inset(SampleMargin)

	poses := make(core.Poses, 0, req.N)
	attempts := 0
	for len(poses) < req.N && attempts < maxAttempts {
		attempts++
		p := core.Pose{
			X: uniform(rng, area.Left, area.Right),
			Y: uniform(rng, area.Up, area.Down),
		}
		if geo.IsBlocked(p, req.Obstacles, geo.RobotRadius) {
			continue
		}
		if tooClose(p, poses, req.MinSeparation) {
			continue
		}
		poses = append(poses, p)
	}

	placement := Placement{Sampled: len(poses), Attempts: attempts}
	if len(poses) < req.N {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("Spawn sampling exhausted, using corner fallback",
			"placed", len(poses), "requested", req.N, "attempts", attempts)
		for len(poses) < req.N {
			poses = append(poses, Corner(req.Arena, len(poses)))
		}
	}
	placement.Poses = poses
	return placement
}

// Corner returns the fallback pose for slot i, cycling
// left/up, right/up, left/down, right/down.
func Corner(a core.Arena, i int) core.Pose {
	in := a.Inset(CornerInset)
	switch i % 4 {
	case 0:
		return core.Pose{X: in.Left, Y: in.Up}
	case 1:
		return core.Pose{X: in.Right, Y: in.Up}
	case 2:
		return core.Pose{X: in.Left, Y: in.Down}
	default:
		return core.Pose{X: in.Right, Y: in.Down}
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func tooClose(p core.Pose, accepted core.Poses, minSeparation float64) bool {
	for _, q := range accepted {
		if math.Hypot(p.X-q.X, p.Y-q.Y) < minSeparation {
			return true
		}
	}
	return false
}
