package executor

import (
	"math"

	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// MessageBoundary is reported when an agent leaves the physical frame
const MessageBoundary = "boundary"

// PhysicalFrame is the testbed floor all agents must stay on.
var PhysicalFrame = core.Arena{Left: -1.6, Right: 1.6, Up: -1.0, Down: 1.0}

// KinematicConfig tunes the speed-limited executor
type KinematicConfig struct {
	MaxSpeed     float64 // distance per substep
	Substeps     int
	CaptureFrame bool
}

// Kinematic drives agents toward their goals with a per-substep speed limit,
// turning to face the direction of travel.
type Kinematic struct {
	cfg KinematicConfig
}

// NewKinematic creates a Kinematic executor. Non-positive values fall back
// to one substep at unlimited speed.
func NewKinematic(cfg KinematicConfig) *Kinematic {
	if cfg.Substeps <= 0 {
		cfg.Substeps = 1
	}
	if cfg.MaxSpeed <= 0 {
		cfg.MaxSpeed = math.Inf(1)
	}
	return &Kinematic{cfg: cfg}
}

// Reset is a no-op; the executor keeps no per-episode state.
func (k *Kinematic) Reset(core.Poses) {}

// Step advances every agent for the configured number of substeps.
func (k *Kinematic) Step(poses, goals core.Poses, _ []core.Action) Outcome {
	out := Outcome{Distance: make([]float64, len(poses))}

	for s := 0; s < k.cfg.Substeps; s++ {
		for i := range poses {
			dx := goals[i].X - poses[i].X
			dy := goals[i].Y - poses[i].Y
			d := math.Hypot(dx, dy)
			if d == 0 {
				continue
			}
			move := math.Min(d, k.cfg.MaxSpeed)
			poses[i].X += dx / d * move
			poses[i].Y += dy / d * move
			poses[i].Theta = math.Atan2(dy, dx)
			out.Distance[i] += move
		}
		if k.cfg.CaptureFrame {
			out.Frames = append(out.Frames, poses.Clone())
		}
		for _, p := range poses {
			if !PhysicalFrame.Contains(p.X, p.Y) {
				out.Message = MessageBoundary
				return out
			}
		}
	}
	return out
}
