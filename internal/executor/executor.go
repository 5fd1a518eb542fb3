// Package executor defines the boundary to whatever physically moves agents.
package executor

import (
	"math"

	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// Outcome is what the executor reports after one step.
// An empty Message means the step completed normally.
type Outcome struct {
	Message  string
	Distance []float64
	Frames   []core.Poses
}

// TotalDistance sums the per-agent distances.
func (o Outcome) TotalDistance() float64 {
	var total float64
	for _, d := range o.Distance {
		total += d
	}
	return total
}

// Executor turns commanded goals into actual movement.
// Step mutates poses in place.
type Executor interface {
	Reset(poses core.Poses)
	Step(poses, goals core.Poses, actions []core.Action) Outcome
}

// Direct moves every agent straight onto its commanded goal.
type Direct struct{}

// Reset is a no-op
func (Direct) Reset(core.Poses) {}

// Step copies goals into poses and reports each agent's displacement.
func (Direct) Step(poses, goals core.Poses, _ []core.Action) Outcome {
	dist := make([]float64, len(poses))
	for i := range poses {
		dist[i] = math.Hypot(goals[i].X-poses[i].X, goals[i].Y-poses[i].Y)
		poses[i] = goals[i]
	}
	return Outcome{Distance: dist}
}
