// Package agent implements per-agent goal generation for the warehouse.
package agent

import (
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// Agent is a single warehouse robot.
// Index is stable for the life of the environment; State is reset every episode.
type Agent struct {
	Index int
	Goal  core.AgentGoal
	State core.LoadState
}

// New creates an agent. Even indices are tagged Green, odd Red.
func New(index int) *Agent {
	goal := core.GoalGreen
	if index%2 == 1 {
		goal = core.GoalRed
	}
	return &Agent{Index: index, Goal: goal}
}

// Loaded reports whether the agent carries a payload
func (a *Agent) Loaded() bool {
	return a.State == core.Loaded
}

// Outcome describes how a commanded goal was produced
type Outcome uint8

const (
	// Clear means the direct move was unobstructed
	Clear Outcome = iota
	// Redirected means the move was blocked and a nearby safe point was used
	Redirected
	// Held means the move was blocked and no safe point was found
	Held
)

func (o Outcome) String() string {
	switch o {
	case Redirected:
		return "redirected"
	case Held:
		return "held"
	default:
		return "clear"
	}
}

// Params carries the environment values goal generation depends on
type Params struct {
	Arena     core.Arena
	StepDist  float64
	Obstacles []core.Obstacle
}

// NextGoal applies one action to the current pose.
// The moving axis is clamped to the arena; the other axis is snapped back only
// if it is already out of range. A blocked result is replaced by the first safe
// probe around it, or by the current pose when none exists.
func NextGoal(current core.Pose, action core.Action, p Params) (core.Pose, Outcome) {
	original := current
	goal := current
	b := p.Arena

	switch action {
	case core.ActionLeft:
		goal.X = max(goal.X-p.StepDist, b.Left)
		goal.Y = snap(goal.Y, b.Up, b.Down)
	case core.ActionRight:
		goal.X = min(goal.X+p.StepDist, b.Right)
		goal.Y = snap(goal.Y, b.Up, b.Down)
	case core.ActionUp:
		goal.X = snap(goal.X, b.Left, b.Right)
		goal.Y = max(goal.Y-p.StepDist, b.Up)
	case core.ActionDown:
		goal.X = snap(goal.X, b.Left, b.Right)
		goal.Y = min(goal.Y+p.StepDist, b.Down)
	default:
		goal.X = snap(goal.X, b.Left, b.Right)
		goal.Y = snap(goal.Y, b.Up, b.Down)
	}

	if !geo.IsBlocked(goal, p.Obstacles, geo.RobotRadius) {
		return goal, Clear
	}
	if safe, ok := geo.FindSafePosition(original, goal, p.Obstacles, p.Arena); ok {
		return safe, Redirected
	}
	return original, Held
}

// snap moves v onto [lo, hi] only when it lies outside.
func snap(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
