// pkg/core/agent.go
package core

import "fmt"

// Pose is an agent position with heading in radians
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Theta float64 `json:"theta"`
}

// Poses holds one pose per agent, indexed by agent index
type Poses []Pose

// Clone returns an independent copy
func (p Poses) Clone() Poses {
	if p == nil {
		return nil
	}
	out := make(Poses, len(p))
	copy(out, p)
	return out
}

// Action is the discrete per-agent command
type Action int

const (
	ActionLeft Action = iota
	ActionRight
	ActionUp
	ActionDown
	ActionNone
)

// NumActions is the size of the per-agent action space
const NumActions = 5

// Valid reports whether the action is one of the five known commands.
func (a Action) Valid() bool {
	return a >= ActionLeft && a <= ActionNone
}

func (a Action) String() string {
	switch a {
	case ActionLeft:
		return "left"
	case ActionRight:
		return "right"
	case ActionUp:
		return "up"
	case ActionDown:
		return "down"
	case ActionNone:
		return "no_action"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// AgentGoal is a bookkeeping tag; it does not affect rewards
type AgentGoal string

const (
	GoalGreen AgentGoal = "Green"
	GoalRed   AgentGoal = "Red"
)

// LoadState is whether an agent currently carries a payload
type LoadState uint8

const (
	Unloaded LoadState = iota
	Loaded
)

func (s LoadState) String() string {
	if s == Loaded {
		return "loaded"
	}
	return "unloaded"
}

// Numeric is the observation encoding: 1 when loaded, else 0.
func (s LoadState) Numeric() float64 {
	if s == Loaded {
		return 1
	}
	return 0
}
