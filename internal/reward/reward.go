// Package reward implements the load/unload state machine.
package reward

import (
	"github.com/wlsgn1217/MARBLER/internal/agent"
	"github.com/wlsgn1217/MARBLER/internal/geo"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// TerminationPenalty is the reward every agent receives when the executor ends an episode abnormally.
const TerminationPenalty = -5.0

// Rewards holds the transition payouts
type Rewards struct {
	Load   float64
	Unload float64
}

// Transition is the pure per-agent step: an unloaded agent inside a load zone
// becomes loaded, a loaded agent inside an unload zone becomes unloaded.
// Zones are scanned in declaration order and the first match wins.
func Transition(state core.LoadState, x, y float64, zones []core.Zone, rw Rewards) (core.LoadState, float64) {
	want, next, payout := core.ZoneLoad, core.Loaded, rw.Load
	if state == core.Loaded {
		want, next, payout = core.ZoneUnload, core.Unloaded, rw.Unload
	}
	for _, z := range zones {
		if z.Kind != want {
			continue
		}
		if geo.InRect(z.Rect, x, y) {
			return next, payout
		}
	}
	return state, 0
}

// Engine evaluates transitions for all agents
type Engine struct {
	Zones   []core.Zone
	Rewards Rewards
}

// Result summarises one evaluation
type Result struct {
	Rewards []float64
	Loads   int
	Unloads int
}

// Evaluate updates every agent's state from its actual pose and returns one
// reward per agent, indexed like agents.
func (e *Engine) Evaluate(agents []*agent.Agent, poses core.Poses) Result {
	res := Result{Rewards: make([]float64, len(agents))}
	for i, a := range agents {
		pose := poses[a.Index]
		next, r := Transition(a.State, pose.X, pose.Y, e.Zones, e.Rewards)
		switch {
		case a.State == core.Unloaded && next == core.Loaded:
			res.Loads++
		case a.State == core.Loaded && next == core.Unloaded:
			res.Unloads++
		}
		a.State = next
		res.Rewards[i] = r
	}
	return res
}

// Penalty returns the uniform termination reward for n agents.
func Penalty(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = TerminationPenalty
	}
	return out
}
