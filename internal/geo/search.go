package geo

import (
	"math"

	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// SearchRadii are the probe ring radii, tried in ascending order.
var SearchRadii = [...]float64{0.05, 0.1, 0.15, 0.2}

// SearchAngles is the number of evenly spaced probes per ring, starting at 0 rad.
const SearchAngles = 8

// ProbeCount is the worst-case number of probes FindSafePosition evaluates.
const ProbeCount = len(SearchRadii) * SearchAngles

// Probes returns the probe points around goal in evaluation order.
func Probes(goal core.Pose) []core.Pose {
	out := make([]core.Pose, 0, ProbeCount)
	for _, r := range SearchRadii {
		for k := 0; k < SearchAngles; k++ {
			angle := float64(k) * 2 * math.Pi / SearchAngles
			out = append(out, core.Pose{
				X: goal.X + r*math.Cos(angle),
				Y: goal.Y + r*math.Sin(angle),
			})
		}
	}
	return out
}

// FindSafePosition probes rings around a blocked goal and returns the first
// point that is inside the arena and clear of every inflated obstacle.
// The returned pose keeps the original heading. ok is false when all probes fail,
// in which case the caller should hold position.
func FindSafePosition(original, goal core.Pose, obstacles []core.Obstacle, arena core.Arena) (safe core.Pose, ok bool) {
	for _, p := range Probes(goal) {
		if !arena.Contains(p.X, p.Y) {
			continue
		}
		if IsBlocked(p, obstacles, RobotRadius) {
			continue
		}
		p.Theta = original.Theta
		return p, true
	}
	return original, false
}
