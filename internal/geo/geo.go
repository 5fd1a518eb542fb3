package geo

import (
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// RobotRadius is the collision margin added around every obstacle.
const RobotRadius = 0.1

// Envelope converts a rectangle into its bounding envelope.
func Envelope(r core.Rect) geom.Envelope {
	return geom.NewEnvelope(
		geom.XY{X: r.X, Y: r.Y},
		geom.XY{X: r.X + r.Width, Y: r.Y + r.Height},
	)
}

// Inflate returns the rectangle grown by margin on every side.
// This is a Minkowski sum with a square, so corners are more conservative
// than a true circle-vs-rectangle distance test.
func Inflate(r core.Rect, margin float64) geom.Envelope {
	return geom.NewEnvelope(
		geom.XY{X: r.X - margin, Y: r.Y - margin},
		geom.XY{X: r.X + r.Width + margin, Y: r.Y + r.Height + margin},
	)
}

// IsBlocked reports whether the pose lies within any obstacle inflated by radius.
// Boundaries count as blocked.
func IsBlocked(p core.Pose, obstacles []core.Obstacle, radius float64) bool {
	xy := geom.XY{X: p.X, Y: p.Y}
	for _, o := range obstacles {
		if Inflate(o, radius).Contains(xy) {
			return true
		}
	}
	return false
}

// InRect reports whether (x, y) is inside r, boundaries included, with no inflation.
func InRect(r core.Rect, x, y float64) bool {
	return Envelope(r).Contains(geom.XY{X: x, Y: y})
}

// Overlap pairs a zone with an obstacle whose inflated box it intersects
type Overlap struct {
	Zone     int
	Obstacle int
}

// Overlaps lists every zone that intersects an inflated obstacle.
// Agents can still stand in such zones only where the zone sticks out of the
// inflated box, so these pairs are usually configuration mistakes.
func Overlaps(zones []core.Zone, obstacles []core.Obstacle, radius float64) []Overlap {
	var out []Overlap
	for zi, z := range zones {
		ze := Envelope(z.Rect)
		for oi, o := range obstacles {
			if ze.Intersects(Inflate(o, radius)) {
				out = append(out, Overlap{Zone: zi, Obstacle: oi})
			}
		}
	}
	return out
}
