// Package observation assembles per-agent observation vectors.
package observation

import (
	"math"
	"sort"

	"github.com/wlsgn1217/MARBLER/internal/agent"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// BaseDim is the width of one agent's base vector [x, y, loaded]
const BaseDim = 3

// Low and High bound every observation component
const (
	Low  = -2.0
	High = 2.0
)

// Dim returns the observation width for the given neighbor count.
func Dim(numNeighbors int) int {
	return BaseDim * (numNeighbors + 1)
}

// Zeros returns the reset placeholder: n zero vectors of Dim(numNeighbors).
func Zeros(n, numNeighbors int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, Dim(numNeighbors))
	}
	return out
}

// Base returns [x, y, loaded] for one agent.
func Base(p core.Pose, state core.LoadState) []float64 {
	return []float64{p.X, p.Y, state.Numeric()}
}

// Neighbors returns the agent indices observed by agent self.
// With numNeighbors >= n-1 every other agent is returned in index order;
// otherwise the numNeighbors nearest by Euclidean distance, ties going to the
// lower index.
func Neighbors(poses core.Poses, self, numNeighbors int) []int {
	n := len(poses)
	others := make([]int, 0, max(n-1, 0))
	for i := 0; i < n; i++ {
		if i != self {
			others = append(others, i)
		}
	}
	if numNeighbors >= n-1 {
		return others
	}
	if numNeighbors <= 0 {
		return nil
	}

	origin := poses[self]
	dist := func(i int) float64 {
		return math.Hypot(poses[i].X-origin.X, poses[i].Y-origin.Y)
	}
	sort.SliceStable(others, func(a, b int) bool {
		return dist(others[a]) < dist(others[b])
	})
	return others[:numNeighbors]
}

// Build assembles the full observation for every agent: its own base vector
// followed by its neighbors' base vectors. Rows have fixed width
// Dim(numNeighbors); slots without a neighbor stay zero.
func Build(agents []*agent.Agent, poses core.Poses, numNeighbors int) [][]float64 {
	width := Dim(numNeighbors)
	bases := make([][]float64, len(agents))
	for _, a := range agents {
		bases[a.Index] = Base(poses[a.Index], a.State)
	}

	out := make([][]float64, len(agents))
	for i, a := range agents {
		row := make([]float64, 0, width)
		row = append(row, bases[a.Index]...)
		for _, nb := range Neighbors(poses, a.Index, numNeighbors) {
			row = append(row, bases[nb]...)
		}
		for len(row) < width {
			row = append(row, 0)
		}
		out[i] = row
	}
	return out
}
