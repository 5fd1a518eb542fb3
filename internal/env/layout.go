package env

import (
	"errors"
	"fmt"

	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// ErrInvalidConfig wraps every configuration validation failure
var ErrInvalidConfig = errors.New("invalid environment config")

// Config holds everything the warehouse needs at construction time.
type Config struct {
	NumAgents       int
	Arena           core.Arena
	StepDist        float64
	StartDist       float64 // minimum spawn separation
	NumNeighbors    int
	LoadReward      float64
	UnloadReward    float64
	GoalWidth       float64 // width of the default load zones
	MaxEpisodeSteps int
	Seed            int64 // -1 seeds from the runtime source
	SaveFrames      bool
	SpawnAttempts   int
	Obstacles       []core.Obstacle // nil selects DefaultObstacles
	Zones           []core.Zone     // nil selects DefaultZones
}

// DefaultConfig mirrors the stock scenario.
func DefaultConfig() Config {
	return Config{
		NumAgents:       4,
		Arena:           core.Arena{Left: -1.5, Right: 1.5, Up: -1, Down: 1},
		StepDist:        0.1,
		StartDist:       0.3,
		NumNeighbors:    3,
		LoadReward:      1,
		UnloadReward:    5,
		GoalWidth:       0.3,
		MaxEpisodeSteps: 100,
		Seed:            -1,
		SpawnAttempts:   1000,
	}
}

// Validate checks the invariants the warehouse relies on.
func (c Config) Validate() error {
	if err := c.Arena.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.NumAgents <= 0:
		return fmt.Errorf("%w: nAgents must be positive, got %d", ErrInvalidConfig, c.NumAgents)
	case c.NumNeighbors < 0:
		return fmt.Errorf("%w: numNeighbors must not be negative, got %d", ErrInvalidConfig, c.NumNeighbors)
	case c.StepDist <= 0:
		return fmt.Errorf("%w: stepDist must be positive, got %g", ErrInvalidConfig, c.StepDist)
	case c.StartDist < 0:
		return fmt.Errorf("%w: startDist must not be negative, got %g", ErrInvalidConfig, c.StartDist)
	case c.MaxEpisodeSteps <= 0:
		return fmt.Errorf("%w: maxEpisodeSteps must be positive, got %d", ErrInvalidConfig, c.MaxEpisodeSteps)
	}
	for i, o := range c.Obstacles {
		if o.Width <= 0 || o.Height <= 0 {
			return fmt.Errorf("%w: obstacle %d has non-positive size", ErrInvalidConfig, i)
		}
	}
	for i, z := range c.Zones {
		if z.Width <= 0 || z.Height <= 0 {
			return fmt.Errorf("%w: zone %d has non-positive size", ErrInvalidConfig, i)
		}
	}
	return nil
}

// DefaultObstacles are four vertical shelving columns.
func DefaultObstacles() []core.Obstacle {
	return []core.Obstacle{
		{X: 0.2, Y: -0.8, Width: 0.15, Height: 1.6},
		{X: 0.5, Y: -0.8, Width: 0.15, Height: 1.6},
		{X: 0.8, Y: -0.8, Width: 0.15, Height: 1.6},
		{X: 1.1, Y: -0.8, Width: 0.15, Height: 1.6},
	}
}

// DefaultZones are two load zones on the left wall and one unload zone at
// the top of each shelving column.
func DefaultZones(goalWidth float64) []core.Zone {
	return []core.Zone{
		{Rect: core.Rect{X: -1.5, Y: 0.2, Width: goalWidth, Height: 0.6}, Kind: core.ZoneLoad, Color: "red"},
		{Rect: core.Rect{X: -1.5, Y: -0.8, Width: goalWidth, Height: 0.6}, Kind: core.ZoneLoad, Color: "red"},
		{Rect: core.Rect{X: 0.2, Y: -0.9, Width: 0.15, Height: 0.2}, Kind: core.ZoneUnload, Color: "green"},
		{Rect: core.Rect{X: 0.5, Y: -0.9, Width: 0.15, Height: 0.2}, Kind: core.ZoneUnload, Color: "green"},
		{Rect: core.Rect{X: 0.8, Y: -0.9, Width: 0.15, Height: 0.2}, Kind: core.ZoneUnload, Color: "green"},
		{Rect: core.Rect{X: 1.1, Y: -0.9, Width: 0.15, Height: 0.2}, Kind: core.ZoneUnload, Color: "green"},
	}
}

// Layout resolves the configured obstacles and zones, falling back to the
// built-in layout for whichever list is empty.
func (c Config) Layout() ([]core.Obstacle, []core.Zone) {
	obstacles := c.Obstacles
	if len(obstacles) == 0 {
		obstacles = DefaultObstacles()
	}
	zones := c.Zones
	if len(zones) == 0 {
		zones = DefaultZones(c.GoalWidth)
	}
	return obstacles, zones
}
