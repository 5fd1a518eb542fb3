// pkg/core/arena.go
package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArena is returned when the arena bounds are not ordered
var ErrInvalidArena = errors.New("invalid arena bounds")

// ErrInvalidZone is returned when a zone kind cannot be parsed
var ErrInvalidZone = errors.New("invalid zone kind")

// Arena is the bounded plane agents move in.
// Left/Right bound x; Up/Down bound y, with Up being the smaller y value.
type Arena struct {
	Left  float64 `json:"left" yaml:"left"`
	Right float64 `json:"right" yaml:"right"`
	Up    float64 `json:"up" yaml:"up"`
	Down  float64 `json:"down" yaml:"down"`
}

// Validate checks Left < Right and Up < Down.
func (a Arena) Validate() error {
	if !(a.Left < a.Right) || !(a.Up < a.Down) {
		return fmt.Errorf("%w: x [%g, %g], y [%g, %g]", ErrInvalidArena, a.Left, a.Right, a.Up, a.Down)
	}
	return nil
}

// Contains reports whether (x, y) lies inside the arena, boundaries included.
func (a Arena) Contains(x, y float64) bool {
	return a.Left <= x && x <= a.Right && a.Up <= y && y <= a.Down
}

// Inset shrinks the arena by margin on every side.
func (a Arena) Inset(margin float64) Arena {
	return Arena{
		Left:  a.Left + margin,
		Right: a.Right - margin,
		Up:    a.Up + margin,
		Down:  a.Down - margin,
	}
}

// Rect is an axis-aligned rectangle anchored at its minimum corner
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Obstacle is a static rectangular obstacle
type Obstacle = Rect

// ZoneKind distinguishes pickup from drop-off zones
type ZoneKind uint8

const (
	ZoneLoad ZoneKind = iota
	ZoneUnload
)

func (k ZoneKind) String() string {
	switch k {
	case ZoneLoad:
		return "load"
	case ZoneUnload:
		return "unload"
	default:
		return "unknown"
	}
}

// ParseZoneKind converts "load"/"unload" (any case) to a ZoneKind.
func ParseZoneKind(s string) (ZoneKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "load":
		return ZoneLoad, nil
	case "unload":
		return ZoneUnload, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidZone, s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (k ZoneKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ZoneKind) UnmarshalText(b []byte) error {
	parsed, err := ParseZoneKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Zone is a load or unload area
type Zone struct {
	Rect  `yaml:",inline"`
	Kind  ZoneKind `json:"kind" yaml:"kind"`
	Color string   `json:"color" yaml:"color"`
}

// ZoneLabels returns display labels in declaration order:
// "Load Zone 1", "Load Zone 2", "Unload 1", ...
func ZoneLabels(zones []Zone) []string {
	labels := make([]string, len(zones))
	loads, unloads := 0, 0
	for i, z := range zones {
		switch z.Kind {
		case ZoneLoad:
			loads++
			labels[i] = fmt.Sprintf("Load Zone %d", loads)
		case ZoneUnload:
			unloads++
			labels[i] = fmt.Sprintf("Unload %d", unloads)
		}
	}
	return labels
}
