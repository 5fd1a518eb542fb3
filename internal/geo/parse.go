package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/wlsgn1217/MARBLER/pkg/core"
)

// ErrInvalidRect is returned when a rectangle string cannot be parsed
var ErrInvalidRect = errors.New("invalid rectangle provided")

// RectFromString parses "x,y,width,height" into a core.Rect.
// Width and height must be positive.
func RectFromString(s string) (core.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Rect{}, ErrInvalidRect
	}
	var vals [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return core.Rect{}, ErrInvalidRect
		}
		vals[i] = v
	}
	if vals[2] <= 0 || vals[3] <= 0 {
		return core.Rect{}, ErrInvalidRect
	}
	return core.Rect{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}
