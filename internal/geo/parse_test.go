package geo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wlsgn1217/MARBLER/pkg/core"
)

func TestRectFromString(t *testing.T) {
	r, err := RectFromString("0.2, -0.8, 0.15, 1.6")
	assert.NoError(t, err)
	assert.Equal(t, core.Rect{X: 0.2, Y: -0.8, Width: 0.15, Height: 1.6}, r)
}

func TestRectFromString_Invalid(t *testing.T) {
	for _, in := range []string{"", "1,2,3", "a,0,1,1", "0,0,-1,1", "0,0,1,0", "0,0,1,1,1"} {
		t.Run(in, func(t *testing.T) {
			_, err := RectFromString(in)
			if !errors.Is(err, ErrInvalidRect) {
				t.Errorf("expected ErrInvalidRect for %q, got %v", in, err)
			}
		})
	}
}
