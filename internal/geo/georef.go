package geo

import (
	"errors"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wlsgn1217/MARBLER/pkg/core"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Georef anchors the arena frame at a WGS84 location.
// Arena units are treated as meters; arena y grows "down", i.e. southward.
type Georef struct {
	originX float64
	originY float64
}

// NewGeoref projects the origin (EPSG:4326) into web mercator (EPSG:3857).
func NewGeoref(longitude, latitude float64) (Georef, error) {
	if math.IsNaN(longitude) || math.IsNaN(latitude) ||
		longitude < -180 || longitude > 180 ||
		latitude < -85.06 || latitude > 85.06 {
		return Georef{}, ErrInvalidCoordinates
	}
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return Georef{originX: x, originY: y}, nil
}

// Origin returns the anchor as an EPSG:3857 point.
func (g Georef) Origin() geom.Point {
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: g.originX, Y: g.originY}})
}

// Point converts an arena pose to an EPSG:3857 point.
func (g Georef) Point(p core.Pose) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY: geom.XY{X: g.originX + p.X, Y: g.originY - p.Y},
	})
}
