// Package geo places the arena on the map. Arena pixels are projected onto
// EPSG:3857 around a configured WGS84 origin so recordings can be stored as
// spatial points and exported as real coordinates.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/dronesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Positions are always stored as 3857 so SQLite, which has no spatial
// awareness, can still round-trip the WKB through the geom Scan function.

var (
	// ErrInvalidScale is returned when metres per pixel is not positive.
	ErrInvalidScale = errors.New("metres per pixel must be positive")
	// ErrInvalidOrigin is returned when the origin is outside the Mercator range.
	ErrInvalidOrigin = errors.New("origin outside the web mercator range")
)

// maxLatitude is the EPSG:3857 validity limit.
const maxLatitude = 85.06

// Projector converts arena pixels to map coordinates. The arena's top-left
// corner sits on the origin; x grows east and y grows south.
type Projector struct {
	originLon, originLat float64
	originX, originY     float64
	metersPerPixel       float64
	// scale is Mercator units per arena pixel at the origin latitude.
	scale float64

	toMercator wgs84.Func
	toLonLat   wgs84.Func
}

// NewProjector anchors the arena at (originLon, originLat).
func NewProjector(originLon, originLat, metersPerPixel float64) (*Projector, error) {
	if metersPerPixel <= 0 || math.IsNaN(metersPerPixel) {
		return nil, ErrInvalidScale
	}
	if math.Abs(originLat) > maxLatitude || math.Abs(originLon) > 180 {
		return nil, ErrInvalidOrigin
	}

	epsg := wgs84.EPSG()
	p := &Projector{
		originLon:      originLon,
		originLat:      originLat,
		metersPerPixel: metersPerPixel,
		scale:          metersPerPixel / math.Cos(originLat*math.Pi/180),
		toMercator:     epsg.Transform(4326, 3857),
		toLonLat:       epsg.Transform(3857, 4326),
	}
	p.originX, p.originY, _ = p.toMercator(originLon, originLat, 0)
	return p, nil
}

// Origin returns the WGS84 anchor.
func (p *Projector) Origin() (lon, lat float64) {
	return p.originLon, p.originLat
}

// MetersPerPixel returns the ground scale.
func (p *Projector) MetersPerPixel() float64 {
	return p.metersPerPixel
}

func (p *Projector) mercatorXY(x, y float64) geom.XY {
	return geom.XY{
		X: p.originX + x*p.scale,
		Y: p.originY - y*p.scale,
	}
}

// Point projects an arena position to an EPSG:3857 point. Non-finite
// positions are rejected.
func (p *Projector) Point(x, y float64) (geom.Point, error) {
	pt, err := geom.NewPoint(geom.Coordinates{XY: p.mercatorXY(x, y)})
	if err != nil {
		return geom.Point{}, fmt.Errorf("projecting (%g, %g): %w", x, y, err)
	}
	return pt, nil
}

// LonLat returns the WGS84 coordinates of an arena position.
func (p *Projector) LonLat(x, y float64) (lon, lat float64) {
	xy := p.mercatorXY(x, y)
	lon, lat, _ = p.toLonLat(xy.X, xy.Y, 0)
	return lon, lat
}

// Position returns the WGS84 position of the vehicle.
func (p *Projector) Position(x, y, altitude float64) core.GeoPosition {
	lon, lat := p.LonLat(x, y)
	return core.GeoPosition{Longitude: lon, Latitude: lat, Altitude: altitude}
}

// Coords3857From4326 creates a map point from a longitude and latitude.
func Coords3857From4326(longitude, latitude float64) (geom.Point, error) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}})
}

// Coords4326From3857 converts a map point back to longitude and latitude.
// ok is false for an empty point.
func Coords4326From3857(p geom.Point) (longitude, latitude float64, ok bool) {
	xy, ok := p.XY()
	if !ok {
		return 0, 0, false
	}
	f := wgs84.EPSG().Transform(3857, 4326)
	longitude, latitude, _ = f(xy.X, xy.Y, 0)
	return longitude, latitude, true
}
