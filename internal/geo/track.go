package geo

import (
	"fmt"

	"github.com/OCAP2/dronesim/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Track builds the EPSG:3857 line string of a flight path.
func (p *Projector) Track(path []core.Position2D) (geom.LineString, error) {
	if len(path) < 2 {
		return geom.LineString{}, fmt.Errorf("track must have at least 2 points, got %d", len(path))
	}

	flat := make([]float64, 0, len(path)*2)
	for _, pt := range path {
		xy := p.mercatorXY(pt.X, pt.Y)
		flat = append(flat, xy.X, xy.Y)
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.LineString{}, fmt.Errorf("building track: %w", err)
	}
	return ls, nil
}

// TrackLength returns the ground distance of a flight path in metres.
// Paths with fewer than two points have zero length.
func (p *Projector) TrackLength(path []core.Position2D) float64 {
	ls, err := p.Track(path)
	if err != nil {
		return 0
	}
	return ls.Length() / p.scale * p.metersPerPixel
}

// TrackWKT renders the flight path as well-known text in EPSG:4326.
func (p *Projector) TrackWKT(path []core.Position2D) (string, error) {
	if len(path) < 2 {
		return "", fmt.Errorf("track must have at least 2 points, got %d", len(path))
	}
	flat := make([]float64, 0, len(path)*2)
	for _, pt := range path {
		lon, lat := p.LonLat(pt.X, pt.Y)
		flat = append(flat, lon, lat)
	}
	ls, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return "", fmt.Errorf("building track: %w", err)
	}
	return ls.AsText(), nil
}
