package geo

import (
	"errors"
	"fmt"
	"math"
)

const earthRadiusKm = 6371.0

// ErrInvalidCoordinate is returned for NaN or out-of-range coordinates.
// The core fails loudly; fallback display coordinates are a presentation
// concern, not handled here.
var ErrInvalidCoordinate = errors.New("geo: invalid coordinate")

type Point struct {
	Lat float64
	Lng float64
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return fmt.Errorf("%w: NaN", ErrInvalidCoordinate)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: lat %.4f out of range", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: lng %.4f out of range", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b Point) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	latA := degreesToRadians(a.Lat)
	latB := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(latA)*math.Cos(latB)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c, nil
}

// PathKm sums consecutive pairwise distances over an ordered path.
// Zero or one points yield 0.
func PathKm(points []Point) (float64, error) {
	total := 0.0
	for i := 0; i+1 < len(points); i++ {
		d, err := HaversineKm(points[i], points[i+1])
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total, nil
}

func degreesToRadians(d float64) float64 {
	return d * math.Pi / 180
}
