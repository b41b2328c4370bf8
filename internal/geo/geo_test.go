package geo

import (
	"errors"
	"math"
	"testing"
)

var (
	lima     = Point{Lat: -12.0464, Lng: -77.0428}
	arequipa = Point{Lat: -16.4090, Lng: -71.5375}
)

func TestHaversineKnownDistance(t *testing.T) {
	d, err := HaversineKm(lima, arequipa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Lima to Arequipa is roughly 766 km great-circle.
	if d < 755 || d > 780 {
		t.Fatalf("expected ~766 km, got %.2f", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	ab, err := HaversineKm(lima, arequipa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ba, err := HaversineKm(arequipa, lima)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("expected symmetric distance, got %.9f vs %.9f", ab, ba)
	}
}

func TestHaversineSamePoint(t *testing.T) {
	d, err := HaversineKm(lima, lima)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineInvalidCoordinates(t *testing.T) {
	cases := []Point{
		{Lat: 95, Lng: 0},
		{Lat: 0, Lng: 181},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.NaN()},
	}
	for _, p := range cases {
		if _, err := HaversineKm(lima, p); !errors.Is(err, ErrInvalidCoordinate) {
			t.Fatalf("expected ErrInvalidCoordinate for %+v, got %v", p, err)
		}
	}
}

func TestPathKmEdgeCases(t *testing.T) {
	if d, err := PathKm(nil); err != nil || d != 0 {
		t.Fatalf("empty path: expected 0, got %f err %v", d, err)
	}
	if d, err := PathKm([]Point{lima}); err != nil || d != 0 {
		t.Fatalf("single point: expected 0, got %f err %v", d, err)
	}
}

func TestPathKmSumsSegments(t *testing.T) {
	leg, err := HaversineKm(lima, arequipa)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total, err := PathKm([]Point{lima, arequipa, lima})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(total-2*leg) > 1e-9 {
		t.Fatalf("expected %f, got %f", 2*leg, total)
	}
}
