package service

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fieldvisit/backend/internal/geo"
	"github.com/fieldvisit/backend/internal/models"
)

func ptr(f float64) *float64 { return &f }

// Four stops on a meridian, deliberately shuffled so the input order
// zigzags. The straight sweep is the brute-force optimum.
func lineStores() []models.Store {
	return []models.Store{
		{ID: "a", Lat: ptr(-12.30), Lng: ptr(-77.0)},
		{ID: "b", Lat: ptr(-12.00), Lng: ptr(-77.0)},
		{ID: "c", Lat: ptr(-12.20), Lng: ptr(-77.0)},
		{ID: "d", Lat: ptr(-12.10), Lng: ptr(-77.0)},
	}
}

func TestOptimizeZeroAndOneStore(t *testing.T) {
	o := Optimizer{Logger: zerolog.Nop()}
	advisor := models.Advisor{ID: "adv1", VehicleType: models.VehicleCar}

	res, err := o.Optimize(nil, advisor, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stops) != 0 || res.Metrics.OriginalKm != 0 {
		t.Fatalf("expected empty result with zero metrics, got %+v", res)
	}

	one := []models.Store{{ID: "a", Lat: ptr(-12.0), Lng: ptr(-77.0)}}
	res, err = o.Optimize(one, advisor, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stops) != 1 || res.Stops[0].Store.ID != "a" {
		t.Fatalf("expected single store unchanged, got %+v", res.Stops)
	}
	if res.Metrics.OptimizedKm != 0 {
		t.Fatalf("expected zero metrics for one store, got %+v", res.Metrics)
	}
}

func TestOptimizeReturnsPermutation(t *testing.T) {
	o := Optimizer{Seed: 7, Logger: zerolog.Nop()}
	stores := lineStores()
	res, err := o.Optimize(stores, models.Advisor{VehicleType: models.VehicleCar}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Stops) != len(stores) {
		t.Fatalf("expected %d stops, got %d", len(stores), len(res.Stops))
	}
	seen := map[string]int{}
	for _, c := range res.Stops {
		seen[c.Store.ID]++
	}
	for _, s := range stores {
		if seen[s.ID] != 1 {
			t.Fatalf("store %s appears %d times in output", s.ID, seen[s.ID])
		}
	}
}

func TestOptimizeFindsKnownOptimum(t *testing.T) {
	o := Optimizer{Seed: 42, Logger: zerolog.Nop()}
	res, err := o.Optimize(lineStores(), models.Advisor{VehicleType: models.VehicleCar}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Sweeping the meridian end to end covers 0.30 degrees of latitude,
	// about 33.4 km. Anything within a few percent means the search found
	// the straight order.
	if res.Metrics.OptimizedKm > 34.5 {
		t.Fatalf("expected near-optimal ~33.4 km, got %.2f", res.Metrics.OptimizedKm)
	}
	if res.Metrics.OptimizedKm > res.Metrics.OriginalKm {
		t.Fatalf("optimized %.2f worse than original %.2f", res.Metrics.OptimizedKm, res.Metrics.OriginalKm)
	}
	if res.Metrics.SavedKm <= 0 || res.Metrics.ImprovementPct <= 0 {
		t.Fatalf("zigzag input should improve, metrics %+v", res.Metrics)
	}
	if res.Metrics.TimeSavedMin <= 0 {
		t.Fatalf("expected positive time saved, got %f", res.Metrics.TimeSavedMin)
	}
}

func TestOptimizeNeverWorsens(t *testing.T) {
	stores := lineStores()
	for seed := int64(1); seed <= 20; seed++ {
		o := Optimizer{Seed: seed, Generations: 10, Logger: zerolog.Nop()}
		res, err := o.Optimize(stores, models.Advisor{VehicleType: models.VehicleMotorcycle}, nil)
		if err != nil {
			t.Fatalf("seed %d: unexpected error: %v", seed, err)
		}
		if res.Metrics.OptimizedKm > res.Metrics.OriginalKm {
			t.Fatalf("seed %d: optimized %.3f worse than original %.3f", seed, res.Metrics.OptimizedKm, res.Metrics.OriginalKm)
		}
	}
}

func TestOptimizeMissingCoordinatesFails(t *testing.T) {
	stores := lineStores()
	stores[2].Lat = nil
	o := Optimizer{Seed: 1, Logger: zerolog.Nop()}
	_, err := o.Optimize(stores, models.Advisor{VehicleType: models.VehicleCar}, nil)
	if !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestOptimizeOutOfRangeCoordinatesFails(t *testing.T) {
	stores := lineStores()
	stores[0].Lat = ptr(123.4)
	o := Optimizer{Seed: 1, Logger: zerolog.Nop()}
	_, err := o.Optimize(stores, models.Advisor{VehicleType: models.VehicleCar}, nil)
	if !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestOrderCrossoverProducesValidPermutations(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 200; trial++ {
		n := 2 + rng.Intn(14)
		a := rng.Perm(n)
		b := rng.Perm(n)
		child := orderCrossover(a, b, rng)

		if len(child) != n {
			t.Fatalf("trial %d: child length %d, want %d", trial, len(child), n)
		}
		seen := make([]bool, n)
		for _, g := range child {
			if g < 0 || g >= n || seen[g] {
				t.Fatalf("trial %d: invalid permutation %v", trial, child)
			}
			seen[g] = true
		}
	}
}

func TestOptimizePriorityBonusPlacesHighEarly(t *testing.T) {
	// Two clusters equally distant; the high-priority store should land in
	// the first three positions because distance alone cannot separate the
	// mirrored orders.
	stores := []models.Store{
		{ID: "low1", Priority: models.PriorityLow, Lat: ptr(-12.00), Lng: ptr(-77.0)},
		{ID: "low2", Priority: models.PriorityLow, Lat: ptr(-12.05), Lng: ptr(-77.0)},
		{ID: "high", Priority: models.PriorityHigh, Lat: ptr(-12.10), Lng: ptr(-77.0)},
		{ID: "low3", Priority: models.PriorityLow, Lat: ptr(-12.15), Lng: ptr(-77.0)},
	}
	o := Optimizer{Seed: 11, Logger: zerolog.Nop()}
	res, err := o.Optimize(stores, models.Advisor{VehicleType: models.VehicleCar}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pos := -1
	for i, c := range res.Stops {
		if c.Store.ID == "high" {
			pos = i
		}
	}
	if pos < 0 || pos >= 3 {
		t.Fatalf("expected high-priority store within first 3 positions, got %d (%+v)", pos, res.Stops)
	}
}
