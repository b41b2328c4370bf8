package service

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvisit/backend/internal/geo"
	"github.com/fieldvisit/backend/internal/models"
)

const (
	defaultPopulation  = 50
	defaultGenerations = 100
	defaultElite       = 10
	defaultAvgStopMin  = 45
)

// Optimizer searches for a low-distance visit order with a small genetic
// algorithm: random initial permutations, elitism, order crossover. The
// search is stochastic unless Seed is set.
type Optimizer struct {
	Population  int
	Generations int
	Elite       int
	AvgStopMin  int
	Seed        int64
	Logger      zerolog.Logger
}

type RouteMetrics struct {
	OriginalKm     float64 `json:"original_km"`
	OptimizedKm    float64 `json:"optimized_km"`
	SavedKm        float64 `json:"saved_km"`
	TimeSavedMin   float64 `json:"time_saved_min"`
	ImprovementPct float64 `json:"improvement_pct"`
}

type OptimizeResult struct {
	Stops   []Candidate
	Metrics RouteMetrics
}

// Optimize filters the stores through the supplied constraints and returns
// them in a low-total-distance order. The result is always a permutation of
// the filtered input. Zero or one stops are returned unchanged with zero
// metrics. Stores with missing or malformed coordinates fail the whole run
// with geo.ErrInvalidCoordinate.
func (o Optimizer) Optimize(stores []models.Store, advisor models.Advisor, constraints []models.Constraint) (OptimizeResult, error) {
	cands := ApplyConstraints(stores, constraints, advisor.VehicleType, o.Logger)
	if len(cands) <= 1 {
		return OptimizeResult{Stops: cands}, nil
	}

	points := make([]geo.Point, len(cands))
	for i, c := range cands {
		if c.Store.Lat == nil || c.Store.Lng == nil {
			return OptimizeResult{}, fmt.Errorf("store %s: %w: missing coordinates", c.Store.ID, geo.ErrInvalidCoordinate)
		}
		p := geo.Point{Lat: *c.Store.Lat, Lng: *c.Store.Lng}
		if err := p.Validate(); err != nil {
			return OptimizeResult{}, fmt.Errorf("store %s: %w", c.Store.ID, err)
		}
		points[i] = p
	}

	n := len(cands)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		for j := range matrix[i] {
			if i == j {
				continue
			}
			d, err := geo.HaversineKm(points[i], points[j])
			if err != nil {
				return OptimizeResult{}, err
			}
			matrix[i][j] = d
		}
	}

	popSize := o.Population
	if popSize <= 0 {
		popSize = defaultPopulation
	}
	generations := o.Generations
	if generations <= 0 {
		generations = defaultGenerations
	}
	elite := o.Elite
	if elite <= 0 {
		elite = defaultElite
	}
	if elite > popSize {
		elite = popSize
	}
	avgStop := o.AvgStopMin
	if avgStop <= 0 {
		avgStop = defaultAvgStopMin
	}

	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	originalKm := orderKm(matrix, identity)

	population := make([][]int, popSize)
	population[0] = append([]int(nil), identity...)
	for i := 1; i < popSize; i++ {
		population[i] = rng.Perm(n)
	}

	for g := 0; g < generations; g++ {
		sort.SliceStable(population, func(a, b int) bool {
			return o.fitness(cands, matrix, population[a], avgStop) > o.fitness(cands, matrix, population[b], avgStop)
		})
		next := make([][]int, 0, popSize)
		next = append(next, population[:elite]...)
		for len(next) < popSize {
			p1 := population[rng.Intn(elite)]
			p2 := population[rng.Intn(elite)]
			next = append(next, orderCrossover(p1, p2, rng))
		}
		population = next
	}

	best := population[0]
	bestFit := o.fitness(cands, matrix, best, avgStop)
	for _, perm := range population[1:] {
		if f := o.fitness(cands, matrix, perm, avgStop); f > bestFit {
			best = perm
			bestFit = f
		}
	}

	optimizedKm := orderKm(matrix, best)
	if optimizedKm > originalKm {
		// Fitness also rewards windows and priority; never return an
		// order longer than the one we were given.
		best = identity
		optimizedKm = originalKm
	}

	ordered := make([]Candidate, n)
	for i, idx := range best {
		ordered[i] = cands[idx]
	}

	saved := originalKm - optimizedKm
	metrics := RouteMetrics{
		OriginalKm:   originalKm,
		OptimizedKm:  optimizedKm,
		SavedKm:      saved,
		TimeSavedMin: saved / advisor.VehicleType.AvgSpeedKmh() * 60,
	}
	if originalKm > 0 {
		metrics.ImprovementPct = saved / originalKm * 100
	}

	o.Logger.Debug().
		Float64("original_km", originalKm).
		Float64("optimized_km", optimizedKm).
		Int("stops", n).
		Msg("route optimized")

	return OptimizeResult{Stops: ordered, Metrics: metrics}, nil
}

// fitness ranks a permutation: inverse total distance, plus a share of
// stops arriving inside their time window (arrival approximated as ordinal
// position times the average stop duration), plus a bonus for high-priority
// stores placed early.
func (o Optimizer) fitness(cands []Candidate, matrix [][]float64, perm []int, avgStopMin int) float64 {
	dist := orderKm(matrix, perm)
	f := 1.0
	if dist > 0 {
		f = 1.0 / dist
	}

	n := len(perm)
	windowHits := 0
	priorityBonus := 0.0
	for pos, idx := range perm {
		c := cands[idx]
		if c.Window != nil {
			arrival := pos * avgStopMin
			if arrival >= c.Window.StartMin && arrival <= c.Window.EndMin {
				windowHits++
			}
		}
		switch c.Store.Priority {
		case models.PriorityHigh:
			if pos < 3 {
				priorityBonus += 0.5
			}
		case models.PriorityMedium:
			if pos < 5 {
				priorityBonus += 0.25
			}
		}
	}

	f += float64(windowHits) / float64(n)
	f += priorityBonus / float64(n)
	return f
}

func orderKm(matrix [][]float64, perm []int) float64 {
	total := 0.0
	for i := 0; i+1 < len(perm); i++ {
		total += matrix[perm[i]][perm[i+1]]
	}
	return total
}

// orderCrossover (OX) copies a random slice of the first parent and fills
// the rest from the second parent in traversal order. The child is always a
// valid permutation, unlike naive half-and-half splicing.
func orderCrossover(a, b []int, rng *rand.Rand) []int {
	n := len(a)
	i, j := rng.Intn(n), rng.Intn(n)
	if i > j {
		i, j = j, i
	}

	child := make([]int, n)
	used := make([]bool, n)
	for k := range child {
		child[k] = -1
	}
	for k := i; k <= j; k++ {
		child[k] = a[k]
		used[a[k]] = true
	}

	pos := (j + 1) % n
	for k := 0; k < n; k++ {
		gene := b[(j+1+k)%n]
		if used[gene] {
			continue
		}
		child[pos] = gene
		used[gene] = true
		pos = (pos + 1) % n
	}
	return child
}
