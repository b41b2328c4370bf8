package service

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/fieldvisit/backend/internal/models"
)

// TimeWindow bounds eligible arrival at a stop, in minutes from shift start.
type TimeWindow struct {
	StartMin int
	EndMin   int
}

// Candidate is a store that survived constraint filtering, annotated with
// its arrival window when one applies.
type Candidate struct {
	Store  models.Store
	Window *TimeWindow
}

// ApplyConstraints filters and annotates the candidate stores for one
// advisor. Vehicle restrictions exclude stores the vehicle may not serve;
// time windows annotate eligible arrival intervals consumed by the
// optimizer's fitness function. Unknown constraint types are logged and
// skipped. Inputs are never mutated.
func ApplyConstraints(stores []models.Store, constraints []models.Constraint, vehicle models.VehicleType, logger zerolog.Logger) []Candidate {
	excluded := map[string]bool{}
	windows := map[string]TimeWindow{}

	for _, c := range constraints {
		switch c.Type {
		case models.ConstraintVehicleRestriction:
			var v models.VehicleRestrictionValue
			if err := json.Unmarshal(c.Value, &v); err != nil {
				logger.Warn().Err(err).Msg("bad vehicle_restriction payload, skipping")
				continue
			}
			if vehicleAllowed(vehicle, v.AllowedVehicles) {
				continue
			}
			for _, id := range v.StoreIDs {
				excluded[id] = true
			}
		case models.ConstraintTimeWindow:
			var v models.TimeWindowValue
			if err := json.Unmarshal(c.Value, &v); err != nil {
				logger.Warn().Err(err).Msg("bad time_window payload, skipping")
				continue
			}
			for _, id := range v.StoreIDs {
				windows[id] = TimeWindow{StartMin: v.StartMin, EndMin: v.EndMin}
			}
		default:
			logger.Warn().Str("type", c.Type).Msg("unknown constraint type, ignored")
		}
	}

	out := make([]Candidate, 0, len(stores))
	for _, s := range stores {
		if excluded[s.ID] {
			continue
		}
		cand := Candidate{Store: s}
		if w, ok := windows[s.ID]; ok {
			win := w
			cand.Window = &win
		}
		out = append(out, cand)
	}
	return out
}

func vehicleAllowed(vehicle models.VehicleType, allowed []models.VehicleType) bool {
	if vehicle == "" {
		vehicle = models.VehicleCar
	}
	for _, a := range allowed {
		if a == vehicle {
			return true
		}
	}
	return false
}
