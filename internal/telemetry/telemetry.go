package telemetry

import (
	"context"
	"time"
)

// VisitEvent summarizes a completed store visit for the analytics
// collaborator. Emission is best effort; failures must never fail the visit
// operation that produced the event.
type VisitEvent struct {
	VisitID        string    `json:"visit_id"`
	RouteID        string    `json:"route_id"`
	StoreID        string    `json:"store_id"`
	AdvisorID      string    `json:"advisor_id"`
	DurationMin    int       `json:"duration_min"`
	TasksCompleted int       `json:"tasks_completed"`
	DamageCount    int       `json:"damage_count"`
	CompletedAt    time.Time `json:"completed_at"`
}

type Emitter interface {
	EmitVisitCompleted(ctx context.Context, ev VisitEvent) error
}
