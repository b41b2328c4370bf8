package models

import (
	"encoding/json"
	"time"
)

type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleBicycle    VehicleType = "bicycle"
)

// AvgSpeedKmh returns the planning speed used for time estimates.
// Unknown or empty vehicle types fall back to the car speed.
func (v VehicleType) AvgSpeedKmh() float64 {
	if v == VehicleMotorcycle {
		return 30
	}
	return 20
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// VisitStatus is the canonical visit state. Serialization to legacy
// spellings happens once at the db boundary.
type VisitStatus string

const (
	VisitPending    VisitStatus = "pending"
	VisitInProgress VisitStatus = "in_progress"
	VisitCompleted  VisitStatus = "completed"
	VisitSkipped    VisitStatus = "skipped"
)

type RouteStatus string

const (
	RoutePending    RouteStatus = "pending"
	RouteInProgress RouteStatus = "in_progress"
	RouteCompleted  RouteStatus = "completed"
	RouteCancelled  RouteStatus = "cancelled"
)

type Store struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Address          string   `json:"address"`
	Lat              *float64 `json:"lat"`
	Lng              *float64 `json:"lng"`
	Priority         Priority `json:"priority"`
	Category         string   `json:"category"`
	Zone             string   `json:"zone"`
	VisitDurationMin int      `json:"visit_duration_min"`
}

type Advisor struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	VehicleType VehicleType `json:"vehicle_type"`
}

type TemplateStop struct {
	StoreID    string `json:"store_id"`
	VisitOrder int    `json:"visit_order"`
}

// RouteTemplate is the default daily plan for one advisor on one weekday.
type RouteTemplate struct {
	ID        string         `json:"id"`
	AdvisorID string         `json:"advisor_id"`
	Weekday   time.Weekday   `json:"weekday"`
	Stops     []TemplateStop `json:"stops"`
}

// Route is one advisor's plan for a single calendar date. TotalStores and
// CompletedStores are counters maintained alongside visit writes.
type Route struct {
	ID               string      `json:"id"`
	AdvisorID        string      `json:"advisor_id"`
	Date             time.Time   `json:"date"`
	TotalStores      int         `json:"total_stores"`
	CompletedStores  int         `json:"completed_stores"`
	TotalDistanceKm  float64     `json:"total_distance_km"`
	TotalDurationMin int         `json:"total_duration_min"`
	Status           RouteStatus `json:"status"`
}

type Visit struct {
	ID                string      `json:"id"`
	RouteID           string      `json:"route_id"`
	StoreID           string      `json:"store_id"`
	VisitOrder        int         `json:"visit_order"`
	Status            VisitStatus `json:"status"`
	StartTime         *time.Time  `json:"start_time"`
	EndTime           *time.Time  `json:"end_time"`
	SkipReason        *string     `json:"skip_reason"`
	TasksCompleted    int         `json:"tasks_completed"`
	DamageCount       int         `json:"damage_count"`
	ActualDurationMin *int        `json:"actual_duration_min"`
}

// Constraint is an externally supplied routing constraint. Value is decoded
// per Type by the constraint filter; unknown types are skipped.
type Constraint struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

const (
	ConstraintVehicleRestriction = "vehicle_restriction"
	ConstraintTimeWindow         = "time_window"
)

type VehicleRestrictionValue struct {
	StoreIDs        []string      `json:"store_ids"`
	AllowedVehicles []VehicleType `json:"allowed_vehicles"`
}

// TimeWindowValue bounds eligible arrival, in minutes from shift start.
type TimeWindowValue struct {
	StoreIDs []string `json:"store_ids"`
	StartMin int      `json:"start_min"`
	EndMin   int      `json:"end_min"`
}
