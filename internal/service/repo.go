package service

import (
	"context"
	"time"

	"github.com/fieldvisit/backend/internal/models"
)

// RouteRepository is the persistence boundary for route assembly and visit
// tracking. Lookup methods return (nil, nil) when the row does not exist;
// query failures propagate unchanged.
//
// CreateVisit and SaveVisit carry their counter side effects so that the
// visit write and the route counter update land in one transaction.
type RouteRepository interface {
	RoutesByAdvisorDate(ctx context.Context, advisorID string, date time.Time) ([]models.Route, error)
	RouteByID(ctx context.Context, routeID string) (*models.Route, error)
	TemplateByAdvisorWeekday(ctx context.Context, advisorID string, weekday time.Weekday) (*models.RouteTemplate, error)

	VisitsByRoute(ctx context.Context, routeID string) ([]models.Visit, error)
	VisitByID(ctx context.Context, visitID string) (*models.Visit, error)
	VisitByRouteStore(ctx context.Context, routeID, storeID string) (*models.Visit, error)

	CreateRoute(ctx context.Context, route models.Route) (models.Route, error)
	// CreateVisit inserts the visit; when bumpTotal is set it increments the
	// parent route's total_stores in the same transaction.
	CreateVisit(ctx context.Context, visit models.Visit, bumpTotal bool) (models.Visit, error)
	// SaveVisit updates status, timestamps and task payload; when
	// bumpCompleted is set it increments completed_stores in the same
	// transaction.
	SaveVisit(ctx context.Context, visit models.Visit, bumpCompleted bool) error
	DeleteRoute(ctx context.Context, routeID string) error
	SetRouteTotals(ctx context.Context, routeID string, totalStores int) error

	StoresByIDs(ctx context.Context, ids []string) (map[string]models.Store, error)
}
