package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldvisit/backend/internal/models"
	"github.com/fieldvisit/backend/internal/telemetry"
)

// RouteSource tags whether an effective route is a persisted row or an
// ephemeral projection of the day-of-week template.
type RouteSource int

const (
	SourcePersisted RouteSource = iota
	SourceTemplated
)

func (s RouteSource) String() string {
	if s == SourceTemplated {
		return "templated"
	}
	return "persisted"
}

// VisitView pairs a visit with its resolved store display fields for the
// presentation boundary.
type VisitView struct {
	Visit models.Visit `json:"visit"`
	Store models.Store `json:"store"`
}

type EffectiveRoute struct {
	Source RouteSource  `json:"source"`
	Route  models.Route `json:"route"`
	Visits []VisitView  `json:"visits"`
}

// Assembler reconciles an advisor's route for a day and drives visit
// lifecycle transitions against the repository. All multi-step operations
// are sequences of blocking repository calls; duplicate routes created by
// concurrent requests are reconciled after the fact in GetEffectiveRoute.
type Assembler struct {
	Repo      RouteRepository
	Telemetry telemetry.Emitter
	Logger    zerolog.Logger

	// Now is overridable in tests; defaults to time.Now UTC.
	Now func() time.Time
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// GetEffectiveRoute returns the canonical route for an advisor and date.
// With no persisted route it falls back to an ephemeral projection of the
// day-of-week template. With several persisted routes it keeps the one with
// the most visits and prunes same-day routes holding zero visits. Template
// stops missing from the canonical route are backfilled as pending visits.
func (a *Assembler) GetEffectiveRoute(ctx context.Context, advisorID string, date time.Time) (EffectiveRoute, error) {
	routes, err := a.Repo.RoutesByAdvisorDate(ctx, advisorID, date)
	if err != nil {
		return EffectiveRoute{}, fmt.Errorf("query routes: %w", err)
	}

	tmpl, err := a.Repo.TemplateByAdvisorWeekday(ctx, advisorID, date.Weekday())
	if err != nil {
		return EffectiveRoute{}, fmt.Errorf("query template: %w", err)
	}

	if len(routes) == 0 {
		if tmpl == nil || len(tmpl.Stops) == 0 {
			return EffectiveRoute{}, ErrNoRouteAvailable
		}
		return a.templatedRoute(ctx, advisorID, date, tmpl)
	}

	canonical, visits, err := a.reconcileDuplicates(ctx, routes)
	if err != nil {
		return EffectiveRoute{}, err
	}

	if tmpl != nil && len(visits) < len(tmpl.Stops) {
		visits, err = a.backfillFromTemplate(ctx, canonical, visits, tmpl)
		if err != nil {
			return EffectiveRoute{}, err
		}
	}

	if canonical.TotalStores != len(visits) {
		if err := a.Repo.SetRouteTotals(ctx, canonical.ID, len(visits)); err != nil {
			return EffectiveRoute{}, fmt.Errorf("reconcile total_stores: %w", err)
		}
		canonical.TotalStores = len(visits)
	}

	sort.Slice(visits, func(i, j int) bool { return visits[i].VisitOrder < visits[j].VisitOrder })

	views, err := a.resolveStores(ctx, visits)
	if err != nil {
		return EffectiveRoute{}, err
	}
	return EffectiveRoute{Source: SourcePersisted, Route: canonical, Visits: views}, nil
}

// reconcileDuplicates picks the same-day route with the most visits and
// deletes the empty leftovers from racing route-creation requests.
func (a *Assembler) reconcileDuplicates(ctx context.Context, routes []models.Route) (models.Route, []models.Visit, error) {
	canonical := routes[0]
	canonicalVisits, err := a.Repo.VisitsByRoute(ctx, canonical.ID)
	if err != nil {
		return models.Route{}, nil, fmt.Errorf("query visits: %w", err)
	}

	empties := []models.Route{}
	for _, r := range routes[1:] {
		visits, err := a.Repo.VisitsByRoute(ctx, r.ID)
		if err != nil {
			return models.Route{}, nil, fmt.Errorf("query visits: %w", err)
		}
		if len(visits) > len(canonicalVisits) {
			if len(canonicalVisits) == 0 {
				empties = append(empties, canonical)
			}
			canonical = r
			canonicalVisits = visits
			continue
		}
		if len(visits) == 0 {
			empties = append(empties, r)
		}
	}

	for _, r := range empties {
		if err := a.Repo.DeleteRoute(ctx, r.ID); err != nil {
			return models.Route{}, nil, fmt.Errorf("prune duplicate route %s: %w", r.ID, err)
		}
		a.Logger.Info().Str("route_id", r.ID).Msg("pruned empty duplicate route")
	}
	return canonical, canonicalVisits, nil
}

func (a *Assembler) backfillFromTemplate(ctx context.Context, route models.Route, visits []models.Visit, tmpl *models.RouteTemplate) ([]models.Visit, error) {
	present := map[string]bool{}
	for _, v := range visits {
		present[v.StoreID] = true
	}
	for _, stop := range tmpl.Stops {
		if present[stop.StoreID] {
			continue
		}
		created, err := a.Repo.CreateVisit(ctx, models.Visit{
			RouteID:    route.ID,
			StoreID:    stop.StoreID,
			VisitOrder: stop.VisitOrder,
			Status:     models.VisitPending,
		}, true)
		if err != nil {
			return nil, fmt.Errorf("backfill visit for store %s: %w", stop.StoreID, err)
		}
		visits = append(visits, created)
	}
	return visits, nil
}

// templatedRoute synthesizes an ephemeral, unpersisted route from the
// template. Ids stay empty until EnsureRouteAndVisit materializes it.
func (a *Assembler) templatedRoute(ctx context.Context, advisorID string, date time.Time, tmpl *models.RouteTemplate) (EffectiveRoute, error) {
	visits := make([]models.Visit, 0, len(tmpl.Stops))
	for _, stop := range tmpl.Stops {
		visits = append(visits, models.Visit{
			StoreID:    stop.StoreID,
			VisitOrder: stop.VisitOrder,
			Status:     models.VisitPending,
		})
	}
	sort.Slice(visits, func(i, j int) bool { return visits[i].VisitOrder < visits[j].VisitOrder })

	views, err := a.resolveStores(ctx, visits)
	if err != nil {
		return EffectiveRoute{}, err
	}
	return EffectiveRoute{
		Source: SourceTemplated,
		Route: models.Route{
			AdvisorID:   advisorID,
			Date:        date,
			TotalStores: len(visits),
			Status:      models.RoutePending,
		},
		Visits: views,
	}, nil
}

// EnsureRouteAndVisit finds or creates the visit for one store on one day,
// materializing the route first when only the template projection exists.
// A fresh route starts in_progress; its total_stores counter lands at 1 via
// the visit insert. An existing visit is returned, never duplicated.
func (a *Assembler) EnsureRouteAndVisit(ctx context.Context, advisorID string, date time.Time, storeID string) (models.Route, models.Visit, error) {
	routes, err := a.Repo.RoutesByAdvisorDate(ctx, advisorID, date)
	if err != nil {
		return models.Route{}, models.Visit{}, fmt.Errorf("query routes: %w", err)
	}

	var route models.Route
	if len(routes) > 0 {
		// Reuse whichever same-day route carries the most visits; full
		// duplicate reconciliation stays in GetEffectiveRoute.
		route = routes[0]
		bestCount := -1
		for _, r := range routes {
			visits, err := a.Repo.VisitsByRoute(ctx, r.ID)
			if err != nil {
				return models.Route{}, models.Visit{}, fmt.Errorf("query visits: %w", err)
			}
			if len(visits) > bestCount {
				route = r
				bestCount = len(visits)
			}
		}
	} else {
		created, err := a.Repo.CreateRoute(ctx, models.Route{
			AdvisorID: advisorID,
			Date:      date,
			Status:    models.RouteInProgress,
		})
		if err != nil {
			return models.Route{}, models.Visit{}, fmt.Errorf("create route: %w", err)
		}
		route = created
		a.Logger.Info().Str("route_id", route.ID).Str("advisor_id", advisorID).Msg("route materialized")
	}

	existing, err := a.Repo.VisitByRouteStore(ctx, route.ID, storeID)
	if err != nil {
		return models.Route{}, models.Visit{}, fmt.Errorf("query visit: %w", err)
	}
	if existing != nil {
		return route, *existing, nil
	}

	order, err := a.visitOrderFor(ctx, route, advisorID, date, storeID)
	if err != nil {
		return models.Route{}, models.Visit{}, err
	}

	visit, err := a.Repo.CreateVisit(ctx, models.Visit{
		RouteID:    route.ID,
		StoreID:    storeID,
		VisitOrder: order,
		Status:     models.VisitPending,
	}, true)
	if err != nil {
		return models.Route{}, models.Visit{}, fmt.Errorf("create visit: %w", err)
	}
	route.TotalStores++
	return route, visit, nil
}

// visitOrderFor keeps the template's position for template stores and
// appends ad-hoc stores after the current maximum.
func (a *Assembler) visitOrderFor(ctx context.Context, route models.Route, advisorID string, date time.Time, storeID string) (int, error) {
	tmpl, err := a.Repo.TemplateByAdvisorWeekday(ctx, advisorID, date.Weekday())
	if err != nil {
		return 0, fmt.Errorf("query template: %w", err)
	}
	if tmpl != nil {
		for _, stop := range tmpl.Stops {
			if stop.StoreID == storeID {
				return stop.VisitOrder, nil
			}
		}
	}

	visits, err := a.Repo.VisitsByRoute(ctx, route.ID)
	if err != nil {
		return 0, fmt.Errorf("query visits: %w", err)
	}
	max := 0
	for _, v := range visits {
		if v.VisitOrder > max {
			max = v.VisitOrder
		}
	}
	if tmpl != nil {
		for _, stop := range tmpl.Stops {
			if stop.VisitOrder > max {
				max = stop.VisitOrder
			}
		}
	}
	return max + 1, nil
}

// StartVisit starts (or reinstates) the visit for a store, creating the
// route and visit on demand.
func (a *Assembler) StartVisit(ctx context.Context, advisorID string, date time.Time, storeID string) (models.Route, models.Visit, error) {
	route, visit, err := a.EnsureRouteAndVisit(ctx, advisorID, date, storeID)
	if err != nil {
		return models.Route{}, models.Visit{}, err
	}

	updated, err := StartVisit(visit, a.now())
	if err != nil {
		return models.Route{}, models.Visit{}, err
	}
	if err := a.Repo.SaveVisit(ctx, updated, false); err != nil {
		return models.Route{}, models.Visit{}, fmt.Errorf("save visit: %w", err)
	}
	return route, updated, nil
}

// CompleteVisit finishes a visit by id, bumps the route's completed_stores
// in the same write, and emits a best-effort telemetry event.
func (a *Assembler) CompleteVisit(ctx context.Context, visitID string, durationMin *int, tasksCompleted, damageCount int) (models.Visit, error) {
	visit, err := a.Repo.VisitByID(ctx, visitID)
	if err != nil {
		return models.Visit{}, fmt.Errorf("query visit: %w", err)
	}
	if visit == nil {
		return models.Visit{}, fmt.Errorf("visit %s: %w", visitID, ErrNotFound)
	}

	updated, err := CompleteVisit(*visit, a.now(), durationMin)
	if err != nil {
		return models.Visit{}, err
	}
	updated.TasksCompleted = tasksCompleted
	updated.DamageCount = damageCount

	if err := a.Repo.SaveVisit(ctx, updated, true); err != nil {
		return models.Visit{}, fmt.Errorf("save visit: %w", err)
	}

	a.emitCompletion(ctx, updated)
	return updated, nil
}

// SkipVisit skips a visit by id. completed_stores is not touched.
func (a *Assembler) SkipVisit(ctx context.Context, visitID string, reason string) (models.Visit, error) {
	visit, err := a.Repo.VisitByID(ctx, visitID)
	if err != nil {
		return models.Visit{}, fmt.Errorf("query visit: %w", err)
	}
	if visit == nil {
		return models.Visit{}, fmt.Errorf("visit %s: %w", visitID, ErrNotFound)
	}

	updated, err := SkipVisit(*visit, a.now(), reason)
	if err != nil {
		return models.Visit{}, err
	}
	if err := a.Repo.SaveVisit(ctx, updated, false); err != nil {
		return models.Visit{}, fmt.Errorf("save visit: %w", err)
	}
	return updated, nil
}

// emitCompletion is fire and forget: telemetry failures are logged, never
// surfaced to the visit operation.
func (a *Assembler) emitCompletion(ctx context.Context, visit models.Visit) {
	if a.Telemetry == nil {
		return
	}

	route, err := a.Repo.RouteByID(ctx, visit.RouteID)
	if err != nil || route == nil {
		a.Logger.Warn().Err(err).Str("route_id", visit.RouteID).Msg("telemetry: route lookup failed")
		return
	}

	ev := telemetry.VisitEvent{
		VisitID:        visit.ID,
		RouteID:        visit.RouteID,
		StoreID:        visit.StoreID,
		AdvisorID:      route.AdvisorID,
		TasksCompleted: visit.TasksCompleted,
		DamageCount:    visit.DamageCount,
		CompletedAt:    a.now(),
	}
	if visit.ActualDurationMin != nil {
		ev.DurationMin = *visit.ActualDurationMin
	}

	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Telemetry.EmitVisitCompleted(emitCtx, ev); err != nil {
			a.Logger.Warn().Err(err).Str("visit_id", ev.VisitID).Msg("telemetry emit failed")
		}
	}()
}

func (a *Assembler) resolveStores(ctx context.Context, visits []models.Visit) ([]VisitView, error) {
	ids := make([]string, 0, len(visits))
	for _, v := range visits {
		ids = append(ids, v.StoreID)
	}
	stores, err := a.Repo.StoresByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve stores: %w", err)
	}

	views := make([]VisitView, 0, len(visits))
	for _, v := range visits {
		views = append(views, VisitView{Visit: v, Store: stores[v.StoreID]})
	}
	return views, nil
}
