package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldvisit/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Legacy data spells route and visit statuses differently ("in progress"
// with a space on routes, "in_progress" on visits). The mapping lives here
// and nowhere else; the rest of the code sees only the canonical enums.
func routeStatusToDB(st models.RouteStatus) string {
	if st == models.RouteInProgress {
		return "in progress"
	}
	return string(st)
}

func routeStatusFromDB(raw string) models.RouteStatus {
	if raw == "in progress" {
		return models.RouteInProgress
	}
	return models.RouteStatus(raw)
}

func visitStatusFromDB(raw string) models.VisitStatus {
	if raw == "in progress" {
		return models.VisitInProgress
	}
	return models.VisitStatus(raw)
}

// --- advisors / stores ---

func (s *Store) ListAdvisors(ctx context.Context) ([]models.Advisor, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, name, vehicle_type FROM advisors ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Advisor
	for rows.Next() {
		var a models.Advisor
		if err := rows.Scan(&a.ID, &a.Name, &a.VehicleType); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) AdvisorByID(ctx context.Context, id string) (*models.Advisor, error) {
	var a models.Advisor
	err := s.Pool.QueryRow(ctx, `SELECT id, name, vehicle_type FROM advisors WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.VehicleType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const storeColumns = `id, name, address, lat, lng, priority, category, zone, visit_duration_min`

func scanStore(row pgx.Row) (models.Store, error) {
	var st models.Store
	err := row.Scan(&st.ID, &st.Name, &st.Address, &st.Lat, &st.Lng, &st.Priority, &st.Category, &st.Zone, &st.VisitDurationMin)
	return st, err
}

func (s *Store) ListStores(ctx context.Context, zone string) ([]models.Store, error) {
	query := `SELECT ` + storeColumns + ` FROM stores`
	var args []any
	if zone != "" {
		query += ` WHERE zone = $1`
		args = append(args, zone)
	}
	query += ` ORDER BY name, id`

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) StoresByIDs(ctx context.Context, ids []string) (map[string]models.Store, error) {
	if len(ids) == 0 {
		return map[string]models.Store{}, nil
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+storeColumns+` FROM stores WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]models.Store, len(ids))
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out[st.ID] = st
	}
	return out, rows.Err()
}

func (s *Store) ListStoresMissingCoords(ctx context.Context) ([]models.Store, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+storeColumns+` FROM stores WHERE lat IS NULL OR lng IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStoreCoords(ctx context.Context, storeID string, lat, lng float64) error {
	_, err := s.Pool.Exec(ctx, `UPDATE stores SET lat = $2, lng = $3 WHERE id = $1`, storeID, lat, lng)
	return err
}

// --- templates ---

func (s *Store) TemplateByAdvisorWeekday(ctx context.Context, advisorID string, weekday time.Weekday) (*models.RouteTemplate, error) {
	var tmpl models.RouteTemplate
	err := s.Pool.QueryRow(ctx,
		`SELECT id, advisor_id, weekday FROM route_templates WHERE advisor_id = $1 AND weekday = $2`,
		advisorID, int(weekday)).Scan(&tmpl.ID, &tmpl.AdvisorID, &tmpl.Weekday)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT store_id, visit_order FROM template_stops WHERE template_id = $1 ORDER BY visit_order`, tmpl.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var stop models.TemplateStop
		if err := rows.Scan(&stop.StoreID, &stop.VisitOrder); err != nil {
			return nil, err
		}
		tmpl.Stops = append(tmpl.Stops, stop)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (s *Store) UpsertTemplate(ctx context.Context, tmpl models.RouteTemplate) (string, error) {
	var id string
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO route_templates (advisor_id, weekday)
			 VALUES ($1, $2)
			 ON CONFLICT (advisor_id, weekday) DO UPDATE SET weekday = EXCLUDED.weekday
			 RETURNING id`,
			tmpl.AdvisorID, int(tmpl.Weekday)).Scan(&id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM template_stops WHERE template_id = $1`, id); err != nil {
			return err
		}
		for _, stop := range tmpl.Stops {
			if _, err := tx.Exec(ctx,
				`INSERT INTO template_stops (template_id, store_id, visit_order) VALUES ($1, $2, $3)`,
				id, stop.StoreID, stop.VisitOrder); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// --- routes ---

const routeColumns = `id, advisor_id, route_date, total_stores, completed_stores, total_distance_km, total_duration_min, status`

func scanRoute(row pgx.Row) (models.Route, error) {
	var r models.Route
	var status string
	err := row.Scan(&r.ID, &r.AdvisorID, &r.Date, &r.TotalStores, &r.CompletedStores, &r.TotalDistanceKm, &r.TotalDurationMin, &status)
	if err != nil {
		return r, err
	}
	r.Status = routeStatusFromDB(status)
	return r, nil
}

func (s *Store) RoutesByAdvisorDate(ctx context.Context, advisorID string, date time.Time) ([]models.Route, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+routeColumns+` FROM routes WHERE advisor_id = $1 AND route_date = $2 ORDER BY id`,
		advisorID, date.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Route
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) RouteByID(ctx context.Context, routeID string) (*models.Route, error) {
	r, err := scanRoute(s.Pool.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, routeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) CreateRoute(ctx context.Context, route models.Route) (models.Route, error) {
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO routes (advisor_id, route_date, total_stores, completed_stores, total_distance_km, total_duration_min, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		route.AdvisorID, route.Date.Format("2006-01-02"), route.TotalStores, route.CompletedStores,
		route.TotalDistanceKm, route.TotalDurationMin, routeStatusToDB(route.Status)).Scan(&route.ID)
	if err != nil {
		return models.Route{}, err
	}
	return route, nil
}

func (s *Store) DeleteRoute(ctx context.Context, routeID string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM visits WHERE route_id = $1`, routeID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM routes WHERE id = $1`, routeID)
		return err
	})
}

func (s *Store) SetRouteTotals(ctx context.Context, routeID string, totalStores int) error {
	_, err := s.Pool.Exec(ctx, `UPDATE routes SET total_stores = $2 WHERE id = $1`, routeID, totalStores)
	return err
}

// --- visits ---

const visitColumns = `id, route_id, store_id, visit_order, status, start_time, end_time, skip_reason, tasks_completed, damage_count, actual_duration_min`

func scanVisit(row pgx.Row) (models.Visit, error) {
	var v models.Visit
	var status string
	err := row.Scan(&v.ID, &v.RouteID, &v.StoreID, &v.VisitOrder, &status, &v.StartTime, &v.EndTime, &v.SkipReason, &v.TasksCompleted, &v.DamageCount, &v.ActualDurationMin)
	if err != nil {
		return v, err
	}
	v.Status = visitStatusFromDB(status)
	return v, nil
}

func (s *Store) VisitsByRoute(ctx context.Context, routeID string) ([]models.Visit, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE route_id = $1 ORDER BY visit_order`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) VisitByID(ctx context.Context, visitID string) (*models.Visit, error) {
	v, err := scanVisit(s.Pool.QueryRow(ctx, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, visitID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) VisitByRouteStore(ctx context.Context, routeID, storeID string) (*models.Visit, error) {
	v, err := scanVisit(s.Pool.QueryRow(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE route_id = $1 AND store_id = $2`, routeID, storeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) CreateVisit(ctx context.Context, visit models.Visit, bumpTotal bool) (models.Visit, error) {
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO visits (route_id, store_id, visit_order, status, tasks_completed, damage_count)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			visit.RouteID, visit.StoreID, visit.VisitOrder, string(visit.Status), visit.TasksCompleted, visit.DamageCount).Scan(&visit.ID)
		if err != nil {
			return err
		}
		if bumpTotal {
			_, err = tx.Exec(ctx, `UPDATE routes SET total_stores = total_stores + 1 WHERE id = $1`, visit.RouteID)
		}
		return err
	})
	if err != nil {
		return models.Visit{}, err
	}
	return visit, nil
}

func (s *Store) SaveVisit(ctx context.Context, visit models.Visit, bumpCompleted bool) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`UPDATE visits
			 SET status = $2, start_time = $3, end_time = $4, skip_reason = $5,
			     tasks_completed = $6, damage_count = $7, actual_duration_min = $8
			 WHERE id = $1`,
			visit.ID, string(visit.Status), visit.StartTime, visit.EndTime, visit.SkipReason,
			visit.TasksCompleted, visit.DamageCount, visit.ActualDurationMin)
		if err != nil {
			return err
		}
		if bumpCompleted {
			_, err = tx.Exec(ctx, `UPDATE routes SET completed_stores = completed_stores + 1 WHERE id = $1`, visit.RouteID)
		}
		return err
	})
}

// --- bulk import ---

func (s *Store) InsertStores(ctx context.Context, stores []models.Store) (int64, error) {
	rows := make([][]any, 0, len(stores))
	for _, st := range stores {
		rows = append(rows, []any{st.ID, st.Name, st.Address, st.Lat, st.Lng, string(st.Priority), st.Category, st.Zone, st.VisitDurationMin})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"stores"},
		[]string{"id", "name", "address", "lat", "lng", "priority", "category", "zone", "visit_duration_min"},
		pgx.CopyFromRows(rows))
}

func (s *Store) InsertAdvisors(ctx context.Context, advisors []models.Advisor) (int64, error) {
	rows := make([][]any, 0, len(advisors))
	for _, a := range advisors {
		rows = append(rows, []any{a.ID, a.Name, string(a.VehicleType)})
	}
	return s.Pool.CopyFrom(ctx, pgx.Identifier{"advisors"},
		[]string{"id", "name", "vehicle_type"},
		pgx.CopyFromRows(rows))
}
