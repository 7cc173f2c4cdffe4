package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/segyhp/loan-importer/internal/domain"
)

func (s *PostgresStore) EnsureRoute(ctx context.Context, name string) (*domain.Route, error) {
	insert := `INSERT INTO routes (id, name) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`
	if _, err := s.q.ExecContext(ctx, insert, uuid.New(), name); err != nil {
		return nil, err
	}
	return s.FindRouteByName(ctx, name)
}

func (s *PostgresStore) FindRouteByName(ctx context.Context, name string) (*domain.Route, error) {
	query := `SELECT id, name FROM routes WHERE name = $1`

	var route domain.Route
	if err := sqlx.GetContext(ctx, s.q, &route, query, name); err != nil {
		return nil, err
	}

	return &route, nil
}

func (s *PostgresStore) ListRoutes(ctx context.Context) ([]*domain.Route, error) {
	query := `SELECT id, name FROM routes ORDER BY name`

	var routes []*domain.Route
	if err := sqlx.SelectContext(ctx, s.q, &routes, query); err != nil {
		return nil, err
	}

	return routes, nil
}

// RouteSnapshot uses the earliest lead assigned to the route. A route without
// a lead yields a snapshot with empty lead fields.
func (s *PostgresStore) RouteSnapshot(ctx context.Context, routeID uuid.UUID) (domain.RouteSnapshot, error) {
	query := `
		SELECT r.id AS snapshot_route_id, r.name AS snapshot_route_name,
			e.id AS snapshot_lead_id, COALESCE(pd.full_name, '') AS snapshot_lead_name,
			e.created_at AS snapshot_lead_assigned_at
		FROM routes r
		LEFT JOIN LATERAL (
			SELECT id, personal_data_id, created_at FROM employees
			WHERE route_id = r.id AND type = $2
			ORDER BY created_at
			LIMIT 1
		) e ON TRUE
		LEFT JOIN personal_data pd ON pd.id = e.personal_data_id
		WHERE r.id = $1
	`

	var snapshot domain.RouteSnapshot
	if err := sqlx.GetContext(ctx, s.q, &snapshot, query, routeID, domain.EmployeeTypeLead); err != nil {
		return domain.RouteSnapshot{}, err
	}

	return snapshot, nil
}
