package postgres

import (
	"context"
	"errors"
	"fmt"

	"busticket/internal/domain/route"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RouteRepository struct {
	pool *pgxpool.Pool
}

func NewRouteRepository(pool *pgxpool.Pool) *RouteRepository {
	return &RouteRepository{pool: pool}
}

const routeStopColumns = `
	rs.id::text, rs.route_id::text, rs.stop_id::text, rs.stop_order, rs.fare_from_origin,
	s.id::text, s.stop_code, s.stop_name, s.latitude, s.longitude`

func (r *RouteRepository) ListRoutes(ctx context.Context) ([]*route.Route, error) {
	const sql = `
		SELECT id::text, route_number, route_name, state, created_at, updated_at
		FROM routes
		ORDER BY route_number
	`

	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query routes: %w", err)
	}
	defer rows.Close()

	var routes []*route.Route
	for rows.Next() {
		rt := &route.Route{}
		if err := rows.Scan(&rt.ID, &rt.RouteNumber, &rt.RouteName, &rt.State, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan route: %w", err)
		}
		routes = append(routes, rt)
	}
	return routes, rows.Err()
}

func (r *RouteRepository) GetRoute(ctx context.Context, id string) (*route.Route, error) {
	const sql = `
		SELECT id::text, route_number, route_name, state, created_at, updated_at
		FROM routes
		WHERE id::text = $1
	`

	rt := &route.Route{}
	err := conn(ctx, r.pool).QueryRow(ctx, sql, id).Scan(&rt.ID, &rt.RouteNumber, &rt.RouteName, &rt.State, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get route: %w", err)
	}
	return rt, nil
}

func (r *RouteRepository) GetRouteStop(ctx context.Context, id string) (*route.RouteStop, error) {
	sql := `SELECT ` + routeStopColumns + `
		FROM route_stops rs
		JOIN stops s ON s.id = rs.stop_id
		WHERE rs.id::text = $1`

	rs, err := scanRouteStop(conn(ctx, r.pool).QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get route stop: %w", err)
	}
	return rs, nil
}

func (r *RouteRepository) ListRouteStops(ctx context.Context, routeID string) ([]*route.RouteStop, error) {
	sql := `SELECT ` + routeStopColumns + `
		FROM route_stops rs
		JOIN stops s ON s.id = rs.stop_id
		WHERE rs.route_id::text = $1
		ORDER BY rs.stop_order`

	rows, err := r.pool.Query(ctx, sql, routeID)
	if err != nil {
		return nil, fmt.Errorf("query route stops: %w", err)
	}
	defer rows.Close()

	var stops []*route.RouteStop
	for rows.Next() {
		rs, err := scanRouteStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scan route stop: %w", err)
		}
		stops = append(stops, rs)
	}
	return stops, rows.Err()
}

func scanRouteStop(row pgx.Row) (*route.RouteStop, error) {
	rs := &route.RouteStop{}
	err := row.Scan(
		&rs.ID, &rs.RouteID, &rs.StopID, &rs.StopOrder, &rs.FareFromOrigin,
		&rs.Stop.ID, &rs.Stop.StopCode, &rs.Stop.StopName, &rs.Stop.Latitude, &rs.Stop.Longitude,
	)
	if err != nil {
		return nil, err
	}
	return rs, nil
}
