package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/xKoRx/echo/sdk/domain"
)

// ===========================================================================
// sqlRouteRepo
// ===========================================================================

type sqlRouteRepo struct {
	db *sql.DB
	d  dialect
}

const routeSelect = `
	SELECT r.route_id, r.status,
	       s.id, s.label, s.registered_at_ms, s.expire_at_ms, s.tier, s.enabled,
	       d.id, d.label, d.registered_at_ms, d.expire_at_ms, d.tier, d.enabled
	FROM routes r
	JOIN terminals s ON s.id = r.source_id
	JOIN terminals d ON d.id = r.destination_id
`

func (r *sqlRouteRepo) Get(ctx context.Context, id domain.RouteID) (*domain.Route, error) {
	query := r.d.rebind(routeSelect + ` WHERE r.route_id = ?`)
	route, err := scanRoute(r.db.QueryRowContext(ctx, query, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	return route, nil
}

func (r *sqlRouteRepo) GetByTerminal(ctx context.Context, id domain.TerminalID, role domain.TerminalRole) ([]*domain.Route, error) {
	var (
		where string
		args  []any
	)
	switch role {
	case domain.RoleSource:
		where, args = `r.source_id = ?`, []any{id.String()}
	case domain.RoleDestination:
		where, args = `r.destination_id = ?`, []any{id.String()}
	default:
		where, args = `(r.source_id = ? OR r.destination_id = ?)`, []any{id.String(), id.String()}
	}

	query := r.d.rebind(routeSelect + ` WHERE ` + where + ` ORDER BY r.route_id`)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	var routes []*domain.Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routes: %w", err)
	}
	return routes, nil
}

func (r *sqlRouteRepo) Save(ctx context.Context, route *domain.Route) (domain.RouteID, error) {
	query := r.d.rebind(`
		INSERT INTO routes (source_id, destination_id, status)
		VALUES (?, ?, ?)
		ON CONFLICT (source_id, destination_id) DO UPDATE SET
			status = excluded.status
		RETURNING route_id
	`)
	var id int64
	err := r.db.QueryRowContext(ctx, query,
		route.Source.ID.String(),
		route.Destination.ID.String(),
		int(route.Status),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save route: %w", err)
	}
	route.ID = domain.RouteID(id)
	return route.ID, nil
}

func (r *sqlRouteRepo) Delete(ctx context.Context, id domain.RouteID) error {
	query := r.d.rebind(`DELETE FROM routes WHERE route_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, int64(id)); err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}
	return nil
}

// terminalScan acumula las columnas de una terminal dentro de un join.
type terminalScan struct {
	id           string
	label        string
	registeredAt int64
	expireAt     sql.NullInt64
	tier         int
	enabled      bool
}

func (s *terminalScan) dest() []any {
	return []any{&s.id, &s.label, &s.registeredAt, &s.expireAt, &s.tier, &s.enabled}
}

// Scan permite reutilizar scanTerminal sobre valores ya leídos.
func (s *terminalScan) Scan(dest ...any) error {
	*dest[0].(*string) = s.id
	*dest[1].(*string) = s.label
	*dest[2].(*int64) = s.registeredAt
	*dest[3].(*sql.NullInt64) = s.expireAt
	*dest[4].(*int) = s.tier
	*dest[5].(*bool) = s.enabled
	return nil
}

func scanRoute(row rowScanner) (*domain.Route, error) {
	var (
		id       int64
		status   int
		src, dst terminalScan
	)
	dest := append([]any{&id, &status}, src.dest()...)
	dest = append(dest, dst.dest()...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	source, err := scanTerminal(&src)
	if err != nil {
		return nil, err
	}
	destination, err := scanTerminal(&dst)
	if err != nil {
		return nil, err
	}
	return &domain.Route{
		ID:          domain.RouteID(id),
		Source:      source,
		Destination: destination,
		Status:      domain.RouteStatus(status),
	}, nil
}
