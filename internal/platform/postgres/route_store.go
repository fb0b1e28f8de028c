package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"meshgate/internal/core/engine"
)

// DefaultTable is the table created by the bundled migrations
const DefaultTable = "gateway_routes"

// RouteStore reads route configs from PostgreSQL
type RouteStore struct {
	db          *sql.DB
	lookupQuery string
	upsertQuery string
	deleteQuery string
}

// Ensure RouteStore implements engine.RouteStore
var _ engine.RouteStore = (*RouteStore)(nil)

// NewRouteStore creates a store over table. The connection is owned by the caller.
func NewRouteStore(db *sql.DB, table string) *RouteStore {
	if table == "" {
		table = DefaultTable
	}
	ident := pgx.Identifier{table}.Sanitize()
	return &RouteStore{
		db:          db,
		lookupQuery: fmt.Sprintf("SELECT config FROM %s WHERE route_key = $1", ident),
		upsertQuery: fmt.Sprintf(
			"INSERT INTO %s (route_key, config, updated_at) VALUES ($1, $2, NOW()) "+
				"ON CONFLICT (route_key) DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()", ident),
		deleteQuery: fmt.Sprintf("DELETE FROM %s WHERE route_key = $1", ident),
	}
}

// LookupRoute implements engine.RouteStore
func (s *RouteStore) LookupRoute(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.lookupQuery, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup route %q: %w", key, err)
	}
	return payload, true, nil
}

// PutRoute stores the JSON form of cfg under key
func (s *RouteStore) PutRoute(ctx context.Context, key string, cfg engine.RouteConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("put route %q: %w", key, err)
	}
	payload, err := sonic.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("put route %q: %w", key, err)
	}
	if _, err := s.db.ExecContext(ctx, s.upsertQuery, key, string(payload)); err != nil {
		return fmt.Errorf("put route %q: %w", key, err)
	}
	return nil
}

// DeleteRoute removes key; deleting a missing key is not an error
func (s *RouteStore) DeleteRoute(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.deleteQuery, key); err != nil {
		return fmt.Errorf("delete route %q: %w", key, err)
	}
	return nil
}
