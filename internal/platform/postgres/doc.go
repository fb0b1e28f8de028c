// Package postgres implements the external route store on PostgreSQL.
//
// Routes live in a single key/value table: route_key is the "{version}/{module}"
// key and config holds the JSON-serialized route configuration. The schema is
// managed by the embedded goose migrations (see Migrate).
package postgres
