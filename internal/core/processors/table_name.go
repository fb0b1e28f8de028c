package processors

import (
	"bytes"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"meshgate/internal/core"
	"meshgate/internal/core/engine"
)

// TableNameField is the body field a route may pin to a table
const TableNameField = "table_name"

// TransformBody produces the outbound body for a route.
//
// Blank and non-JSON bodies pass through untouched (invalid JSON is logged).
// For a JSON object, a route with a table name overwrites "table_name"; a
// route without one strips any client-supplied "table_name". The input slice
// is never modified.
func TransformBody(raw []byte, cfg *engine.RouteConfig, log *zap.Logger) []byte {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw
	}
	if log == nil {
		log = zap.NewNop()
	}

	if !gjson.ValidBytes(raw) {
		log.Warn("Request body is not valid JSON, forwarding unmodified",
			zap.Int("body_size", len(raw)),
		)
		return raw
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return raw
	}

	tableName := ""
	if cfg != nil {
		tableName = cfg.TableName
	}

	// sjson only touches the first occurrence of a key, so duplicates are
	// removed one by one before the route's value is set
	out := raw
	for gjson.GetBytes(out, TableNameField).Exists() {
		stripped, err := sjson.DeleteBytes(out, TableNameField)
		if err != nil {
			log.Warn("Failed to strip table_name, forwarding unmodified", zap.Error(err))
			return raw
		}
		out = stripped
	}
	if tableName == "" {
		return out
	}

	injected, err := sjson.SetBytes(out, TableNameField, tableName)
	if err != nil {
		log.Warn("Failed to inject table_name, forwarding unmodified", zap.Error(err))
		return raw
	}
	return injected
}

// TableName applies TransformBody to every request
type TableName struct{}

// NewTableName creates the body transformer processor
func NewTableName() *TableName {
	return &TableName{}
}

// Name returns the processor name
func (p *TableName) Name() string {
	return "table-name"
}

// Priority runs after the request logger
func (p *TableName) Priority() int {
	return 10
}

// OnRequest rewrites the body according to the resolved route
func (p *TableName) OnRequest(ctx *core.GatewayContext, body []byte) ([]byte, error) {
	return TransformBody(body, ctx.Route, ctx.Log), nil
}

// OnResponse is a no-op
func (p *TableName) OnResponse(ctx *core.GatewayContext, res *core.Result) error {
	return nil
}
