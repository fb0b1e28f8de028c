package core

import (
	"context"
	"time"

	"go.uber.org/zap"

	"meshgate/internal/core/engine"
)

// GatewayContext carries per-request state through the pipeline and adapters
type GatewayContext struct {
	context.Context
	RequestID string
	RouteKey  string
	Route     *engine.RouteConfig
	StartTime time.Time
	Log       *zap.Logger
	// Call is the parsed request, nil until the variant has parsed it
	Call *Call
}

// NewGatewayContext creates a new GatewayContext
func NewGatewayContext(ctx context.Context, logger *zap.Logger) *GatewayContext {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayContext{
		Context:   ctx,
		StartTime: time.Now(),
		Log:       logger,
	}
}

// WithContext returns a shallow copy bound to a derived context, used to
// apply per-call deadlines without losing request state.
func (c *GatewayContext) WithContext(ctx context.Context) *GatewayContext {
	cp := *c
	cp.Context = ctx
	return &cp
}

// RouteType returns the resolved route's type, or "" before resolution
func (c *GatewayContext) RouteType() engine.RouteType {
	if c.Route == nil {
		return ""
	}
	return c.Route.Type
}
