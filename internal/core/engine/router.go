package engine

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"meshgate/internal/pkg/metrics"
)

// RouteStore is the external key-value route lookup. A miss is reported as
// found == false with a nil error; payload is a JSON-serialized RouteConfig.
type RouteStore interface {
	LookupRoute(ctx context.Context, key string) (payload []byte, found bool, err error)
}

// Lookup sources reported to metrics
const (
	SourceStatic = "static"
	SourceStore  = "store"
	SourceMiss   = "miss"
)

// Resolver resolves route keys against the static table first and the
// external store second. Store failures degrade to "not found".
type Resolver struct {
	static       *StaticTable
	store        RouteStore
	storeTimeout time.Duration
	log          *zap.Logger
	metrics      *metrics.Metrics
}

// ResolverOption customizes a Resolver
type ResolverOption func(*Resolver)

// WithStore enables the external route store fallback.
func WithStore(store RouteStore, timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.store = store
		r.storeTimeout = timeout
	}
}

// WithLogger sets the logger used for store warnings.
func WithLogger(log *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics counts lookups by source.
func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver creates a resolver over the given static table.
func NewResolver(static *StaticTable, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		static: static,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the route config for key, or false when neither the static
// table nor the store knows it. It never returns an error: store problems are
// logged and treated as a miss.
func (r *Resolver) Resolve(ctx context.Context, key string) (*RouteConfig, bool) {
	if cfg, ok := r.static.Get(key); ok {
		r.metrics.ObserveLookup(SourceStatic)
		return cfg, true
	}

	if r.store == nil {
		r.metrics.ObserveLookup(SourceMiss)
		return nil, false
	}

	cfg, ok := r.lookupStore(ctx, key)
	if ok {
		r.metrics.ObserveLookup(SourceStore)
	} else {
		r.metrics.ObserveLookup(SourceMiss)
	}
	return cfg, ok
}

func (r *Resolver) lookupStore(ctx context.Context, key string) (*RouteConfig, bool) {
	if r.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.storeTimeout)
		defer cancel()
	}

	payload, found, err := r.store.LookupRoute(ctx, key)
	if err != nil {
		r.log.Warn("Route store lookup failed, treating as not found",
			zap.String("route_key", key),
			zap.Error(err),
		)
		return nil, false
	}
	if !found {
		return nil, false
	}

	var cfg RouteConfig
	if err := sonic.Unmarshal(payload, &cfg); err != nil {
		r.log.Warn("Route store returned an unparseable config",
			zap.String("route_key", key),
			zap.Error(err),
		)
		return nil, false
	}
	return &cfg, true
}

// HasStore reports whether an external store is configured.
func (r *Resolver) HasStore() bool {
	return r.store != nil
}

// Static returns the static route table.
func (r *Resolver) Static() *StaticTable {
	return r.static
}
