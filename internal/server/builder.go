package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"meshgate/internal/config"
	"meshgate/internal/core"
	"meshgate/internal/core/adapters"
	"meshgate/internal/core/auth"
	"meshgate/internal/core/engine"
	"meshgate/internal/core/envelope"
	"meshgate/internal/core/processors"
	"meshgate/internal/gateway"
	"meshgate/internal/pkg/metrics"
	"meshgate/internal/pkg/secrets"
	"meshgate/internal/platform/postgres"
)

// Gateway is a fully assembled dispatcher together with the connections it owns
type Gateway struct {
	Dispatcher *gateway.Dispatcher
	Metrics    *metrics.Metrics

	db   *sql.DB
	nats *nats.Conn
}

// Build assembles the gateway described by cfg. Secrets come from the
// environment first and the config's secrets map second.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Gateway, error) {
	if log == nil {
		log = zap.NewNop()
	}
	g := &Gateway{Metrics: metrics.New()}

	resolver := secrets.Chain{secrets.EnvResolver{}, secrets.MapResolver(cfg.Secrets)}

	masterToken, _ := resolver.Lookup(cfg.Auth.MasterTokenEnv)
	authenticator := auth.NewAuthenticator(masterToken)
	if !authenticator.Configured() {
		log.Warn("Master token is not set, every request will be rejected",
			zap.String("secret", cfg.Auth.MasterTokenEnv))
	}

	variant, err := envelope.New(cfg.Gateway.Variant)
	if err != nil {
		return nil, err
	}

	resolverOpts := []engine.ResolverOption{
		engine.WithLogger(log.Named("resolver")),
		engine.WithMetrics(g.Metrics),
	}
	if cfg.Store.Driver == "postgres" {
		db, err := postgres.Open(ctx, cfg.Store.DSN, log)
		if err != nil {
			return nil, err
		}
		g.db = db
		resolverOpts = append(resolverOpts,
			engine.WithStore(postgres.NewRouteStore(db, cfg.Store.Table), cfg.Store.Timeout))
	}
	routeResolver := engine.NewResolver(cfg.StaticRoutes(), resolverOpts...)

	client := adapters.NewHTTPClient(cfg.Downstream.Timeout)
	registry := core.NewRegistry(
		adapters.NewRESTAdapter(client, resolver),
		adapters.NewEventBusAdapter(client, resolver, cfg.EventBus.Endpoint),
	)
	if cfg.NATS.URL != "" {
		conn, err := adapters.ConnectNATS(cfg.NATS.URL, cfg.NATS.ClientName, log.Named("nats"))
		if err != nil {
			g.Close()
			return nil, err
		}
		g.nats = conn
		registry.Register(adapters.NewNATSAdapter(conn))
	}

	pipeline := core.NewPipeline(processors.NewRequestLogger(), processors.NewTableName())
	dispatcher, err := gateway.New(gateway.Options{
		Authenticator:  authenticator,
		Variant:        variant,
		Resolver:       routeResolver,
		Adapters:       registry,
		Pipeline:       pipeline,
		Secrets:        resolver,
		Timeout:        cfg.Downstream.Timeout,
		Logger:         log,
		Metrics:        g.Metrics,
		RedactPatterns: cfg.Log.RedactPatterns,
	})
	if err != nil {
		g.Close()
		return nil, fmt.Errorf("failed to build dispatcher: %w", err)
	}
	g.Dispatcher = dispatcher

	log.Info("Gateway assembled",
		zap.String("variant", variant.Name()),
		zap.Int("static_routes", routeResolver.Static().Len()),
		zap.Bool("route_store", routeResolver.HasStore()),
		zap.Strings("adapters", kindNames(registry.Kinds())),
		zap.Strings("processors", pipeline.Processors()),
	)
	return g, nil
}

// Close releases the store and bus connections
func (g *Gateway) Close() error {
	var errs []error
	if g.nats != nil {
		if err := g.nats.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain nats: %w", err))
		}
		g.nats = nil
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		g.db = nil
	}
	return errors.Join(errs...)
}

func kindNames(kinds []engine.RouteType) []string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return names
}
