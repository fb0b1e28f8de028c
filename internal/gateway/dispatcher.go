// Package gateway wires authentication, route resolution, body
// transformation, protocol adapters and envelopes into one HTTP handler.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"meshgate/internal/core"
	"meshgate/internal/core/auth"
	"meshgate/internal/core/engine"
	"meshgate/internal/core/envelope"
	"meshgate/internal/core/security"
	"meshgate/internal/pkg/logger"
	"meshgate/internal/pkg/metrics"
	"meshgate/internal/pkg/secrets"
)

// DefaultTimeout bounds every downstream call when none is configured
const DefaultTimeout = 30 * time.Second

// Options holds the collaborators of a Dispatcher
type Options struct {
	Authenticator  *auth.Authenticator
	Variant        envelope.Variant
	Resolver       *engine.Resolver
	Adapters       *core.Registry
	Pipeline       *core.Pipeline
	Secrets        secrets.Resolver
	Timeout        time.Duration
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	RedactPatterns []string // extra regular expressions scrubbed from logs and error messages
}

// Dispatcher handles one gateway request end to end:
// authenticate, parse, resolve, validate, transform, invoke, render.
type Dispatcher struct {
	auth     *auth.Authenticator
	variant  envelope.Variant
	resolver *engine.Resolver
	adapters *core.Registry
	pipeline *core.Pipeline
	secrets  secrets.Resolver
	timeout  time.Duration
	log      *logger.Logger
	metrics  *metrics.Metrics
	scanner  *security.Scanner
}

// New creates a dispatcher. Missing optional collaborators get defaults.
func New(opts Options) (*Dispatcher, error) {
	if opts.Authenticator == nil {
		return nil, errors.New("dispatcher: authenticator is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("dispatcher: resolver is required")
	}
	if opts.Adapters == nil {
		return nil, errors.New("dispatcher: adapter registry is required")
	}

	d := &Dispatcher{
		auth:     opts.Authenticator,
		variant:  opts.Variant,
		resolver: opts.Resolver,
		adapters: opts.Adapters,
		pipeline: opts.Pipeline,
		secrets:  opts.Secrets,
		timeout:  opts.Timeout,
		log:      logger.Wrap(opts.Logger).Component("dispatcher"),
		metrics:  opts.Metrics,
		scanner:  security.NewScanner(),
	}
	if d.variant == nil {
		d.variant = &envelope.PathVariant{}
	}
	if d.pipeline == nil {
		d.pipeline = core.NewPipeline()
	}
	if d.secrets == nil {
		d.secrets = secrets.EnvResolver{}
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	for i, pattern := range opts.RedactPatterns {
		if err := d.scanner.AddRule(fmt.Sprintf("Custom %d", i+1), pattern, "[REDACTED]"); err != nil {
			return nil, fmt.Errorf("dispatcher: invalid redact pattern %q: %w", pattern, err)
		}
	}
	return d, nil
}

// Variant returns the API variant this dispatcher serves
func (d *Dispatcher) Variant() envelope.Variant {
	return d.variant
}

// ServeHTTP implements http.Handler
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	reqLog := d.log.ForRequest(requestID)
	gctx := core.NewGatewayContext(r.Context(), reqLog.Zap())
	gctx.RequestID = requestID

	resp := d.safeDispatch(gctx, r)

	d.metrics.ObserveRequest(string(gctx.RouteType()), resp.Status, time.Since(gctx.StartTime))
	envelope.Write(w, resp)
}

// safeDispatch is the last line of defence: a panic anywhere in the request
// path becomes a generic 500.
func (d *Dispatcher) safeDispatch(gctx *core.GatewayContext, r *http.Request) (resp envelope.Response) {
	defer func() {
		if p := recover(); p != nil {
			gctx.Log.Error("Gateway panic recovered", zap.String("panic", fmt.Sprint(p)), zap.Stack("stack"))
			resp = d.variant.Failure(gctx.Call, core.ErrInternal(fmt.Errorf("panic: %v", p)))
		}
	}()
	return d.Dispatch(gctx, r)
}

// Dispatch runs the gateway pipeline for one request and renders the envelope
func (d *Dispatcher) Dispatch(gctx *core.GatewayContext, r *http.Request) envelope.Response {
	var call *core.Call
	fail := func(gwErr *core.Error) envelope.Response {
		d.logFailure(gctx, gwErr)
		return d.variant.Failure(call, gwErr)
	}

	// 1. authenticate before touching the body or any downstream
	if err := d.auth.Authenticate(r.Header.Get("Authorization")); err != nil {
		return fail(core.ErrUnauthorized())
	}

	// 2. derive the route key
	call, gwErr := d.variant.Parse(r)
	if gwErr != nil {
		return fail(gwErr)
	}
	call.RequestID = gctx.RequestID
	gctx.Call = call
	gctx.RouteKey = call.RouteKey

	// 3. resolve; store problems have already been downgraded to a miss
	route, ok := d.resolver.Resolve(gctx, call.RouteKey)
	if !ok {
		return fail(core.ErrServiceNotFound())
	}
	gctx.Route = route
	gctx.Log = logger.Wrap(gctx.Log).ForRoute(call.RouteKey, string(route.Type)).Zap()

	// 4. validate before any adapter runs
	if err := route.Validate(); err != nil {
		return fail(core.ErrConfig(err))
	}
	adapter, ok := d.adapters.Lookup(route.Type)
	if !ok {
		return fail(core.ErrUnsupportedType(string(route.Type)))
	}
	secret := ""
	if route.AuthKeyEnvName != "" {
		secret, ok = d.secrets.Lookup(route.AuthKeyEnvName)
		if !ok {
			return fail(core.ErrConfig(fmt.Errorf("secret %q for route %s is not set", route.AuthKeyEnvName, call.RouteKey)))
		}
	}

	// 5. transform
	body, err := d.pipeline.ExecuteRequest(gctx, call.Body)
	if err != nil {
		return fail(core.ErrInternal(err))
	}
	call.Body = body

	// 6. invoke
	res, err := d.invoke(gctx, adapter, call)
	if err != nil {
		if gwErr, ok := core.AsError(err); ok {
			return fail(d.redact(gwErr, secret))
		}
		gctx.Log.Error("Adapter failed",
			zap.String("error", d.scanner.Sanitize(err.Error(), secret)),
		)
		return fail(core.ErrInternal(err))
	}

	if err := d.pipeline.ExecuteResponse(gctx, res); err != nil {
		gctx.Log.Warn("Response processor failed", zap.Error(err))
	}

	// 7. render
	return d.variant.Success(call, res)
}

// invoke calls the adapter under the downstream timeout and turns a panic or
// a nil result into an error.
func (d *Dispatcher) invoke(gctx *core.GatewayContext, adapter core.Adapter, call *core.Call) (res *core.Result, err error) {
	callCtx, cancel := context.WithTimeout(gctx, d.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("adapter %s panicked: %v", adapter.Kind(), p)
		}
		d.metrics.ObserveDownstream(string(adapter.Kind()), err == nil, time.Since(start))
	}()

	res, err = adapter.Invoke(gctx.WithContext(callCtx), call)
	if err == nil && res == nil {
		err = fmt.Errorf("adapter %s returned no result", adapter.Kind())
	}
	return res, err
}

// redact strips the route secret from a client-visible error message
func (d *Dispatcher) redact(gwErr *core.Error, secret string) *core.Error {
	clean := d.scanner.Sanitize(gwErr.Message, secret)
	if clean == gwErr.Message {
		return gwErr
	}
	cp := *gwErr
	cp.Message = clean
	return &cp
}

func (d *Dispatcher) logFailure(gctx *core.GatewayContext, gwErr *core.Error) {
	fields := []zap.Field{
		zap.Int("status", gwErr.Status),
		zap.String("code", gwErr.Code),
		zap.String("message", gwErr.Message),
		zap.Duration("latency", time.Since(gctx.StartTime)),
	}
	if gwErr.Err != nil {
		fields = append(fields, zap.String("cause", d.scanner.Sanitize(gwErr.Err.Error())))
	}

	switch {
	case gwErr.Status >= http.StatusInternalServerError:
		gctx.Log.Error("Request Failed", fields...)
	case gwErr.Status == http.StatusUnauthorized:
		gctx.Log.Warn("Request Rejected", fields...)
	default:
		gctx.Log.Info("Request Failed", fields...)
	}
}
