package adapters

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"meshgate/internal/core"
	"meshgate/internal/core/engine"
	"meshgate/internal/pkg/secrets"
)

// hopHeaders are never forwarded downstream
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
	"Host",
}

// RESTAdapter forwards a call to an HTTP service and relays its response
type RESTAdapter struct {
	client  *http.Client
	secrets secrets.Resolver
}

// NewRESTAdapter creates the forward-and-relay adapter
func NewRESTAdapter(client *http.Client, resolver secrets.Resolver) *RESTAdapter {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if resolver == nil {
		resolver = secrets.EnvResolver{}
	}
	return &RESTAdapter{client: client, secrets: resolver}
}

// Kind implements core.Adapter
func (a *RESTAdapter) Kind() engine.RouteType {
	return engine.RouteTypeREST
}

// Invoke implements core.Adapter
func (a *RESTAdapter) Invoke(ctx *core.GatewayContext, call *core.Call) (*core.Result, error) {
	route := ctx.Route
	if route == nil {
		return nil, core.ErrConfig(fmt.Errorf("rest adapter invoked without a route"))
	}

	target := BuildTargetURL(route.TargetURL, call.Path, call.RawQuery)
	method := call.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader = http.NoBody
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, core.ErrConfig(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header = a.buildHeaders(call, route)

	ctx.Log.Debug("Forwarding request",
		zap.String("method", method),
		zap.String("target", target),
	)

	resp, err := a.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, core.ErrForward("Downstream request timed out", err)
		}
		return nil, core.ErrForward("Failed to forward request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, core.ErrForward("Downstream request timed out", err)
		}
		return nil, core.ErrForward("Failed to read downstream response", err)
	}

	return &core.Result{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
		JSON:        isJSON(respBody),
	}, nil
}

// buildHeaders copies the inbound headers and swaps the caller's credential
// for the route's own. Without a route secret no Authorization is sent, so the
// master token never reaches a downstream.
func (a *RESTAdapter) buildHeaders(call *core.Call, route *engine.RouteConfig) http.Header {
	headers := call.Header.Clone()
	if headers == nil {
		headers = make(http.Header)
	}
	for _, h := range hopHeaders {
		headers.Del(h)
	}
	// the transport only decompresses responses when it negotiated the encoding itself
	headers.Del("Accept-Encoding")

	headers.Del("Authorization")
	if secret, ok := a.secrets.Lookup(route.AuthKeyEnvName); ok {
		headers.Set("Authorization", "Bearer "+secret)
	}

	if call.RequestID != "" {
		headers.Set("X-Request-ID", call.RequestID)
	}
	return headers
}

// BuildTargetURL joins the route's base URL, the internal path and the query
//
//	("https://svc/api/", "/orders/1", "x=1") -> "https://svc/api/orders/1?x=1"
func BuildTargetURL(base, path, rawQuery string) string {
	target := strings.TrimRight(base, "/") + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}
