package adapters

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"meshgate/internal/core"
	"meshgate/internal/core/engine"
	"meshgate/internal/pkg/secrets"
)

// DefaultEventBusEndpoint is the REST publish endpoint used when none is configured
const DefaultEventBusEndpoint = "https://rest.ably.io"

// BusMessage is one entry of a publish request
type BusMessage struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// EventBusAdapter publishes the request body to a channel on the REST event bus
type EventBusAdapter struct {
	client   *http.Client
	secrets  secrets.Resolver
	endpoint string
}

// NewEventBusAdapter creates the publish-to-bus adapter
func NewEventBusAdapter(client *http.Client, resolver secrets.Resolver, endpoint string) *EventBusAdapter {
	if client == nil {
		client = NewHTTPClient(0)
	}
	if resolver == nil {
		resolver = secrets.EnvResolver{}
	}
	if endpoint == "" {
		endpoint = DefaultEventBusEndpoint
	}
	return &EventBusAdapter{
		client:   client,
		secrets:  resolver,
		endpoint: strings.TrimRight(endpoint, "/"),
	}
}

// Kind implements core.Adapter
func (a *EventBusAdapter) Kind() engine.RouteType {
	return engine.RouteTypeEventBus
}

// Invoke implements core.Adapter
func (a *EventBusAdapter) Invoke(ctx *core.GatewayContext, call *core.Call) (*core.Result, error) {
	route := ctx.Route
	if route == nil {
		return nil, core.ErrConfig(fmt.Errorf("event bus adapter invoked without a route"))
	}

	name := engine.EventName(call.Path)
	payload, err := BuildPublishBody(name, call.Body)
	if err != nil {
		return nil, core.ErrInvalidJSON(
			fmt.Sprintf("Invalid JSON body for event bus route %s", call.Path), err)
	}

	secret, ok := a.secrets.Lookup(route.AuthKeyEnvName)
	if !ok {
		return nil, core.ErrConfig(fmt.Errorf("secret %q is not set", route.AuthKeyEnvName))
	}

	target := a.ChannelURL(route.ChannelName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, core.ErrConfig(fmt.Errorf("failed to create publish request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(secret+":")))
	if call.RequestID != "" {
		req.Header.Set("X-Request-ID", call.RequestID)
	}

	ctx.Log.Debug("Publishing event",
		zap.String("channel", route.ChannelName),
		zap.String("event", name),
	)

	resp, err := a.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, core.ErrForward("Event bus publish timed out", err)
		}
		return nil, core.ErrForward("Event bus unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		ctx.Log.Debug("Event bus response body truncated",
			zap.Int("status", resp.StatusCode),
			zap.Int("read_bytes", len(respBody)),
			zap.Error(err),
		)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.ErrForward(
			fmt.Sprintf("Event bus publish failed: %s", strings.TrimSpace(string(respBody))),
			fmt.Errorf("event bus returned HTTP %d", resp.StatusCode),
		)
	}

	return &core.Result{
		Status:    http.StatusOK,
		Published: true,
		Event:     name,
		Channel:   route.ChannelName,
	}, nil
}

// ChannelURL returns the publish URL for a channel
func (a *EventBusAdapter) ChannelURL(channel string) string {
	return a.endpoint + "/channels/" + url.PathEscape(channel) + "/messages"
}

// BuildPublishBody wraps a JSON payload as [{"name": name, "data": payload}].
// It fails when payload is not valid JSON.
func BuildPublishBody(name string, payload []byte) ([]byte, error) {
	if !isJSON(payload) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return sonic.Marshal([]BusMessage{{Name: name, Data: json.RawMessage(bytes.TrimSpace(payload))}})
}
