package engine

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// RouteType selects the protocol adapter that serves a route
type RouteType string

// RouteType constants
const (
	RouteTypeREST     RouteType = "REST"      // forward-and-relay over HTTP
	RouteTypeEventBus RouteType = "EVENT_BUS" // publish to the REST event bus
	RouteTypeNATS     RouteType = "NATS"      // publish on a NATS subject
)

// RouteConfig is the resolved destination for one route key.
// The JSON form is what the external route store holds; the mapstructure form
// is what the YAML config file holds.
type RouteConfig struct {
	// Type picks the adapter (REST, EVENT_BUS, NATS)
	Type RouteType `json:"type" mapstructure:"type" validate:"required"`
	// TargetURL is the downstream base URL for REST routes
	TargetURL string `json:"targetUrl,omitempty" mapstructure:"target_url" validate:"required_if=Type REST,omitempty,url,startswith=http"`
	// ChannelName is the bus channel (EVENT_BUS) or subject prefix (NATS)
	ChannelName string `json:"channelName,omitempty" mapstructure:"channel_name" validate:"required_if=Type EVENT_BUS,required_if=Type NATS"`
	// AuthKeyEnvName names the secret used to authenticate against the downstream
	AuthKeyEnvName string `json:"authKeyEnvName,omitempty" mapstructure:"auth_key_env_name" validate:"required_if=Type EVENT_BUS"`
	// TableName, when set, is injected into JSON request bodies as "table_name"
	TableName string `json:"table_name,omitempty" mapstructure:"table_name"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func routeValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the fields the route's type depends on.
func (c *RouteConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("route config is nil")
	}
	if err := routeValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid route config: %w", err)
	}
	return nil
}

// Clone returns a copy so a resolved config cannot leak mutations back into
// the static table.
func (c *RouteConfig) Clone() *RouteConfig {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// StaticTable maps route keys to configurations. Built once at startup and
// only read afterwards, so concurrent lookups need no locking.
type StaticTable struct {
	routes map[string]RouteConfig
}

// NewStaticTable copies routes into a new table.
func NewStaticTable(routes map[string]RouteConfig) *StaticTable {
	t := &StaticTable{routes: make(map[string]RouteConfig, len(routes))}
	for k, v := range routes {
		t.routes[k] = v
	}
	return t
}

// Get returns a copy of the config for key.
func (t *StaticTable) Get(key string) (*RouteConfig, bool) {
	if t == nil {
		return nil, false
	}
	cfg, ok := t.routes[key]
	if !ok {
		return nil, false
	}
	return &cfg, true
}

// Keys lists the route keys in the table (unordered).
func (t *StaticTable) Keys() []string {
	if t == nil {
		return nil
	}
	keys := make([]string, 0, len(t.routes))
	for k := range t.routes {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of static routes.
func (t *StaticTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.routes)
}
