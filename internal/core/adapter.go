package core

import (
	"sort"

	"meshgate/internal/core/engine"
)

// Adapter delivers a Call to a downstream system. There is one adapter per
// RouteType; forwarders relay a request and return the downstream response,
// publishers push a message onto a bus and return an acknowledgement.
type Adapter interface {
	// Kind returns the route type this adapter serves
	Kind() engine.RouteType
	// Invoke sends the call. Errors that should reach the caller are *Error;
	// anything else is reported as a generic processing failure.
	Invoke(ctx *GatewayContext, call *Call) (*Result, error)
}

// Registry selects the adapter for a route type
type Registry struct {
	adapters map[engine.RouteType]Adapter
}

// NewRegistry creates a registry holding the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[engine.RouteType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter, replacing any previous one for the same kind.
// Nil adapters are ignored.
func (r *Registry) Register(a Adapter) {
	if a == nil {
		return
	}
	r.adapters[a.Kind()] = a
}

// Lookup returns the adapter for kind
func (r *Registry) Lookup(kind engine.RouteType) (Adapter, bool) {
	a, ok := r.adapters[kind]
	return a, ok
}

// Kinds lists the registered route types in sorted order
func (r *Registry) Kinds() []engine.RouteType {
	kinds := make([]engine.RouteType, 0, len(r.adapters))
	for k := range r.adapters {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
