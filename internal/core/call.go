package core

import (
	"net/http"
)

// Call is the normalized inbound request handed to an adapter
type Call struct {
	RequestID string
	// EnvelopeID is the caller's own correlation id (unified envelope only)
	EnvelopeID string
	RouteKey   string
	// Method is the HTTP method to use downstream
	Method string
	// Path is the internal path after the route key, e.g. "/orders/created"
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

// Result is what an adapter produced
type Result struct {
	Status      int
	ContentType string
	Body        []byte
	// JSON is true when Body parsed as JSON
	JSON bool
	// Published is set by bus adapters; Event and Channel describe the message
	Published bool
	Event     string
	Channel   string
}
