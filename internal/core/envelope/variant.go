// Package envelope turns inbound HTTP requests into gateway calls and adapter
// results into the response envelope of the configured API variant.
//
// Two variants exist and a deployment uses exactly one of them:
//
//   - path:    ANY /{version}/{module}/... answered with {success, ...} bodies
//   - unified: POST /api with a {version, service, action, payload} body,
//     answered with {type: ack|nack} bodies
package envelope

import (
	"fmt"
	"io"
	"net/http"

	"meshgate/internal/core"
)

// Variant names accepted in configuration
const (
	VariantPath    = "path"
	VariantUnified = "unified"
)

// maxRequestBytes caps the inbound body size
const maxRequestBytes = 10 << 20

// Response is a fully rendered HTTP response
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Variant parses requests and renders envelopes for one API convention
type Variant interface {
	// Name returns the variant name ("path" or "unified")
	Name() string
	// Pattern is the chi route pattern the variant is mounted on
	Pattern() string
	// Method is the HTTP method to mount, or "" for any
	Method() string
	// Parse derives the route key and downstream call from a request
	Parse(r *http.Request) (*core.Call, *core.Error)
	// Success renders an adapter result
	Success(call *core.Call, res *core.Result) Response
	// Failure renders a gateway error; call may be nil when parsing never happened
	Failure(call *core.Call, err *core.Error) Response
}

// New returns the variant with the given name
func New(name string) (Variant, error) {
	switch name {
	case VariantPath, "":
		return &PathVariant{}, nil
	case VariantUnified:
		return &UnifiedVariant{}, nil
	default:
		return nil, fmt.Errorf("unknown gateway variant %q", name)
	}
}

// Write sends a rendered response
func Write(w http.ResponseWriter, resp Response) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	if len(resp.Body) > 0 {
		w.Write(resp.Body)
	}
}

func readBody(r *http.Request) ([]byte, *core.Error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxRequestBytes))
	if err != nil {
		return nil, core.ErrInvalidField("Unable to read request body", err)
	}
	return body, nil
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}
