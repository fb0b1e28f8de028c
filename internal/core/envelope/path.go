package envelope

import (
	"net/http"

	"github.com/bytedance/sonic"

	"meshgate/internal/core"
	"meshgate/internal/core/engine"
)

const contentTypeJSON = "application/json"

// PathVariant routes ANY /{version}/{module}/... by its first two path segments
type PathVariant struct{}

// Name implements Variant
func (v *PathVariant) Name() string { return VariantPath }

// Pattern implements Variant
func (v *PathVariant) Pattern() string { return "/*" }

// Method implements Variant
func (v *PathVariant) Method() string { return "" }

// Parse implements Variant
func (v *PathVariant) Parse(r *http.Request) (*core.Call, *core.Error) {
	key, rest, err := engine.KeyFromPath(r.URL.EscapedPath())
	if err != nil {
		return nil, core.ErrInvalidField("Invalid path: expected /{version}/{module}/...", err)
	}

	body, gwErr := readBody(r)
	if gwErr != nil {
		return nil, gwErr
	}

	return &core.Call{
		RouteKey: key,
		Method:   r.Method,
		Path:     rest,
		RawQuery: r.URL.RawQuery,
		Header:   r.Header,
		Body:     body,
	}, nil
}

// Success implements Variant.
//
// JSON objects are merged into {"success": true, ...}; other JSON values are
// wrapped as {"success": true, "data": ...}. Non-JSON bodies are relayed as
// they came, with the downstream content type and status.
func (v *PathVariant) Success(call *core.Call, res *core.Result) Response {
	if res.Published {
		return v.json(http.StatusOK, map[string]interface{}{
			"success":   true,
			"published": true,
			"name":      res.Event,
			"channel":   res.Channel,
		})
	}

	status := statusOr(res.Status, http.StatusOK)
	if !res.JSON {
		return Response{Status: status, ContentType: res.ContentType, Body: res.Body}
	}

	var data interface{}
	if err := sonic.Unmarshal(res.Body, &data); err != nil {
		return Response{Status: status, ContentType: res.ContentType, Body: res.Body}
	}

	out := map[string]interface{}{"success": true}
	if obj, ok := data.(map[string]interface{}); ok {
		for k, val := range obj {
			out[k] = val
		}
	} else {
		out["data"] = data
	}
	return v.json(status, out)
}

// Failure implements Variant
func (v *PathVariant) Failure(call *core.Call, err *core.Error) Response {
	return v.json(statusOr(err.Status, http.StatusInternalServerError), map[string]interface{}{
		"success": false,
		"error":   err.Message,
	})
}

func (v *PathVariant) json(status int, body interface{}) Response {
	b, err := sonic.Marshal(body)
	if err != nil {
		return Response{
			Status:      http.StatusInternalServerError,
			ContentType: contentTypeJSON,
			Body:        []byte(`{"success":false,"error":"Gateway processing failed"}`),
		}
	}
	return Response{Status: status, ContentType: contentTypeJSON, Body: b}
}
