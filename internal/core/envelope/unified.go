package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"meshgate/internal/core"
	"meshgate/internal/core/engine"
)

// UnknownRequestID is used when the caller did not send a request_id
const UnknownRequestID = "unknown"

// Envelope type markers
const (
	TypeAck  = "ack"
	TypeNack = "nack"
)

// RequestEnvelope is the unified API request body
type RequestEnvelope struct {
	RequestID string          `json:"request_id"`
	Version   string          `json:"version" validate:"required"`
	Service   string          `json:"service" validate:"required"`
	Action    string          `json:"action" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

// ResponseEnvelope is the unified API response body
type ResponseEnvelope struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id"`
	Payload   *NackPayload `json:"payload,omitempty"`
}

// NackPayload describes a failure inside a nack
type NackPayload struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

var (
	envelopeValidateOnce sync.Once
	envelopeValidate     *validator.Validate
)

func envelopeValidator() *validator.Validate {
	envelopeValidateOnce.Do(func() {
		envelopeValidate = validator.New()
	})
	return envelopeValidate
}

// UnifiedVariant routes POST /api by the body's version and service
type UnifiedVariant struct{}

// Name implements Variant
func (v *UnifiedVariant) Name() string { return VariantUnified }

// Pattern implements Variant
func (v *UnifiedVariant) Pattern() string { return "/api" }

// Method implements Variant
func (v *UnifiedVariant) Method() string { return http.MethodPost }

// Parse implements Variant
func (v *UnifiedVariant) Parse(r *http.Request) (*core.Call, *core.Error) {
	body, gwErr := readBody(r)
	if gwErr != nil {
		return nil, gwErr
	}

	var env RequestEnvelope
	if err := sonic.Unmarshal(body, &env); err != nil {
		return nil, core.ErrInvalidJSON("Request body must be a JSON envelope", err)
	}

	if bytes.Equal(bytes.TrimSpace(env.Payload), []byte("null")) {
		env.Payload = nil
	}
	if err := envelopeValidator().Struct(&env); err != nil {
		return nil, core.ErrInvalidField(missingFieldMessage(err), err)
	}

	key, err := engine.KeyFromParts(env.Version, env.Service)
	if err != nil {
		return nil, core.ErrInvalidField("Missing or invalid field: version/service", err)
	}

	requestID := env.RequestID
	if requestID == "" {
		requestID = UnknownRequestID
	}

	return &core.Call{
		EnvelopeID: requestID,
		RouteKey:   key,
		Method:     http.MethodPost,
		Path:       actionPath(env.Action),
		RawQuery:   r.URL.RawQuery,
		Header:     r.Header,
		Body:       env.Payload,
	}, nil
}

// Success implements Variant.
//
// A JSON downstream body is passed through as-is; an empty body or a publish
// becomes an ack. Downstream error statuses and non-JSON bodies become nacks.
func (v *UnifiedVariant) Success(call *core.Call, res *core.Result) Response {
	if res.Published {
		return v.ack(call)
	}
	if res.Status >= http.StatusBadRequest {
		return v.Failure(call, core.ErrForward(
			fmt.Sprintf("Service responded with HTTP %d", res.Status), nil))
	}
	if len(bytes.TrimSpace(res.Body)) == 0 {
		return v.ack(call)
	}
	if !res.JSON {
		return v.Failure(call, core.ErrInvalidServiceResponse(
			fmt.Errorf("non-JSON response with content type %q", res.ContentType)))
	}
	return Response{Status: http.StatusOK, ContentType: contentTypeJSON, Body: res.Body}
}

// Failure implements Variant
func (v *UnifiedVariant) Failure(call *core.Call, err *core.Error) Response {
	return v.render(statusOr(err.Status, http.StatusInternalServerError), ResponseEnvelope{
		Type:      TypeNack,
		RequestID: envelopeID(call),
		Payload: &NackPayload{
			Status:  "error",
			Code:    err.Code,
			Message: err.Message,
		},
	})
}

func (v *UnifiedVariant) ack(call *core.Call) Response {
	return v.render(http.StatusOK, ResponseEnvelope{Type: TypeAck, RequestID: envelopeID(call)})
}

func (v *UnifiedVariant) render(status int, env ResponseEnvelope) Response {
	b, err := sonic.Marshal(env)
	if err != nil {
		return Response{
			Status:      http.StatusInternalServerError,
			ContentType: contentTypeJSON,
			Body:        []byte(`{"type":"nack","request_id":"unknown"}`),
		}
	}
	return Response{Status: status, ContentType: contentTypeJSON, Body: b}
}

// actionPath escapes each action segment so the result can be appended to a
// downstream URL without its characters turning into query or fragment syntax
func actionPath(action string) string {
	segments := strings.Split(strings.TrimLeft(action, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segments, "/")
}

func envelopeID(call *core.Call) string {
	if call == nil || call.EnvelopeID == "" {
		return UnknownRequestID
	}
	return call.EnvelopeID
}

func missingFieldMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "Missing or invalid field: " + strings.ToLower(verrs[0].Field())
	}
	return "Missing or invalid field"
}
