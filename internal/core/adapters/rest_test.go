package adapters

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshgate/internal/core"
	"meshgate/internal/core/engine"
	"meshgate/internal/pkg/secrets"
)

func gatewayContext(route *engine.RouteConfig) *core.GatewayContext {
	ctx := core.NewGatewayContext(context.Background(), nil)
	ctx.Route = route
	return ctx
}

func TestBuildTargetURL(t *testing.T) {
	assert.Equal(t, "https://svc/api/orders/1?x=1", BuildTargetURL("https://svc/api/", "/orders/1", "x=1"))
	assert.Equal(t, "https://svc/api", BuildTargetURL("https://svc/api//", "", ""))
	assert.Equal(t, "https://svc?a=b&c=d", BuildTargetURL("https://svc", "", "a=b&c=d"))
}

func TestRESTForwardsRequest(t *testing.T) {
	var got struct {
		method, path, query, auth, custom, reqID, body string
	}
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.auth = r.Header.Get("Authorization")
		got.custom = r.Header.Get("X-Custom")
		got.reqID = r.Header.Get("X-Request-ID")
		got.body = string(b)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":7,"ok":true}`))
	}))
	defer downstream.Close()

	adapter := NewRESTAdapter(NewHTTPClient(time.Second), secrets.MapResolver{"ORDERS_KEY": "downstream-secret"})
	route := &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: downstream.URL + "/api/", AuthKeyEnvName: "ORDERS_KEY"}

	header := http.Header{}
	header.Set("Authorization", "Bearer master-token")
	header.Set("X-Custom", "kept")
	header.Set("Connection", "keep-alive")

	res, err := adapter.Invoke(gatewayContext(route), &core.Call{
		RequestID: "req-42",
		Method:    http.MethodPut,
		Path:      "/orders/7",
		RawQuery:  "expand=items",
		Header:    header,
		Body:      []byte(`{"qty":2}`),
	})

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/api/orders/7", got.path)
	assert.Equal(t, "expand=items", got.query)
	assert.Equal(t, "Bearer downstream-secret", got.auth)
	assert.Equal(t, "kept", got.custom)
	assert.Equal(t, "req-42", got.reqID)
	assert.Equal(t, `{"qty":2}`, got.body)

	assert.Equal(t, http.StatusCreated, res.Status)
	assert.True(t, res.JSON)
	assert.JSONEq(t, `{"id":7,"ok":true}`, string(res.Body))
	assert.Equal(t, "Bearer master-token", header.Get("Authorization"), "inbound headers are not mutated")
}

func TestRESTWithoutRouteSecretStripsAuthorization(t *testing.T) {
	var auth []string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer downstream.Close()

	adapter := NewRESTAdapter(nil, secrets.MapResolver{})
	route := &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: downstream.URL}

	header := http.Header{"Authorization": {"Bearer master-token"}}
	res, err := adapter.Invoke(gatewayContext(route), &core.Call{Method: http.MethodGet, Header: header})

	require.NoError(t, err)
	assert.Empty(t, auth)
	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.False(t, res.JSON)
}

func TestRESTNonJSONPassthrough(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("id,qty\n1,2\n"))
	}))
	defer downstream.Close()

	adapter := NewRESTAdapter(nil, nil)
	route := &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: downstream.URL}

	res, err := adapter.Invoke(gatewayContext(route), &core.Call{Method: http.MethodGet})

	require.NoError(t, err)
	assert.False(t, res.JSON)
	assert.Equal(t, http.StatusAccepted, res.Status)
	assert.Equal(t, "text/csv", res.ContentType)
	assert.Equal(t, "id,qty\n1,2\n", string(res.Body))
}

func TestRESTPreservesErrorStatus(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"reason":"duplicate"}`))
	}))
	defer downstream.Close()

	adapter := NewRESTAdapter(nil, nil)
	route := &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: downstream.URL}

	res, err := adapter.Invoke(gatewayContext(route), &core.Call{Method: http.MethodPost, Body: []byte(`{}`)})

	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, res.Status)
	assert.True(t, res.JSON)
}

func TestRESTUnreachableIsForwardError(t *testing.T) {
	downstream := httptest.NewServer(http.NotFoundHandler())
	url := downstream.URL
	downstream.Close()

	adapter := NewRESTAdapter(nil, nil)
	route := &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: url}

	_, err := adapter.Invoke(gatewayContext(route), &core.Call{Method: http.MethodGet})

	gwErr, ok := core.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, gwErr.Status)
	assert.Equal(t, core.CodeForwardError, gwErr.Code)
}

func TestRESTTimeoutIsForwardError(t *testing.T) {
	release := make(chan struct{})
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer downstream.Close()
	defer close(release)

	adapter := NewRESTAdapter(nil, nil)
	route := &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: downstream.URL}

	callCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ctx := gatewayContext(route).WithContext(callCtx)

	_, err := adapter.Invoke(ctx, &core.Call{Method: http.MethodGet})

	gwErr, ok := core.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, gwErr.Status)
	assert.Equal(t, "Downstream request timed out", gwErr.Message)
}

func TestRESTWithoutRoute(t *testing.T) {
	_, err := NewRESTAdapter(nil, nil).Invoke(gatewayContext(nil), &core.Call{})
	gwErr, ok := core.AsError(err)
	require.True(t, ok)
	assert.Equal(t, core.CodeConfigError, gwErr.Code)
}

func TestRESTDecompressesGzipResponses(t *testing.T) {
	var seenEncoding string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenEncoding = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Type", "application/json")
		if !strings.Contains(seenEncoding, "gzip") {
			w.Write([]byte(`{"id":1}`))
			return
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write([]byte(`{"id":1}`))
		zw.Close()
	}))
	defer downstream.Close()

	adapter := NewRESTAdapter(nil, nil)
	route := &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: downstream.URL}
	header := http.Header{}
	header.Set("Accept-Encoding", "gzip, deflate, br")

	res, err := adapter.Invoke(gatewayContext(route), &core.Call{Method: http.MethodGet, Header: header})

	require.NoError(t, err)
	assert.Equal(t, "gzip", seenEncoding)
	assert.True(t, res.JSON)
	assert.JSONEq(t, `{"id":1}`, string(res.Body))
}

func TestRESTKeepsEncodedPathSegments(t *testing.T) {
	var gotPath, gotQuery string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer downstream.Close()

	adapter := NewRESTAdapter(nil, nil)
	route := &engine.RouteConfig{Type: engine.RouteTypeREST, TargetURL: downstream.URL}

	_, err := adapter.Invoke(gatewayContext(route), &core.Call{
		Method:   http.MethodGet,
		Path:     "/report%3Fadmin=true%23x",
		RawQuery: "page=2",
	})

	require.NoError(t, err)
	assert.Equal(t, "/report%3Fadmin=true%23x", gotPath)
	assert.Equal(t, "page=2", gotQuery)
}
