package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"meshgate/internal/gateway"
	"meshgate/internal/pkg/metrics"
)

// HTTPServer extends the basic server with gateway functionality
type HTTPServer struct {
	*Server
	router chi.Router
}

// NewHTTPServer creates a new HTTP server with the gateway mounted
func NewHTTPServer(addr string, dispatcher *gateway.Dispatcher, m *metrics.Metrics, log *zap.Logger) *HTTPServer {
	return &HTTPServer{
		Server: New(addr, log),
		router: NewRouter(dispatcher, m),
	}
}

// Handler returns the root handler, used by tests and by Start
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server with gateway endpoints
func (s *HTTPServer) Start() error {
	return s.Server.Start(s.router)
}

// NewRouter mounts health, metrics and the gateway route of the dispatcher's variant
func NewRouter(dispatcher *gateway.Dispatcher, m *metrics.Metrics) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	variant := dispatcher.Variant()
	if method := variant.Method(); method != "" {
		r.Method(method, variant.Pattern(), dispatcher)
	} else {
		r.Handle(variant.Pattern(), dispatcher)
	}
	return r
}
