package infra

import (
	"context"
	"net/http"
	"time"
)

// HTTPServer wraps http.Server with the lifecycle the api main drives:
// blocking Start, context-bounded Shutdown.
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer builds the api server. The write timeout bounds ordinary
// JSON responses only; websocket subscribers hijack their connection on
// upgrade and outlive it.
func NewHTTPServer(cfg *Config, handler http.Handler) *HTTPServer {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	return &HTTPServer{server: srv}
}

// Start serves until Shutdown or a listener error.
func (s *HTTPServer) Start() error {
	if s.server == nil {
		return nil
	}
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
