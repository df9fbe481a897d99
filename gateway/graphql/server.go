package graphql

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/songlinshu/vector/engine"
	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/metric"
)

// Server is the HTTP face of the engine: one-shot operations over POST,
// subscriptions over WebSocket, plus playground, health, and metrics
// endpoints.
type Server struct {
	config   Config
	exec     *engine.Executor
	registry *metric.MetricsRegistry
	logger   *slog.Logger

	httpServer *http.Server
	mux        *http.ServeMux

	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewServer creates the gateway server over a prepared executor.
func NewServer(config Config, exec *engine.Executor, registry *metric.MetricsRegistry, logger *slog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WrapInvalid(err, "Server", "NewServer", "config validation")
	}
	if exec == nil {
		return nil, errors.WrapFatal(fmt.Errorf("executor is nil"), "Server", "NewServer",
			"executor is required")
	}
	if registry == nil {
		registry = metric.NewMetricsRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		config:   config,
		exec:     exec,
		registry: registry,
		logger:   logger.With("component", "gateway"),
		mux:      http.NewServeMux(),
		stopChan: make(chan struct{}),
	}, nil
}

// Setup configures routes and the HTTP server.
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mux.HandleFunc(s.config.Path, s.handleOperations)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))

	if s.config.EnablePlayground {
		s.mux.Handle("/", playground.Handler("Vector API", s.config.Path))
		s.logger.Info("playground enabled",
			"url", fmt.Sprintf("http://%s/", s.config.BindAddress))
	}

	var handler http.Handler = s.mux
	if s.config.EnableCORS {
		handler = s.corsMiddleware(handler)
	}

	s.httpServer = &http.Server{
		Addr:        s.config.BindAddress,
		Handler:     handler,
		ReadTimeout: s.config.Timeout(),
		// Write timeout would sever long-lived subscription connections;
		// one-shot handlers bound themselves through the request context.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("server configured",
		"address", s.config.BindAddress,
		"path", s.config.Path,
		"timeout", s.config.Timeout())
	return nil
}

// Handler returns the configured HTTP handler. Setup must have run.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.httpServer == nil {
		return s.mux
	}
	return s.httpServer.Handler
}

// Start runs the HTTP server until ctx is cancelled or Stop is called. The
// ready channel, when non-nil, is closed once the listener is about to
// accept.
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Server", "Start", "server already running")
	}
	if s.httpServer == nil {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrNotStarted, "Server", "Start", "Setup not called")
	}
	s.running = true
	server := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("server starting", "address", s.config.BindAddress)

		if ready != nil {
			close(ready)
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-s.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server context cancelled, shutting down")
		return s.Stop(30 * time.Second)

	case <-s.stopChan:
		s.logger.Info("server stop requested")
		return nil

	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.WrapFatal(err, "Server", "Start", "HTTP server failed")
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("server stopping")
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("server stopped")
	return nil
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !running {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// corsMiddleware adds CORS headers to responses.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range s.config.CORSOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
