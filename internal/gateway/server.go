package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"

	"github.com/podlease/podlease/internal/metrics"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 30 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router and middleware chain around a Service.
func NewServer(
	addr string,
	service *Service,
	collector metrics.Collector,
	logger *slog.Logger,
) *Server {
	h := &handlers{service: service, logger: logger}

	router := mux.NewRouter()
	router.Use(
		recoveryMiddleware(logger),
		requestIDMiddleware,
		loggingMiddleware(logger),
		metricsMiddleware(collector),
	)

	router.HandleFunc("/healthz", h.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/readyz", h.handleReadyz).Methods(http.MethodGet)
	router.HandleFunc("/instance/{instanceID}", h.handleInstance).Methods(http.MethodGet)
	router.HandleFunc("/admin/pods", h.handleAdminList).Methods(http.MethodGet)
	router.HandleFunc("/admin/pods/{name}", h.handleAdminDelete).Methods(http.MethodDelete)
	router.HandleFunc("/decide", h.handleDecide).Methods(http.MethodGet)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
		},
		logger: logger,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until the context ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("gateway listening", "addr", s.httpServer.Addr)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "gateway server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "gateway shutdown failed")
	}

	return nil
}
