// Package httpapi exposes alert CRUD plus health, feed and metrics endpoints.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"pricealert/internal/application/feed"
	"pricealert/internal/application/service"
	"pricealert/internal/domain"
	"pricealert/internal/infrastructure/metrics"
)

// AlertAPI is the alert surface the handlers drive.
type AlertAPI interface {
	Create(ctx context.Context, in service.CreateAlertInput) (*domain.AlertCondition, error)
	Update(ctx context.Context, id string, in service.UpdateAlertInput) (*domain.AlertCondition, error)
	Get(ctx context.Context, id string) (*domain.AlertCondition, error)
	List(ctx context.Context) ([]domain.AlertCondition, error)
	Delete(ctx context.Context, id string) error
}

// FeedLister reports live feed connections.
type FeedLister interface {
	Feeds() []feed.FeedStatus
}

type Deps struct {
	Alerts  AlertAPI
	Feeds   FeedLister // 可选，evaluate-only 进程没有行情连接
	Started time.Time
}

// NewRouter builds the chi router.
func NewRouter(d Deps) http.Handler {
	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	h := &handler{deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", h.health)
	r.Get("/feeds", h.feeds)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/alerts", func(r chi.Router) {
		r.Post("/", h.createAlert)
		r.Get("/", h.listAlerts)
		r.Get("/{id}", h.getAlert)
		r.Patch("/{id}", h.updateAlert)
		r.Delete("/{id}", h.deleteAlert)
	})
	return r
}

// Server wraps http.Server with context-driven shutdown.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
