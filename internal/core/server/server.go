package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/config"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/health"
	middleware "github.com/mohammed-shakir/wfs-filter-encoding/internal/core/middleware"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/router"
	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

// Deps are the collaborators the routes are built from. Features and
// Metrics may be nil, which leaves their routes unmounted.
type Deps struct {
	Encoder  router.Encoder
	Features router.Forwarder
	Ready    map[string]health.Pinger
	Metrics  http.Handler
}

// Routes builds the service mux.
func Routes(cfg config.Config, logger *slog.Logger, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/readyz", health.Readiness(cfg.Cache.OpTimeout, d.Ready))
	if d.Metrics != nil {
		r.Method(http.MethodGet, cfg.Metrics.Path, d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Decompress(cfg.MaxRequestBodySize))
		r.Post("/encode/ogc", router.HandleEncode(logger, d.Encoder, filter.FormatOGC))
		r.Post("/encode/cql", router.HandleEncode(logger, d.Encoder, filter.FormatCQL))
		if d.Features != nil {
			r.Post("/features", router.HandleFeatures(logger, d.Encoder, d.Features))
		}
	})
	return r
}

// sets up http and starts serving
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(cfg, logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
