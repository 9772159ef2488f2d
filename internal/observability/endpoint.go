package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/edaschema/edaschema/internal/conf"
	"github.com/edaschema/edaschema/internal/errors"
	"github.com/edaschema/edaschema/internal/logger"
)

// ShutdownTimeout bounds the graceful shutdown of the metrics endpoint
const ShutdownTimeout = 5 * time.Second

// Endpoint serves /metrics while a long-running command executes.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
}

// NewEndpoint creates an Endpoint for the configured listen address. It
// fails when metrics are disabled or no address is configured.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Metrics.Enabled || settings.Metrics.Listen == "" {
		return nil, errors.Newf("metrics endpoint not enabled in settings").
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &Endpoint{
		listenAddress: settings.Metrics.Listen,
		metrics:       metrics,
	}, nil
}

// Start runs the HTTP server in a goroutine tracked by wg and shuts it
// down once ctx is done.
func (e *Endpoint) Start(ctx context.Context, wg *sync.WaitGroup) {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	e.server = &http.Server{
		Addr:              e.listenAddress,
		Handler:           mux,
		ReadHeaderTimeout: ShutdownTimeout,
	}

	wg.Go(func() {
		log.Info("Metrics endpoint starting", logger.String("address", e.listenAddress))
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics HTTP server error", logger.Error(err))
		}
	})

	wg.Go(func() {
		<-ctx.Done()
		e.gracefulShutdown()
	})
}

// gracefulShutdown stops the server, waiting at most ShutdownTimeout
func (e *Endpoint) gracefulShutdown() {
	log.Info("Stopping metrics endpoint")
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		log.Error("Metrics server shutdown error", logger.Error(err))
	}
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}
