// Package gateway serves the daemon's read-only HTTP status surface:
// health, status, job and run listings, and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/metrics"
)

// JobService is the subset of the manager the gateway reads from.
// Defined here so the gateway has no dependency on the manager package.
type JobService interface {
	List() []job.Job
	ListRuns(jobID string) ([]job.RunRecord, error)
	ReadRunLog(runID string) (stdout, stderr string)
	Running(jobID string) bool
	NextFire(jobID string) (time.Time, bool)
}

// Config holds gateway settings.
type Config struct {
	Listen string
}

// Gateway is the HTTP status server.
type Gateway struct {
	cfg     Config
	jobs    JobService
	metrics *metrics.Metrics
	logger  *slog.Logger

	server  *http.Server
	started time.Time
}

// New creates a Gateway.
func New(cfg Config, jobs JobService, m *metrics.Metrics, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:     cfg,
		jobs:    jobs,
		metrics: m,
		logger:  logger,
	}
}

// Start binds the listen address and serves in a background goroutine.
func (g *Gateway) Start() error {
	ln, err := net.Listen("tcp", g.cfg.Listen)
	if err != nil {
		return err
	}

	g.started = time.Now()
	g.server = &http.Server{
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: server failed", "error", err)
		}
	}()

	g.logger.Info("gateway: listening", "addr", ln.Addr().String())
	return nil
}

// Stop shuts the server down, waiting for in-flight requests.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}
