package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	ChunksEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "osm2voxel_chunks_encoded_total",
		Help: "Total number of chunks encoded",
	})

	RegionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "osm2voxel_regions_finished_total",
		Help: "Total number of regions finished, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "osm2voxel_region_stage_duration_seconds",
		Help:    "Time spent per region in each stage",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"stage"})

	RegionBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "osm2voxel_region_bytes",
		Help:    "Size of written region files",
		Buckets: prometheus.ExponentialBuckets(64*1024, 2, 10),
	})

	ProgressRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "osm2voxel_progress_ratio",
		Help: "Fraction of all chunks encoded so far",
	})
)

// RegisterHost adds c to the default registry. Registering a second host
// collector is a no-op.
func RegisterHost(c *HostCollector) error {
	err := prometheus.Register(c)
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to register host collector: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler exposing all registered metrics
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Serve exposes /metrics on addr until ctx is cancelled
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("Metrics endpoint listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
