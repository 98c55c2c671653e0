// Package metrics exposes Prometheus instrumentation for sync runs and an
// optional /metrics HTTP listener.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FilesHashed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragsync_files_hashed_total",
		Help: "Files fingerprinted during scans.",
	})
	FilesChunked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragsync_files_chunked_total",
		Help: "Files split into chunks.",
	})
	ChunksEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragsync_chunks_embedded_total",
		Help: "Chunks sent through the embedding API.",
	})
	ChunksUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragsync_chunks_upserted_total",
		Help: "Points written to the vector store.",
	})
	PointsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragsync_points_deleted_total",
		Help: "Stale points removed from the vector store.",
	})
	FileErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ragsync_file_errors_total",
		Help: "Files that failed during a sync run.",
	})
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ragsync_phase_duration_seconds",
		Help:    "Wall time per sync phase.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"phase"})
	EmbedBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ragsync_embed_batch_duration_seconds",
		Help:    "Latency of individual embedding batches.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	})
)

// TimePhase records the duration of a sync phase.
func TimePhase(phase string, start time.Time) {
	PhaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// Serve starts a /metrics listener on addr and shuts it down when ctx ends.
// An empty addr disables the listener.
func Serve(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("metrics listener started", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("metrics listener failed", slog.String("error", err.Error()))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
