// Package metrics exposes craftd's Prometheus collectors and a small
// health/metrics HTTP surface, served on a side port away from the game
// protocol listener.
package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry wraps every Prometheus collector craftd publishes.
type Registry struct {
	ActiveSessions   prometheus.Gauge
	BlocksWritten    prometheus.Counter
	GhostsWritten    prometheus.Counter
	ChunkRequests    prometheus.Counter
	BroadcastDropped prometheus.Counter
	InboundDropped   prometheus.Counter
	StoreCommits     prometheus.Counter
	CPUPercent       prometheus.Gauge
	RSSBytes         prometheus.Gauge
}

// NewRegistry constructs and registers every collector against the default
// registerer, following the promauto pattern used throughout the pack.
func NewRegistry() *Registry {
	return &Registry{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "craftd_sessions_active",
			Help: "Number of currently connected client sessions.",
		}),
		BlocksWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "craftd_blocks_written_total",
			Help: "Total number of primary block rows upserted.",
		}),
		GhostsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "craftd_ghost_blocks_written_total",
			Help: "Total number of ghost block rows upserted across chunk seams.",
		}),
		ChunkRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "craftd_chunk_requests_total",
			Help: "Total number of incremental chunk catch-up requests served.",
		}),
		BroadcastDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "craftd_broadcast_dropped_total",
			Help: "Total number of outbound frames dropped because a session's queue was full.",
		}),
		InboundDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "craftd_inbound_dropped_total",
			Help: "Total number of inbound frames dropped by the per-session rate limiter.",
		}),
		StoreCommits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "craftd_store_commits_total",
			Help: "Total number of store commits performed by the model loop.",
		}),
		CPUPercent: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "craftd_process_cpu_percent",
			Help: "Process CPU utilization sampled periodically.",
		}),
		RSSBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "craftd_process_rss_bytes",
			Help: "Process resident set size sampled periodically.",
		}),
	}
}

// ClientCounter reports how many sessions are connected, for /healthz.
type ClientCounter interface {
	ClientCount() int
}

// Serve starts the metrics/health HTTP server on addr. It blocks until the
// server stops and returns the error from ListenAndServe, which is never
// nil.
func Serve(addr string, reg *Registry, clients ClientCounter) error {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"clients":   clients.ClientCount(),
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return server.ListenAndServe()
}
