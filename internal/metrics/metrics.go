// Package metrics exposes pipeline counters over a Prometheus endpoint.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authsignal/internal/logger"
)

var (
	// LinesRead counts raw input lines per source.
	LinesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsignal",
		Name:      "lines_read_total",
		Help:      "Raw log lines read, by source.",
	}, []string{"source"})

	// LinesDropped counts lines that matched no extraction rule.
	LinesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsignal",
		Name:      "lines_dropped_total",
		Help:      "Log lines that produced no event, by source.",
	}, []string{"source"})

	// EventsExtracted counts parsed events by type.
	EventsExtracted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsignal",
		Name:      "events_extracted_total",
		Help:      "Parsed events, by event type.",
	}, []string{"event_type"})

	// SignalsEmitted counts emitted signals by type.
	SignalsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsignal",
		Name:      "signals_emitted_total",
		Help:      "Emitted signals, by signal type.",
	}, []string{"signal_type"})

	// CollaboratorFailures counts best-effort call failures by collaborator.
	CollaboratorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsignal",
		Name:      "collaborator_failures_total",
		Help:      "Failed best-effort external calls, by collaborator.",
	}, []string{"collaborator"})

	// DetectionMatches counts detection rule matches by rule id.
	DetectionMatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "authsignal",
		Name:      "detection_matches_total",
		Help:      "Detection rule matches, by rule id.",
	}, []string{"rule_id"})
)

// Serve starts the metrics endpoint in the background. Listen failures
// are logged, not fatal: metrics must never take the pipeline down.
func Serve(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics endpoint failed: %v", err)
		}
	}()
	logger.Infof("metrics endpoint listening on %s", addr)
}
