// Package metrics holds the Prometheus collectors of the bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Library session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airsane_sessions_active",
			Help: "Number of initialized SANE sessions",
		},
	)

	AuthRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airsane_auth_requests_total",
			Help: "Total number of authorization requests from backends",
		},
		[]string{"result"}, // result: provided, declined
	)

	// Scan metrics
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airsane_scans_total",
			Help: "Total number of scan jobs",
		},
		[]string{"trigger", "status"}, // trigger: escl, button, web, cli
	)

	PagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airsane_pages_total",
			Help: "Total number of scanned pages",
		},
	)

	FramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airsane_frames_total",
			Help: "Total number of frames read",
		},
		[]string{"format"},
	)

	BytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "airsane_frame_bytes_total",
			Help: "Total number of image bytes read from the device",
		},
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "airsane_scan_duration_seconds",
			Help:    "Scan job duration in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	// WebSocket metrics
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "airsane_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)
)

// ObserveScan records one finished scan job.
func ObserveScan(trigger string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ScansTotal.WithLabelValues(trigger, status).Inc()
	ScanDuration.Observe(time.Since(start).Seconds())
}
