package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. Fields are plain atomics so hot paths
// never touch the Prometheus registry; collectors read them on scrape.
type Metrics struct {
	FramesAnalyzed atomic.Uint64
	FramesRejected atomic.Uint64
	FramesDropped  atomic.Uint64

	DegradedReadings atomic.Uint64
	DetectorErrors   atomic.Uint64

	AlertsPublished atomic.Uint64
	PublishErrors   atomic.Uint64

	ActiveCameras atomic.Int64
	ActiveStreams atomic.Int64

	AnalyzeLatencyMs atomic.Uint64

	registry *prometheus.Registry
	latency  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "conveyor_analyze_duration_seconds",
			Help:    "Time spent analysing one frame",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}
	m.register()
	return m
}

func (m *Metrics) counter(name, help string, v *atomic.Uint64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{Name: name, Help: help},
		func() float64 { return float64(v.Load()) },
	))
}

func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{Name: name, Help: help},
		fn,
	))
}

func (m *Metrics) register() {
	m.counter("conveyor_frames_analyzed_total", "Frames run through the inference pipeline", &m.FramesAnalyzed)
	m.counter("conveyor_frames_rejected_total", "Frames rejected before analysis (undecodable or empty)", &m.FramesRejected)
	m.counter("conveyor_frames_dropped_total", "Stream frames replaced before they were analysed", &m.FramesDropped)
	m.counter("conveyor_degraded_readings_total", "Component readings that fell back to a degraded value", &m.DegradedReadings)
	m.counter("conveyor_detector_errors_total", "Failed calls to the external object detector", &m.DetectorErrors)
	m.counter("conveyor_alerts_published_total", "Alert events published", &m.AlertsPublished)
	m.counter("conveyor_publish_errors_total", "Alert publish failures across all sinks", &m.PublishErrors)

	m.gauge("conveyor_active_cameras", "Cameras with a live monitor session",
		func() float64 { return float64(m.ActiveCameras.Load()) })
	m.gauge("conveyor_active_streams", "Open websocket frame streams",
		func() float64 { return float64(m.ActiveStreams.Load()) })
	m.gauge("conveyor_last_analyze_latency_ms", "Latency of the most recent analysis",
		func() float64 { return float64(m.AnalyzeLatencyMs.Load()) })

	m.registry.MustRegister(m.latency)
}

// ObserveAnalyze records one analysis duration in seconds.
func (m *Metrics) ObserveAnalyze(seconds float64) {
	m.latency.Observe(seconds)
	m.AnalyzeLatencyMs.Store(uint64(seconds * 1000))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
