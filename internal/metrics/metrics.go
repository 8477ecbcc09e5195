package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source labels for detection metrics.
const (
	SourceImage = "image"
	SourceVideo = "video"
	SourceLive  = "live"
)

// Metrics tracks ingestion, registry and live capture activity.
type Metrics struct {
	DetectionsAccepted *prometheus.CounterVec
	DetectionsRejected *prometheus.CounterVec
	RegistryInserted   prometheus.Counter
	RegistryUpgraded   prometheus.Counter
	LiveTicksSkipped   prometheus.Counter
	LiveTicksFailed    prometheus.Counter
	InferenceDuration  *prometheus.HistogramVec
	PlatesSynced       prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance backed by its own registry. registrySize is
// sampled on every scrape.
func New(registrySize func() int) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		DetectionsAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lpr_detections_accepted_total",
			Help: "Detections normalized into plate records, by source",
		}, []string{"source"}),
		DetectionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lpr_detections_rejected_total",
			Help: "Detections dropped for lack of plate text, by source",
		}, []string{"source"}),
		RegistryInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lpr_registry_inserted_total",
			Help: "Plates added to the registry",
		}),
		RegistryUpgraded: factory.NewCounter(prometheus.CounterOpts{
			Name: "lpr_registry_upgraded_total",
			Help: "Registry entries replaced by a sighting with a known expiry",
		}),
		LiveTicksSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "lpr_live_ticks_skipped_total",
			Help: "Live capture ticks skipped because a frame was still in flight",
		}),
		LiveTicksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "lpr_live_ticks_failed_total",
			Help: "Live capture ticks that failed to snapshot or infer",
		}),
		InferenceDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lpr_inference_duration_seconds",
			Help:    "Round trip time of inference backend calls, by source",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		PlatesSynced: factory.NewCounter(prometheus.CounterOpts{
			Name: "lpr_plates_synced_total",
			Help: "Plate rows exported to the database",
		}),
		registry: reg,
	}

	if registrySize != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "lpr_registry_size",
			Help: "Plates currently held in the registry",
		}, func() float64 { return float64(registrySize()) })
	}

	return m
}

// ObserveInference records the duration of an inference call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveInference(source string, start time.Time) {
	m.InferenceDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
