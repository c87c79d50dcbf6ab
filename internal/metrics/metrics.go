// Package metrics provides Prometheus metrics for the watermark service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Images processed (total)
	ImagesProcessed *prometheus.CounterVec

	// Images failed, by pipeline stage
	ImagesFailed *prometheus.CounterVec

	// Processing duration histogram
	ProcessingDuration prometheus.Histogram

	// Geocoding requests
	GeocodingRequests *prometheus.CounterVec

	// Static map requests
	MapRequests *prometheus.CounterVec

	// Batches started, by source
	Batches *prometheus.CounterVec

	// Batches waiting for the worker
	QueueDepth prometheus.Gauge

	// Service status (1 = running, 0 = stopped)
	Status prometheus.Gauge
}

// New creates and registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates and registers all metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ImagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stamp_images_processed_total",
			Help: "Total number of images processed",
		}, []string{"status"}), // status: success, failed

		ImagesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stamp_images_failed_total",
			Help: "Total number of failed images",
		}, []string{"stage"}), // stage: read, decode, surface, map, encode

		ProcessingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "stamp_processing_duration_seconds",
			Help:    "Time taken to watermark one image",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		GeocodingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stamp_geocoding_requests_total",
			Help: "Total geocoding requests",
		}, []string{"status"}), // status: success, failed

		MapRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stamp_map_requests_total",
			Help: "Total static map requests",
		}, []string{"status"}), // status: success, failed

		Batches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stamp_batches_total",
			Help: "Total batches submitted",
		}, []string{"source"}), // source: api, queue

		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stamp_queue_depth",
			Help: "Batches waiting for the worker",
		}),

		Status: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stamp_status",
			Help: "Service status (1 = running, 0 = stopped)",
		}),
	}
}

// IncImagesProcessed increments the images processed counter.
func (m *Metrics) IncImagesProcessed(status string) {
	m.ImagesProcessed.WithLabelValues(status).Inc()
}

// IncImagesFailed increments the images failed counter.
func (m *Metrics) IncImagesFailed(stage string) {
	m.ImagesFailed.WithLabelValues(stage).Inc()
}

// ObserveProcessingDuration records the duration of one image.
func (m *Metrics) ObserveProcessingDuration(d time.Duration) {
	m.ProcessingDuration.Observe(d.Seconds())
}

// IncGeocodingRequests increments the geocoding requests counter.
func (m *Metrics) IncGeocodingRequests(status string) {
	m.GeocodingRequests.WithLabelValues(status).Inc()
}

// IncMapRequests increments the static map requests counter.
func (m *Metrics) IncMapRequests(status string) {
	m.MapRequests.WithLabelValues(status).Inc()
}

// IncBatches increments the batches counter.
func (m *Metrics) IncBatches(source string) {
	m.Batches.WithLabelValues(source).Inc()
}

// SetQueueDepth sets the number of waiting batches.
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// SetRunning sets the service status to running.
func (m *Metrics) SetRunning() {
	m.Status.Set(1)
}

// SetStopped sets the service status to stopped.
func (m *Metrics) SetStopped() {
	m.Status.Set(0)
}
