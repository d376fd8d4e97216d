package progress

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Image outcomes recorded by CountImage.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

var (
	stepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "diffusiond",
			Subsystem: "generation",
			Name:      "step_seconds",
			Help:      "Wall-clock time between consecutive diffusion steps",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "diffusiond",
			Subsystem: "generation",
			Name:      "images_total",
			Help:      "Image attempts by outcome",
		},
		[]string{"outcome"},
	)

	queueIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "diffusiond",
			Subsystem: "generation",
			Name:      "queue_index",
			Help:      "Index of the image currently being generated in the batch",
		},
	)

	queueTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "diffusiond",
			Subsystem: "generation",
			Name:      "queue_total",
			Help:      "Number of images requested by the current batch",
		},
	)
)

func init() {
	prometheus.MustRegister(stepDuration, imagesTotal, queueIndex, queueTotal)
}

// ObserveStep records one step latency.
func ObserveStep(d time.Duration) { stepDuration.Observe(d.Seconds()) }

// CountImage records the outcome of one image attempt.
func CountImage(outcome string) { imagesTotal.WithLabelValues(outcome).Inc() }

// SetQueue exports the current queue position.
func SetQueue(index, total int) {
	queueIndex.Set(float64(index))
	queueTotal.Set(float64(total))
}
