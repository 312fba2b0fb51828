package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed analyses.
	OutcomeSuccess = "success"
	// OutcomeError labels analyses that failed (load, validation or pipeline issues).
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tsreport",
			Name:      "analyses_total",
			Help:      "Total number of analyses handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tsreport",
			Name:      "analysis_seconds",
			Help:      "End-to-end analysis latency in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	samplingRatio = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tsreport",
			Name:      "sampling_ratio",
			Help:      "Sampled-to-original row ratio per analysis.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1},
		},
	)

	chunksPlanned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tsreport",
			Name:      "chunks_planned",
			Help:      "Number of chunks planned per analysis.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		},
	)
)

// Register attaches tsreport collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		samplingRatio,
		chunksPlanned,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records an analysis duration and outcome label.
func ObserveAnalysis(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	analysesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.Observe(duration.Seconds())
}

// ObserveSampling records the applied sampling ratio.
func ObserveSampling(ratio float64) {
	if ratio < 0 || ratio > 1 {
		return
	}
	samplingRatio.Observe(ratio)
}

// ObserveChunks records how many chunks an analysis planned.
func ObserveChunks(count int) {
	if count < 1 {
		return
	}
	chunksPlanned.Observe(float64(count))
}
