package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	backendFlat    = "flat"
	backendChromem = "chromem"
)

var (
	// SearchDuration tracks index query latency by backend.
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assessd",
			Subsystem: "vectorstore",
			Name:      "search_duration_seconds",
			Help:      "Duration of vector index searches in seconds",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
		},
		[]string{"backend"},
	)

	// SearchesTotal counts searches by backend and result (success, error).
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assessd",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of vector index searches",
		},
		[]string{"backend", "result"},
	)
)

func observeSearch(backend string, start time.Time, err error) {
	SearchDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	result := "success"
	if err != nil {
		result = "error"
	}
	SearchesTotal.WithLabelValues(backend, result).Inc()
}
