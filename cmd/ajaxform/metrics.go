package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serveMetrics counts the submissions serve has answered.
type serveMetrics struct {
	submissions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func newServeMetrics(reg prometheus.Registerer) *serveMetrics {
	factory := promauto.With(reg)

	return &serveMetrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ajaxform",
			Name:      "submissions_total",
			Help:      "Form submissions answered, by fixture and outcome",
		}, []string{"fixture", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ajaxform",
			Name:      "submission_duration_seconds",
			Help:      "Time spent answering a submission, including fixture delay",
			Buckets:   prometheus.DefBuckets,
		}, []string{"fixture"}),
	}
}

func (m *serveMetrics) observe(fixture, outcome string, start time.Time) {
	m.submissions.WithLabelValues(fixture, outcome).Inc()
	m.duration.WithLabelValues(fixture).Observe(time.Since(start).Seconds())
}
