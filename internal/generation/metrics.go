package generation

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "answerd",
			Name:      "sessions_total",
			Help:      "Generation sessions by provider and terminal state",
		},
		[]string{"provider", "outcome"},
	)

	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "answerd",
			Name:      "session_duration_seconds",
			Help:      "Wall time from session start to terminal state",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(sessionsTotal, sessionDuration)
}
