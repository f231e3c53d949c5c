package openai

import "github.com/prometheus/client_golang/prometheus"

var attemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "answerd",
		Name:      "openai_attempts_total",
		Help:      "Completion attempts against OpenAI-compatible endpoints",
	},
	[]string{"provider", "outcome"},
)

func init() {
	prometheus.MustRegister(attemptsTotal)
}
