package horde

import "github.com/prometheus/client_golang/prometheus"

var jobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "answerd",
		Name:      "horde_jobs_total",
		Help:      "AI Horde jobs by outcome (submitted, submit_failed, won, faulted, cancelled)",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(jobsTotal)
}
