package local

import "github.com/prometheus/client_golang/prometheus"

var fallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "answerd",
	Name:      "local_fallbacks_total",
	Help:      "Accelerated starts that failed and fell back to the CPU runtime",
})

func init() {
	prometheus.MustRegister(fallbacksTotal)
}
