package remote

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storeledger",
		Subsystem: "remote",
		Name:      "ops_total",
		Help:      "Remote store operations by op and final outcome.",
	}, []string{"op", "outcome"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storeledger",
		Subsystem: "remote",
		Name:      "retries_total",
		Help:      "Individual retry attempts after a failed remote operation.",
	}, []string{"op"})
)
