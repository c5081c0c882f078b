package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
)

var creditsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ledger_credits_total",
		Help: "Committed coin credits by category",
	},
	[]string{"category"},
)

func init() {
	prometheus.MustRegister(creditsTotal)
}
