package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commissionsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_rows_created_total",
		Help: "Commission ledger rows written",
	}, []string{
		"provenance",
	})

	commissionComputations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_computations_total",
		Help: "Commission computations by outcome",
	}, []string{
		"outcome",
	})

	commissionLevelsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commission_levels_skipped_total",
		Help: "Upline levels that produced no commission row",
	}, []string{
		"reason",
	})

	commissionComputeSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "commission_compute_duration_seconds",
		Help:    "Time spent computing the commissions of one sale",
		Buckets: prometheus.DefBuckets,
	})

	simulationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "simulation_runs_total",
		Help: "Stress-test simulation runs by final status",
	}, []string{
		"status",
	})
)

func init() {
	prometheus.MustRegister(commissionsCreated)
	prometheus.MustRegister(commissionComputations)
	prometheus.MustRegister(commissionLevelsSkipped)
	prometheus.MustRegister(commissionComputeSeconds)
	prometheus.MustRegister(simulationRuns)
}

// provenanceLabel keeps metric cardinality bounded by folding run ids away
func provenanceLabel(p interface{ IsSynthetic() bool }) string {
	if p.IsSynthetic() {
		return "synthetic"
	}
	return "real"
}
