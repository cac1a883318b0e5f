package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cartOperations counts cart mutations by operation and outcome.
	cartOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Total number of cart operations by result",
		},
		[]string{"op", "result"},
	)

	// cartSaveConflicts counts optimistic save attempts lost to another writer.
	cartSaveConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_save_conflicts_total",
			Help: "Total number of cart saves rejected by the version check",
		},
	)
)

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cartOperations.WithLabelValues(op, result).Inc()
}
