package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"taskboard/domain"
)

const (
	opFetch  = "fetch"
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskboard",
			Name:      "gateway_operations_total",
			Help:      "Task gateway calls by operation and result.",
		},
		[]string{"op", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taskboard",
			Name:      "gateway_operation_seconds",
			Help:      "Duration of task gateway calls.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.3, 1, 3},
		},
		[]string{"op"},
	)
)

func observe(op string, start time.Time, errp *error) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	operationsTotal.WithLabelValues(op, result(*errp)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsAuth(err):
		return "auth"
	case domain.IsValidation(err):
		return "validation"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsNetwork(err):
		return "network"
	}
	return "error"
}
