package transfer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfers_total",
		Help: "Completed transfers by upload path and result.",
	}, []string{"path", "result"})

	transferBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfer_bytes_total",
		Help: "Bytes written to the final store.",
	})

	transferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transfer_duration_seconds",
		Help:    "Wall time of successful transfers.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
	}, []string{"path"})
)
