package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationSendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_notification_send_total",
			Help: "Task reminder send attempts by channel and status.",
		},
		[]string{"channel", "status"},
	)
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_gateway_request_duration_seconds",
			Help:    "Duration of outbound gateway requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"gateway", "status"},
	)
	DispatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_dispatch_runs_total",
			Help: "Notification dispatcher runs by result.",
		},
		[]string{"result"},
	)
	DispatchRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crm_dispatch_run_duration_seconds",
			Help:    "Duration of completed notification dispatcher runs.",
			Buckets: prometheus.DefBuckets,
		},
	)
)
