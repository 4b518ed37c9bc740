// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_notifications_sent_total",
			Help: "Total number of WhatsApp notifications sent",
		},
		[]string{"backend", "content_type"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_notifications_failed_total",
			Help: "Total number of WhatsApp notifications that failed",
		},
		[]string{"backend", "error_code"},
	)

	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "whatsapp_dispatch_duration_seconds",
			Help: "Duration of provider dispatch calls in seconds",
		},
		[]string{"backend"},
	)

	ScheduledDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "whatsapp_scheduled_documents_total",
			Help: "Documents picked up per scheduler tick",
		},
		[]string{"doctype"},
	)
)
