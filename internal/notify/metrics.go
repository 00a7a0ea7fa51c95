package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsSent = promauto.NewCounter(prometheus.CounterOpts{
	Name: "classtrack_notifications_sent_total",
	Help: "Notification recipients processed by the dispatcher.",
})
