package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_sessions_created_total",
		Help: "Attendance sessions created.",
	})
	checkinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_checkins_total",
		Help: "Attendance records written, scan and manual paths combined.",
	})
	checkinConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classtrack_checkin_conflicts_total",
		Help: "Check-in attempts rejected as duplicates.",
	})
)
