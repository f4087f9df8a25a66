package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablemgr",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by kind.",
		},
		[]string{"kind"},
	)

	bookingDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tablemgr",
			Name:      "booking_deleted_total",
			Help:      "Count of bookings deleted.",
		},
	)

	statusChanged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablemgr",
			Name:      "table_status_changed_total",
			Help:      "Count of table status transitions by target state.",
		},
		[]string{"status"},
	)

	occupancyPct = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tablemgr",
			Name:      "occupancy_percent",
			Help:      "Current floor occupancy percentage.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingCreated, bookingDeleted, statusChanged, occupancyPct)
	})
}

func IncBookingCreated(kind string) {
	bookingCreated.WithLabelValues(kind).Inc()
}

func IncBookingDeleted() {
	bookingDeleted.Inc()
}

func IncStatusChanged(status string) {
	statusChanged.WithLabelValues(status).Inc()
}

func SetOccupancyPct(pct float64) {
	occupancyPct.Set(pct)
}
