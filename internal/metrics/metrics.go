package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkflow",
			Name:      "booking_saved_total",
			Help:      "Count of appointments saved by operation.",
		},
		[]string{"op"},
	)

	bookingConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkflow",
			Name:      "booking_conflicts_total",
			Help:      "Count of booking conflicts reported by kind.",
		},
		[]string{"kind"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkflow",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	emailEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkflow",
			Name:      "email_provider_events_total",
			Help:      "Count of delivery events reported by the mail provider.",
		},
		[]string{"event"},
	)

	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inkflow",
			Name:      "database_backups_total",
			Help:      "Count of database backups by result.",
		},
		[]string{"result"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(bookingSaved, bookingConflicts, httpRequests, emailEvents, backups)
	})
}

func IncBookingSaved(op string) {
	bookingSaved.WithLabelValues(op).Inc()
}

func IncBookingConflict(kind string) {
	bookingConflicts.WithLabelValues(kind).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncEmailEvent(event string) {
	emailEvents.WithLabelValues(event).Inc()
}

func IncBackup(result string) {
	backups.WithLabelValues(result).Inc()
}
