package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// appointmentConflicts counts bookings refused because the slot overlaps
	// an existing appointment, by operation (create, replace, patch).
	appointmentConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointments_conflicts_total",
			Help: "Appointment writes rejected because of a time conflict",
		},
		[]string{"operation"},
	)

	// appointmentsRejectedHours counts bookings outside business hours.
	appointmentsRejectedHours = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appointments_rejected_hours_total",
			Help: "Appointment writes rejected because they start outside business hours",
		},
	)
)

func init() {
	prometheus.MustRegister(appointmentConflicts, appointmentsRejectedHours)
}
