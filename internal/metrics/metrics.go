// Package metrics collects and exposes Prometheus metrics for the lending ledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Outcome labels shared by checkout and return counters.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Collector holds the service's Prometheus metrics.
type Collector struct {
	checkouts      *prometheus.CounterVec
	returns        *prometheus.CounterVec
	overdueReturns prometheus.Counter
	penalties      prometheus.Counter
	notifications  *prometheus.CounterVec
	reminders      prometheus.Counter
}

// NewCollector registers the metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libraryhub_checkouts_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		returns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libraryhub_returns_total",
			Help: "Return attempts by outcome.",
		}, []string{"outcome"}),
		overdueReturns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libraryhub_overdue_returns_total",
			Help: "Returns made after the due date.",
		}),
		penalties: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libraryhub_penalties_charged_total",
			Help: "Sum of penalties charged on returns.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libraryhub_notifications_total",
			Help: "Outbound notifications by status (sent, failed, dropped).",
		}, []string{"status"}),
		reminders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libraryhub_overdue_reminders_total",
			Help: "Overdue reminders queued by the daily job.",
		}),
	}

	reg.MustRegister(
		c.checkouts,
		c.returns,
		c.overdueReturns,
		c.penalties,
		c.notifications,
		c.reminders,
	)

	return c
}

// RecordCheckout counts a checkout attempt.
func (c *Collector) RecordCheckout(outcome string) {
	c.checkouts.WithLabelValues(outcome).Inc()
}

// RecordReturn counts a return attempt and, when late, the penalty charged.
func (c *Collector) RecordReturn(outcome string, daysLate int, penalty decimal.Decimal) {
	c.returns.WithLabelValues(outcome).Inc()
	if daysLate > 0 {
		c.overdueReturns.Inc()
		c.penalties.Add(penalty.InexactFloat64())
	}
}

// RecordNotification counts a notification by delivery status.
func (c *Collector) RecordNotification(status string) {
	c.notifications.WithLabelValues(status).Inc()
}

// RecordReminders counts overdue reminders queued by one job run.
func (c *Collector) RecordReminders(n int) {
	c.reminders.Add(float64(n))
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
