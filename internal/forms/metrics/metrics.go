package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the public capture surface. All
// observe methods are nil-safe so the service can run without metrics wired.
type Metrics struct {
	// Accepted public submissions
	Submissions prometheus.Counter

	// Submissions rejected by the per-IP daily limit
	RateLimited prometheus.Counter

	// Submissions rejected by field validation
	Invalid prometheus.Counter

	// Submissions converted into contacts
	Converted prometheus.Counter
}

// New creates a Metrics instance with all form module metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_form_submissions_total",
			Help: "Total accepted public form submissions",
		}),

		RateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_form_submissions_rate_limited_total",
			Help: "Total submissions rejected by the per-IP daily limit",
		}),

		Invalid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_form_submissions_invalid_total",
			Help: "Total submissions rejected by field validation",
		}),

		Converted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_form_submissions_converted_total",
			Help: "Total submissions converted into contacts",
		}),
	}
}

// IncSubmission records an accepted submission.
func (m *Metrics) IncSubmission() {
	if m != nil {
		m.Submissions.Inc()
	}
}

// IncRateLimited records a rejection by the daily limit.
func (m *Metrics) IncRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

// IncInvalid records a validation rejection.
func (m *Metrics) IncInvalid() {
	if m != nil {
		m.Invalid.Inc()
	}
}

// IncConverted records a submission turned into a contact.
func (m *Metrics) IncConverted() {
	if m != nil {
		m.Converted.Inc()
	}
}
