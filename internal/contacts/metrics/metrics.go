package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contact lifecycle engine. All
// observe methods are nil-safe so services can run without metrics wired.
type Metrics struct {
	// Contacts created by acquisition channel
	Created *prometheus.CounterVec

	// Duplicate detections by acquisition channel
	Duplicates *prometheus.CounterVec

	// Contacts hard-deleted by the expiry sweep
	SweptContacts prometheus.Counter

	// Submissions purged by the expiry sweep
	SweptSubmissions prometheus.Counter
}

// New creates a Metrics instance with all contact module metrics registered.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "twym_contacts_created_total",
			Help: "Total contacts created by acquisition channel",
		}, []string{"channel"}),

		Duplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "twym_contacts_duplicates_total",
			Help: "Total duplicate detections by acquisition channel",
		}, []string{"channel"}),

		SweptContacts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_contacts_swept_total",
			Help: "Total contacts hard-deleted by the expiry sweep",
		}),

		SweptSubmissions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_submissions_swept_total",
			Help: "Total form submissions purged by the expiry sweep",
		}),
	}
}

// IncCreated records a created contact.
func (m *Metrics) IncCreated(channel string) {
	if m != nil {
		m.Created.WithLabelValues(channel).Inc()
	}
}

// IncDuplicate records a duplicate detection.
func (m *Metrics) IncDuplicate(channel string) {
	if m != nil {
		m.Duplicates.WithLabelValues(channel).Inc()
	}
}

// AddSweptContacts records contacts removed by a sweep run.
func (m *Metrics) AddSweptContacts(n int) {
	if m != nil && n > 0 {
		m.SweptContacts.Add(float64(n))
	}
}

// AddSweptSubmissions records submissions removed by a sweep run.
func (m *Metrics) AddSweptSubmissions(n int) {
	if m != nil && n > 0 {
		m.SweptSubmissions.Add(float64(n))
	}
}
