package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the upload and OCR pipeline. All
// observe methods are nil-safe so the service can run without metrics wired.
type Metrics struct {
	// Uploads by doc type
	Uploads *prometheus.CounterVec

	// OCR cache hits (provider call skipped)
	CacheHits prometheus.Counter

	// OCR cache misses
	CacheMisses prometheus.Counter

	// OCR provider failures (upload still succeeds)
	OCRFailures prometheus.Counter
}

// New creates a Metrics instance with all file module metrics registered.
func New() *Metrics {
	return &Metrics{
		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "twym_file_uploads_total",
			Help: "Total contact file uploads by doc type",
		}, []string{"doc_type"}),

		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_ocr_cache_hits_total",
			Help: "Total uploads served from the OCR result cache",
		}),

		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_ocr_cache_misses_total",
			Help: "Total uploads that required a fresh OCR pass",
		}),

		OCRFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "twym_ocr_failures_total",
			Help: "Total OCR provider errors during upload",
		}),
	}
}

// IncUpload records a completed upload.
func (m *Metrics) IncUpload(docType string) {
	if m != nil {
		m.Uploads.WithLabelValues(docType).Inc()
	}
}

// IncCacheHit records a reused OCR result.
func (m *Metrics) IncCacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

// IncCacheMiss records an upload with no cached OCR result.
func (m *Metrics) IncCacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}

// IncOCRFailure records a provider error.
func (m *Metrics) IncOCRFailure() {
	if m != nil {
		m.OCRFailures.Inc()
	}
}
