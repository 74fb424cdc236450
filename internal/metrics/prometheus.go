package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_fetch_total",
			Help: "Source fetch outcomes by status",
		},
		[]string{"status"},
	)

	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_fetch_duration_seconds",
			Help:    "Per-source fetch duration including retries",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	BatchSizeWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "research_batch_size_warnings_total",
			Help: "Enrichment batches whose aggregate content exceeded the size threshold",
		},
	)

	DocumentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "research_documents_processed_total",
			Help: "Uploaded documents successfully chunked",
		},
	)

	ChunksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "research_chunks_created_total",
			Help: "Document chunks produced",
		},
	)

	AdequacyScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "research_adequacy_score",
			Help:    "Overall adequacy scores computed",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	VerificationReports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_verification_reports_total",
			Help: "Verification gate decisions by status",
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(BatchSizeWarnings)
	prometheus.MustRegister(DocumentsProcessed)
	prometheus.MustRegister(ChunksCreated)
	prometheus.MustRegister(AdequacyScores)
	prometheus.MustRegister(VerificationReports)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
