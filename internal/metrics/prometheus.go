package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewlens_analysis_duration_seconds",
			Help:    "End-to-end analysis latency in seconds, cache hits included",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"cache"},
	)

	AnalysisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewlens_analysis_total",
			Help: "Total analyses served by outcome",
		},
		[]string{"status"},
	)

	ClassifierDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviewlens_classifier_duration_seconds",
			Help:    "Zero-shot classifier batch call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	ClassifierCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewlens_classifier_calls_total",
			Help: "Total classifier batch calls by outcome",
		},
		[]string{"status"},
	)

	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewlens_cache_requests_total",
			Help: "Analysis cache lookups by result",
		},
		[]string{"result"},
	)

	CacheEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reviewlens_cache_entries",
			Help: "Analyses currently held in the cache",
		},
	)

	StoreReviews = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reviewlens_store_reviews",
			Help: "Reviews in the active review store",
		},
	)

	StoreProducts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reviewlens_store_products",
			Help: "Products in the active review store",
		},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewlens_feedback_total",
			Help: "Human-in-the-loop feedback received",
		},
		[]string{"feedback"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(AnalysisDuration)
		prometheus.MustRegister(AnalysisTotal)
		prometheus.MustRegister(ClassifierDuration)
		prometheus.MustRegister(ClassifierCalls)
		prometheus.MustRegister(CacheRequests)
		prometheus.MustRegister(CacheEntries)
		prometheus.MustRegister(StoreReviews)
		prometheus.MustRegister(StoreProducts)
		prometheus.MustRegister(FeedbackTotal)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
