// Package analysis runs the per-product review pipeline: select the most
// useful reviews, classify them in one batch, aggregate topics and
// sentiment, and render the summary. Results are cached per store
// generation and ASIN.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/kalambet/reviewlens/internal/aggregate"
	"github.com/kalambet/reviewlens/internal/classifier"
	"github.com/kalambet/reviewlens/internal/metrics"
	"github.com/kalambet/reviewlens/internal/reviews"
	"github.com/kalambet/reviewlens/internal/summary"
)

// ErrNotFound is returned when the active store has no reviews for an ASIN.
var ErrNotFound = errors.New("product not found")

// Result is the full analysis of one product. A Result is shared between all
// callers that hit the same cache entry and must be treated as read-only.
type Result struct {
	ASIN               string                      `json:"asin"`
	TotalReviewsLocal  int                         `json:"total_reviews_local"`
	AnalyzedCount      int                         `json:"analyzed_count"`
	ProductTitle       string                      `json:"product_title"`
	ProductImage       *string                     `json:"product_image"`
	AverageRating      float64                     `json:"average_rating"`
	RatingNumber       int                         `json:"rating_number"`
	TopTopics          map[string]float64          `json:"top_topics"`
	SentimentBreakdown map[aggregate.Sentiment]int `json:"sentiment_breakdown"`
	Reviews            []aggregate.AnnotatedReview `json:"reviews"`
	AISummary          string                      `json:"ai_summary"`

	// Generation of the review store this result was computed from.
	Generation uint64 `json:"-"`
}

// Options configures an Analyzer. Zero values fall back to defaults.
type Options struct {
	MaxReviews int
	Labels     []string
	Menu       reviews.MenuOptions
	Logger     *slog.Logger
}

// Analyzer owns the active review store and the analysis cache. It is safe
// for concurrent use.
type Analyzer struct {
	store      atomic.Pointer[reviews.Store]
	classifier classifier.Classifier
	cache      *Cache
	maxReviews int
	labels     []string
	menu       reviews.MenuOptions
	logger     *slog.Logger
}

// NewAnalyzer creates an Analyzer serving store through cache.
func NewAnalyzer(store *reviews.Store, c classifier.Classifier, cache *Cache, opts Options) *Analyzer {
	if opts.MaxReviews <= 0 {
		opts.MaxReviews = reviews.DefaultMaxSelected
	}
	if len(opts.Labels) == 0 {
		opts.Labels = classifier.DefaultLabels
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &Analyzer{
		classifier: c,
		cache:      cache,
		maxReviews: opts.MaxReviews,
		labels:     append([]string(nil), opts.Labels...),
		menu:       opts.Menu,
		logger:     opts.Logger,
	}
	a.setStore(store)
	return a
}

// Store returns the active review store.
func (a *Analyzer) Store() *reviews.Store {
	return a.store.Load()
}

// Labels returns a copy of the topic vocabulary in tie-break order.
func (a *Analyzer) Labels() []string {
	return append([]string(nil), a.labels...)
}

// Product returns the metadata of asin in the active store.
func (a *Analyzer) Product(asin string) (reviews.Product, bool) {
	return a.store.Load().Product(asin)
}

// Menu returns the popular-products menu of the active store.
func (a *Analyzer) Menu() []reviews.MenuEntry {
	return a.store.Load().Menu()
}

// Analyze returns the analysis for asin, computing it at most once per store
// generation no matter how many callers ask concurrently.
func (a *Analyzer) Analyze(ctx context.Context, asin string) (*Result, error) {
	start := time.Now()
	// Epoch before store: a Swap after this point also purges, so a result
	// computed from a replaced store is never kept.
	epoch := a.cache.Epoch()
	store := a.store.Load()
	key := cacheKey(store.Generation(), asin)

	res, hit, err := a.cache.GetOrCompute(ctx, epoch, key, func(ctx context.Context) (*Result, error) {
		return a.compute(ctx, store, asin)
	})
	elapsed := time.Since(start)

	cacheLabel := "miss"
	if hit {
		cacheLabel = "hit"
	}
	metrics.AnalysisDuration.WithLabelValues(cacheLabel).Observe(elapsed.Seconds())

	if err != nil {
		metrics.AnalysisTotal.WithLabelValues(statusOf(err)).Inc()
		if !errors.Is(err, ErrNotFound) {
			a.logger.Warn("analysis failed", "asin", asin, "error", err, "latency_ms", elapsed.Milliseconds())
		}
		return nil, err
	}

	metrics.AnalysisTotal.WithLabelValues("ok").Inc()
	a.logger.Info("analysis served",
		"asin", asin,
		"cached", hit,
		"analyzed", res.AnalyzedCount,
		"latency_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (a *Analyzer) compute(ctx context.Context, store *reviews.Store, asin string) (*Result, error) {
	all := store.Reviews(asin)
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, asin)
	}
	product, _ := store.Product(asin)

	selected := reviews.Select(all, a.maxReviews)
	texts := make([]string, len(selected))
	for i, r := range selected {
		texts[i] = classifier.CleanText(r.Text)
	}

	start := time.Now()
	results, err := a.classifier.Classify(ctx, texts, a.labels)
	metrics.ClassifierDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ClassifierCalls.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("classifying reviews of %s: %w", asin, err)
	}
	metrics.ClassifierCalls.WithLabelValues("ok").Inc()
	a.logger.Debug("classified reviews", "asin", asin, "count", len(texts), "duration_ms", time.Since(start).Milliseconds())

	stats, err := aggregate.Aggregate(selected, texts, results, a.labels)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s: %w", asin, err)
	}
	text, err := summary.Generate(stats.TopicCounts, stats.Sentiment, stats.Analyzed, a.labels)
	if err != nil {
		return nil, fmt.Errorf("summarizing %s: %w", asin, err)
	}

	var image *string
	if product.ImageURL != "" {
		img := product.ImageURL
		image = &img
	}

	return &Result{
		ASIN:               asin,
		TotalReviewsLocal:  len(all),
		AnalyzedCount:      stats.Analyzed,
		ProductTitle:       product.Title,
		ProductImage:       image,
		AverageRating:      product.AverageRating,
		RatingNumber:       product.RatingCount,
		TopTopics:          stats.TopicFractions,
		SentimentBreakdown: stats.Sentiment,
		Reviews:            stats.Reviews,
		AISummary:          text,
		Generation:         store.Generation(),
	}, nil
}

// Swap makes store the active review store and drops every cached analysis.
// Requests already running finish against the store they started with.
func (a *Analyzer) Swap(store *reviews.Store) {
	old := a.store.Swap(store)
	a.cache.Purge()
	metrics.StoreReviews.Set(float64(store.ReviewCount()))
	metrics.StoreProducts.Set(float64(store.ProductCount()))

	var prev uint64
	if old != nil {
		prev = old.Generation()
	}
	a.logger.Info("review store swapped",
		"generation", store.Generation(),
		"previous", prev,
		"products", store.ProductCount(),
		"reviews", store.ReviewCount(),
	)
}

// Reload rebuilds the review store from src and swaps it in. On error the
// active store is left untouched.
func (a *Analyzer) Reload(ctx context.Context, src reviews.RowSource) (*reviews.Store, error) {
	store, err := reviews.Load(ctx, src, a.menu)
	if err != nil {
		return nil, fmt.Errorf("reloading review store: %w", err)
	}
	a.Swap(store)
	return store, nil
}

func (a *Analyzer) setStore(store *reviews.Store) {
	a.store.Store(store)
	metrics.StoreReviews.Set(float64(store.ReviewCount()))
	metrics.StoreProducts.Set(float64(store.ProductCount()))
}

func cacheKey(generation uint64, asin string) string {
	return strconv.FormatUint(generation, 10) + "/" + asin
}

func statusOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, classifier.ErrUnavailable):
		return "classifier_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
