// Package ingest builds the review dataset from the public JSON Lines dumps:
// one file of reviews and one file of product metadata.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/reviewlens/internal/storage"
)

// DatasetWriter replaces the stored dataset atomically.
type DatasetWriter interface {
	ReplaceDataset(ctx context.Context, products []storage.Product, reviews []storage.Review) error
}

// Stats describes one import run.
type Stats struct {
	BatchID           string `json:"batch_id"`
	ReviewsRead       int    `json:"reviews_read"`
	ProductsRead      int    `json:"products_read"`
	DuplicateProducts int    `json:"duplicate_products"`
	Unmatched         int    `json:"unmatched_reviews"`
	Dropped           int    `json:"dropped_reviews"`
	Products          int    `json:"products"`
	Reviews           int    `json:"reviews"`
	DurationMs        int64  `json:"duration_ms"`
}

// Importer loads JSONL dumps into a DatasetWriter.
type Importer struct {
	dst    DatasetWriter
	logger *slog.Logger
}

func NewImporter(dst DatasetWriter) *Importer {
	return &Importer{dst: dst, logger: slog.Default()}
}

// Import parses both files concurrently, joins reviews to their products and
// replaces the stored dataset. Nothing is written if either file fails to
// parse.
func (im *Importer) Import(ctx context.Context, reviewsPath, metaPath string) (Stats, error) {
	start := time.Now()
	st := Stats{BatchID: uuid.New().String()}

	var (
		reviews  []storage.Review
		products []storage.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := openJSONL(reviewsPath)
		if err != nil {
			return fmt.Errorf("opening reviews: %w", err)
		}
		defer f.Close()
		reviews, err = ReadReviews(gctx, f)
		return err
	})
	g.Go(func() error {
		f, err := openJSONL(metaPath)
		if err != nil {
			return fmt.Errorf("opening metadata: %w", err)
		}
		defer f.Close()
		products, st.DuplicateProducts, err = ReadMeta(gctx, f)
		return err
	})
	if err := g.Wait(); err != nil {
		return st, err
	}
	st.ReviewsRead = len(reviews)
	st.ProductsRead = len(products) + st.DuplicateProducts

	keptProducts, keptReviews, unmatched, dropped := Merge(products, reviews)
	st.Unmatched = unmatched
	st.Dropped = dropped
	st.Products = len(keptProducts)
	st.Reviews = len(keptReviews)

	if err := im.dst.ReplaceDataset(ctx, keptProducts, keptReviews); err != nil {
		return st, fmt.Errorf("storing dataset: %w", err)
	}
	st.DurationMs = time.Since(start).Milliseconds()

	im.logger.Info("dataset imported",
		"batch_id", st.BatchID,
		"products", st.Products,
		"reviews", st.Reviews,
		"unmatched", st.Unmatched,
		"dropped", st.Dropped,
		"duration_ms", st.DurationMs,
	)
	return st, nil
}

// Merge inner-joins reviews to products on parent ASIN and drops reviews
// with empty text or whose product has no title. Only products with at
// least one kept review are returned, in their original order.
func Merge(products []storage.Product, reviews []storage.Review) (keptProducts []storage.Product, keptReviews []storage.Review, unmatched, dropped int) {
	byASIN := make(map[string]storage.Product, len(products))
	for _, p := range products {
		byASIN[p.ParentASIN] = p
	}

	used := make(map[string]bool)
	for _, r := range reviews {
		p, ok := byASIN[r.ParentASIN]
		if !ok {
			unmatched++
			continue
		}
		if strings.TrimSpace(r.Text) == "" || strings.TrimSpace(p.Title) == "" {
			dropped++
			continue
		}
		used[r.ParentASIN] = true
		keptReviews = append(keptReviews, r)
	}

	for _, p := range products {
		if used[p.ParentASIN] {
			keptProducts = append(keptProducts, p)
		}
	}
	return keptProducts, keptReviews, unmatched, dropped
}
