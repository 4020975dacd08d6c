// Package reviews holds the in-memory review dataset and the review selector.
package reviews

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/kalambet/reviewlens/internal/storage"
)

const (
	DefaultMenuSize       = 100
	DefaultMenuMinReviews = 5
)

// generations hands out a fresh marker for every Store built in this process.
var generations atomic.Uint64

// Review is a single customer review. Reviews are immutable once loaded.
type Review struct {
	Text        string
	Rating      int
	HelpfulVote int
	Timestamp   int64
	ParentASIN  string
}

// Product is the metadata of one product, taken from the first row seen for
// its ASIN.
type Product struct {
	ASIN          string
	Title         string
	ImageURL      string
	AverageRating float64
	RatingCount   int
}

// MenuEntry is one item of the popular-products menu.
type MenuEntry struct {
	ASIN     string `json:"asin"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url,omitempty"`
}

// MenuOptions controls which products qualify for the menu.
type MenuOptions struct {
	Size       int // maximum entries (default 100)
	MinReviews int // minimum reviews per product (default 5)
}

// Store is an in-memory, read-only view of the review dataset indexed by ASIN.
// It is safe for concurrent use because nothing mutates it after NewStore.
type Store struct {
	generation uint64
	reviews    map[string][]Review
	products   map[string]Product
	menu       []MenuEntry
	total      int
}

// Row is one review joined with its product metadata.
type Row struct {
	Review  Review
	Product Product
}

// NewStore indexes rows by ASIN and computes the menu.
func NewStore(rows []Row, opts MenuOptions) *Store {
	if opts.Size <= 0 {
		opts.Size = DefaultMenuSize
	}
	if opts.MinReviews <= 0 {
		opts.MinReviews = DefaultMenuMinReviews
	}

	s := &Store{
		generation: generations.Add(1),
		reviews:    make(map[string][]Review),
		products:   make(map[string]Product),
		total:      len(rows),
	}

	var order []string
	for _, row := range rows {
		asin := row.Review.ParentASIN
		if _, ok := s.products[asin]; !ok {
			p := row.Product
			p.ASIN = asin
			s.products[asin] = p
			order = append(order, asin)
		}
		s.reviews[asin] = append(s.reviews[asin], row.Review)
	}

	var candidates []Product
	for _, asin := range order {
		if len(s.reviews[asin]) >= opts.MinReviews {
			candidates = append(candidates, s.products[asin])
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].RatingCount > candidates[j].RatingCount
	})
	if len(candidates) > opts.Size {
		candidates = candidates[:opts.Size]
	}

	s.menu = make([]MenuEntry, len(candidates))
	for i, p := range candidates {
		s.menu[i] = MenuEntry{ASIN: p.ASIN, Title: p.Title, ImageURL: p.ImageURL}
	}
	return s
}

// RowSource is the bulk dataset read the Store is built from.
type RowSource interface {
	LoadReviewRows(ctx context.Context) ([]storage.ReviewRow, error)
}

// Load reads the whole dataset from src and builds a Store.
func Load(ctx context.Context, src RowSource, opts MenuOptions) (*Store, error) {
	raw, err := src.LoadReviewRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading review rows: %w", err)
	}

	rows := make([]Row, len(raw))
	for i, r := range raw {
		rows[i] = Row{
			Review: Review{
				Text:        r.Text,
				Rating:      r.Rating,
				HelpfulVote: r.HelpfulVote,
				Timestamp:   r.Timestamp,
				ParentASIN:  r.ParentASIN,
			},
			Product: Product{
				ASIN:          r.ParentASIN,
				Title:         r.ProductTitle,
				ImageURL:      r.ImageURL,
				AverageRating: r.AverageRating,
				RatingCount:   r.RatingNumber,
			},
		}
	}
	return NewStore(rows, opts), nil
}

// Generation identifies this Store among all Stores built by the process.
// A reload always produces a larger value.
func (s *Store) Generation() uint64 { return s.generation }

// Reviews returns the reviews of asin in load order. The returned slice is
// shared and must not be modified.
func (s *Store) Reviews(asin string) []Review {
	return s.reviews[asin]
}

// Product returns the metadata for asin.
func (s *Store) Product(asin string) (Product, bool) {
	p, ok := s.products[asin]
	return p, ok
}

// Menu returns a copy of the menu, ranked by rating count.
func (s *Store) Menu() []MenuEntry {
	out := make([]MenuEntry, len(s.menu))
	copy(out, s.menu)
	return out
}

// ReviewCount is the total number of reviews in the store.
func (s *Store) ReviewCount() int { return s.total }

// ProductCount is the number of distinct ASINs in the store.
func (s *Store) ProductCount() int { return len(s.products) }
