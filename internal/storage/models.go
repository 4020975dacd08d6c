package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Product is one row of product metadata, keyed by parent ASIN.
type Product struct {
	ParentASIN    string
	Title         string
	ImageURL      string // empty when the source had no usable image
	AverageRating float64
	RatingNumber  int
	MainCategory  string
	StoreName     string
}

// Review is one customer review belonging to a product.
type Review struct {
	ParentASIN  string
	ASIN        string
	Rating      int
	Title       string
	Text        string
	Timestamp   int64
	HelpfulVote int
}

// ReviewRow is a review joined with its product metadata, as returned by the
// bulk dataset read.
type ReviewRow struct {
	ParentASIN    string
	Text          string
	Rating        int
	HelpfulVote   int
	Timestamp     int64
	ProductTitle  string
	ImageURL      string
	AverageRating float64
	RatingNumber  int
}

type Feedback struct {
	ID         string
	ParentASIN string
	Feedback   string // "POSITIVE" or "NEGATIVE"
	CreatedAt  time.Time
}
