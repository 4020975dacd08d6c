// Package classifier talks to the external zero-shot topic classifier.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ErrUnavailable marks any failure of the external classification call:
// transport errors, timeouts, non-200 responses and malformed payloads.
var ErrUnavailable = errors.New("classifier unavailable")

// DefaultLabels is the fixed, ordered topic vocabulary. Order matters: it is
// the tie-break priority wherever two topics score or count the same.
var DefaultLabels = []string{
	"Quality & Effectiveness",
	"Scent & Texture",
	"Price & Value",
	"Packaging & Shipping",
	"Safety & Authenticity",
	"Service",
}

// Result is the multi-label output for one text. Scores are independent
// per label and need not sum to 1.
type Result struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Classifier scores a batch of texts against a set of candidate labels.
// Implementations return exactly one Result per text, in input order.
type Classifier interface {
	Classify(ctx context.Context, texts []string, labels []string) ([]Result, error)
}

var (
	lineBreakRe  = regexp.MustCompile(`(?i)<br\s*/?>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CleanText replaces HTML line breaks with spaces, collapses whitespace runs
// and trims the ends.
func CleanText(s string) string {
	s = lineBreakRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// ParseLabels splits a ';'-separated label list, trimming each entry.
// It rejects empty lists, empty entries and duplicates.
func ParseLabels(raw string) ([]string, error) {
	parts := strings.Split(raw, ";")
	labels := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		l := strings.TrimSpace(p)
		if l == "" {
			return nil, fmt.Errorf("empty label in %q", raw)
		}
		if seen[l] {
			return nil, fmt.Errorf("duplicate label %q", l)
		}
		seen[l] = true
		labels = append(labels, l)
	}
	return labels, nil
}

// validate checks that results line up with the request.
func validate(results []Result, texts, labels []string) error {
	if len(results) != len(texts) {
		return fmt.Errorf("got %d results for %d texts", len(results), len(texts))
	}
	allowed := make(map[string]bool, len(labels))
	for _, l := range labels {
		allowed[l] = true
	}
	for i, r := range results {
		if len(r.Labels) == 0 || len(r.Labels) != len(r.Scores) {
			return fmt.Errorf("result %d: %d labels, %d scores", i, len(r.Labels), len(r.Scores))
		}
		for j, l := range r.Labels {
			if !allowed[l] {
				return fmt.Errorf("result %d: unexpected label %q", i, l)
			}
			if s := r.Scores[j]; math.IsNaN(s) || s < 0 || s > 1 {
				return fmt.Errorf("result %d: score %v for %q out of range", i, s, l)
			}
		}
	}
	return nil
}
