// Package aggregate reduces per-review classifier output into topic and
// sentiment distributions.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/kalambet/reviewlens/internal/classifier"
	"github.com/kalambet/reviewlens/internal/reviews"
)

// ErrNoReviews is returned when there is nothing to aggregate. The selector
// never produces an empty batch, so seeing it means an upstream bug.
var ErrNoReviews = errors.New("no reviews to aggregate")

// Sentiment is one of the three rating buckets.
type Sentiment string

const (
	Positive Sentiment = "Positive"
	Negative Sentiment = "Negative"
	Neutral  Sentiment = "Neutral"
)

// Sentiments lists the buckets in tie-break priority order.
var Sentiments = []Sentiment{Positive, Negative, Neutral}

// SentimentForRating buckets a star rating: 4-5 Positive, 1-2 Negative,
// anything else Neutral.
func SentimentForRating(rating int) Sentiment {
	switch {
	case rating >= 4:
		return Positive
	case rating <= 2:
		return Negative
	default:
		return Neutral
	}
}

// AnnotatedReview is a selected review with its cleaned text and winning topic.
type AnnotatedReview struct {
	Text       string  `json:"text"`
	Rating     int     `json:"rating"`
	Topic      string  `json:"topic"`
	TopicScore float64 `json:"topic_score"`
}

// Stats is the aggregate over one product's analyzed reviews.
type Stats struct {
	Analyzed       int
	TopicCounts    map[string]int
	TopicFractions map[string]float64
	Sentiment      map[Sentiment]int
	Reviews        []AnnotatedReview
}

// BestTopic returns the highest scoring label of r. Ties go to the label
// that comes first in labels, regardless of the order the classifier
// returned them in.
func BestTopic(r classifier.Result, labels []string) (string, float64, error) {
	scores := make(map[string]float64, len(r.Labels))
	for i, l := range r.Labels {
		if i < len(r.Scores) {
			scores[l] = r.Scores[i]
		}
	}

	best, bestScore, found := "", 0.0, false
	for _, l := range labels {
		s, ok := scores[l]
		if !ok {
			continue
		}
		if !found || s > bestScore {
			best, bestScore, found = l, s, true
		}
	}
	if !found {
		return "", 0, fmt.Errorf("no candidate label in classifier result %v", r.Labels)
	}
	return best, bestScore, nil
}

// Aggregate combines selected reviews, their cleaned texts and the classifier
// results (all in the same order) into Stats.
func Aggregate(selected []reviews.Review, texts []string, results []classifier.Result, labels []string) (Stats, error) {
	n := len(selected)
	if n == 0 {
		return Stats{}, ErrNoReviews
	}
	if len(texts) != n || len(results) != n {
		return Stats{}, fmt.Errorf("aggregate: %d reviews, %d texts, %d results", n, len(texts), len(results))
	}

	st := Stats{
		Analyzed:       n,
		TopicCounts:    make(map[string]int),
		TopicFractions: make(map[string]float64),
		Sentiment:      make(map[Sentiment]int, len(Sentiments)),
		Reviews:        make([]AnnotatedReview, 0, n),
	}
	for _, s := range Sentiments {
		st.Sentiment[s] = 0
	}

	for i, rv := range selected {
		topic, score, err := BestTopic(results[i], labels)
		if err != nil {
			return Stats{}, fmt.Errorf("review %d: %w", i, err)
		}
		st.Reviews = append(st.Reviews, AnnotatedReview{
			Text:       texts[i],
			Rating:     rv.Rating,
			Topic:      topic,
			TopicScore: score,
		})
		st.TopicCounts[topic]++
		st.Sentiment[SentimentForRating(rv.Rating)]++
	}

	for topic, count := range st.TopicCounts {
		st.TopicFractions[topic] = float64(count) / float64(n)
	}
	return st, nil
}
