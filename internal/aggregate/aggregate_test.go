package aggregate

import (
	"errors"
	"math"
	"testing"

	"github.com/kalambet/reviewlens/internal/classifier"
	"github.com/kalambet/reviewlens/internal/reviews"
)

var labels = classifier.DefaultLabels

func TestSentimentForRating(t *testing.T) {
	want := map[int]Sentiment{1: Negative, 2: Negative, 3: Neutral, 4: Positive, 5: Positive}
	for rating, s := range want {
		if got := SentimentForRating(rating); got != s {
			t.Errorf("SentimentForRating(%d) = %s, want %s", rating, got, s)
		}
	}
}

func TestBestTopic_IgnoresResponseOrder(t *testing.T) {
	r := classifier.Result{
		Labels: []string{"Service", "Price & Value", "Scent & Texture"},
		Scores: []float64{0.2, 0.7, 0.4},
	}
	topic, score, err := BestTopic(r, labels)
	if err != nil {
		t.Fatalf("BestTopic: %v", err)
	}
	if topic != "Price & Value" || score != 0.7 {
		t.Errorf("BestTopic = %s/%v, want Price & Value/0.7", topic, score)
	}
}

func TestBestTopic_TieGoesToLabelOrder(t *testing.T) {
	r := classifier.Result{
		Labels: []string{"Service", "Scent & Texture"},
		Scores: []float64{0.5, 0.5},
	}
	topic, _, err := BestTopic(r, labels)
	if err != nil {
		t.Fatalf("BestTopic: %v", err)
	}
	if topic != "Scent & Texture" {
		t.Errorf("tie resolved to %s, want Scent & Texture (earlier label)", topic)
	}
}

func TestBestTopic_NoKnownLabel(t *testing.T) {
	r := classifier.Result{Labels: []string{"Other"}, Scores: []float64{0.9}}
	if _, _, err := BestTopic(r, labels); err == nil {
		t.Error("expected error for result without candidate labels")
	}
}

func TestAggregate_TwoReviewExample(t *testing.T) {
	selected := []reviews.Review{
		{Rating: 5, HelpfulVote: 10, Text: "Great smell, arrived fast"},
		{Rating: 1, HelpfulVote: 2, Text: "Broke on arrival, unsafe"},
	}
	texts := []string{"Great smell, arrived fast", "Broke on arrival, unsafe"}
	results := []classifier.Result{
		{Labels: []string{"Scent & Texture", "Packaging & Shipping"}, Scores: []float64{0.9, 0.6}},
		{Labels: []string{"Safety & Authenticity", "Quality & Effectiveness"}, Scores: []float64{0.8, 0.3}},
	}

	st, err := Aggregate(selected, texts, results, labels)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if st.Sentiment[Positive] != 1 || st.Sentiment[Negative] != 1 || st.Sentiment[Neutral] != 0 {
		t.Errorf("Sentiment = %v", st.Sentiment)
	}
	if len(st.Sentiment) != 3 {
		t.Errorf("Sentiment has %d buckets, want all 3", len(st.Sentiment))
	}
	if st.TopicFractions["Scent & Texture"] != 0.5 || st.TopicFractions["Safety & Authenticity"] != 0.5 {
		t.Errorf("TopicFractions = %v", st.TopicFractions)
	}
	if len(st.TopicFractions) != 2 {
		t.Errorf("TopicFractions has %d topics, want 2", len(st.TopicFractions))
	}
	if st.Reviews[0].Topic != "Scent & Texture" || st.Reviews[0].TopicScore != 0.9 || st.Reviews[0].Rating != 5 {
		t.Errorf("Reviews[0] = %+v", st.Reviews[0])
	}
	if st.Reviews[1].Text != "Broke on arrival, unsafe" {
		t.Errorf("Reviews[1].Text = %q", st.Reviews[1].Text)
	}
}

func TestAggregate_Invariants(t *testing.T) {
	var selected []reviews.Review
	var texts []string
	var results []classifier.Result
	for i := 0; i < 37; i++ {
		selected = append(selected, reviews.Review{Rating: i%5 + 1})
		texts = append(texts, "t")
		scores := make([]float64, len(labels))
		scores[i%len(labels)] = 0.9
		results = append(results, classifier.Result{Labels: labels, Scores: scores})
	}

	st, err := Aggregate(selected, texts, results, labels)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	total := 0
	for _, c := range st.Sentiment {
		total += c
	}
	if total != st.Analyzed || st.Analyzed != len(st.Reviews) || st.Analyzed != 37 {
		t.Errorf("sentiment sum %d, analyzed %d, reviews %d", total, st.Analyzed, len(st.Reviews))
	}

	var sum float64
	for topic, f := range st.TopicFractions {
		if f < 0 || f > 1 {
			t.Errorf("fraction for %s = %v out of [0,1]", topic, f)
		}
		sum += f
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("fractions sum to %v, want 1", sum)
	}
}

func TestAggregate_Empty(t *testing.T) {
	_, err := Aggregate(nil, nil, nil, labels)
	if !errors.Is(err, ErrNoReviews) {
		t.Errorf("err = %v, want ErrNoReviews", err)
	}
}

func TestAggregate_LengthMismatch(t *testing.T) {
	selected := []reviews.Review{{Rating: 5}, {Rating: 4}}
	results := []classifier.Result{{Labels: []string{"Service"}, Scores: []float64{1}}}
	if _, err := Aggregate(selected, []string{"a", "b"}, results, labels); err == nil {
		t.Error("expected error for mismatched result count")
	}
}
