package summary

import (
	"testing"

	"github.com/kalambet/reviewlens/internal/aggregate"
	"github.com/kalambet/reviewlens/internal/classifier"
)

var labels = classifier.DefaultLabels

func TestGenerate_TwoReviewExample(t *testing.T) {
	topics := map[string]int{"Safety & Authenticity": 1, "Scent & Texture": 1}
	sentiments := map[aggregate.Sentiment]int{aggregate.Positive: 1, aggregate.Negative: 1, aggregate.Neutral: 0}

	got, err := Generate(topics, sentiments, 2, labels)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := "Based on an analysis of 2 reviews, the customer sentiment is predominantly **Positive**. " +
		"The primary driver of conversation is **Scent & Texture**, which appears in **50%** of the feedback. " +
		"This indicates high user satisfaction regarding this feature."
	if got != want {
		t.Errorf("Generate =\n%q\nwant\n%q", got, want)
	}
}

func TestGenerate_Negative(t *testing.T) {
	topics := map[string]int{"Packaging & Shipping": 2, "Service": 1}
	sentiments := map[aggregate.Sentiment]int{aggregate.Positive: 0, aggregate.Negative: 2, aggregate.Neutral: 1}

	got, err := Generate(topics, sentiments, 3, labels)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := "Based on an analysis of 3 reviews, the customer sentiment is predominantly **Negative**. " +
		"The primary driver of conversation is **Packaging & Shipping**, which appears in **67%** of the feedback. " +
		"This suggests users are facing critical issues in this specific area."
	if got != want {
		t.Errorf("Generate =\n%q\nwant\n%q", got, want)
	}
}

func TestGenerate_Neutral(t *testing.T) {
	topics := map[string]int{"Price & Value": 1}
	sentiments := map[aggregate.Sentiment]int{aggregate.Neutral: 1}

	got, err := Generate(topics, sentiments, 1, labels)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	want := "Based on an analysis of 1 reviews, the customer sentiment is predominantly **Neutral**. " +
		"The primary driver of conversation is **Price & Value**, which appears in **100%** of the feedback. " +
		"Opinions on this product appear to be mixed."
	if got != want {
		t.Errorf("Generate =\n%q\nwant\n%q", got, want)
	}
}

func TestGenerate_SentimentTiePriority(t *testing.T) {
	topics := map[string]int{"Service": 4}
	sentiments := map[aggregate.Sentiment]int{aggregate.Positive: 1, aggregate.Negative: 2, aggregate.Neutral: 2}

	got, err := Generate(topics, sentiments, 5, labels)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Negative and Neutral tie; Negative has priority.
	if want := "predominantly **Negative**"; !contains(got, want) {
		t.Errorf("summary %q does not contain %q", got, want)
	}
	if want := "**80%**"; !contains(got, want) {
		t.Errorf("summary %q does not contain %q", got, want)
	}
}

func TestGenerate_RoundsHalfToEven(t *testing.T) {
	tests := []struct {
		count, analyzed int
		want            string
	}{
		{1, 8, "**12%**"},  // 12.5
		{5, 8, "**62%**"},  // 62.5
		{1, 40, "**2%**"},  // 2.5
		{3, 8, "**38%**"},  // 37.5
		{2, 3, "**67%**"},  // 66.67
		{1, 16, "**6%**"},  // 6.25
		{8, 8, "**100%**"}, // 100
	}
	for _, tt := range tests {
		topics := map[string]int{"Service": tt.count}
		sentiments := map[aggregate.Sentiment]int{aggregate.Positive: tt.analyzed}
		got, err := Generate(topics, sentiments, tt.analyzed, labels)
		if err != nil {
			t.Fatalf("Generate(%d/%d): %v", tt.count, tt.analyzed, err)
		}
		if !contains(got, tt.want) {
			t.Errorf("Generate(%d/%d) = %q, want %s", tt.count, tt.analyzed, got, tt.want)
		}
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	topics := map[string]int{"Service": 3, "Price & Value": 3, "Scent & Texture": 3}
	sentiments := map[aggregate.Sentiment]int{aggregate.Positive: 9}

	first, err := Generate(topics, sentiments, 9, labels)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := Generate(topics, sentiments, 9, labels)
		if again != first {
			t.Fatalf("run %d differs:\n%q\n%q", i, first, again)
		}
	}
	if !contains(first, "**Scent & Texture**") {
		t.Errorf("three-way tie resolved wrongly: %q", first)
	}
}

func TestGenerate_ZeroAnalyzed(t *testing.T) {
	if _, err := Generate(nil, nil, 0, labels); err == nil {
		t.Error("expected error for zero analyzed reviews")
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
