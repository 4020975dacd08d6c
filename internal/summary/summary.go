// Package summary assembles the fixed-template synopsis of an analysis.
// No model is involved: the same counts always yield the same text.
package summary

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/reviewlens/internal/aggregate"
)

var errNoAnalyzed = errors.New("summary: no analyzed reviews")

var closing = map[aggregate.Sentiment]string{
	aggregate.Negative: "This suggests users are facing critical issues in this specific area.",
	aggregate.Positive: "This indicates high user satisfaction regarding this feature.",
	aggregate.Neutral:  "Opinions on this product appear to be mixed.",
}

// Generate builds the three-sentence summary from topic counts, sentiment
// counts and the number of analyzed reviews. Ties are broken by the order of
// labels for topics and by aggregate.Sentiments for sentiment.
func Generate(topicCounts map[string]int, sentiments map[aggregate.Sentiment]int, analyzed int, labels []string) (string, error) {
	if analyzed <= 0 {
		return "", errNoAnalyzed
	}

	topic, count, ok := topTopic(topicCounts, labels)
	if !ok {
		return "", fmt.Errorf("summary: no topics counted")
	}
	// %.0f rounds half to even: 12.5 prints as 12.
	pct := float64(count) / float64(analyzed) * 100
	sentiment := topSentiment(sentiments)

	var b strings.Builder
	fmt.Fprintf(&b, "Based on an analysis of %d reviews, the customer sentiment is predominantly **%s**. ", analyzed, sentiment)
	fmt.Fprintf(&b, "The primary driver of conversation is **%s**, which appears in **%.0f%%** of the feedback. ", topic, pct)
	b.WriteString(closing[sentiment])
	return b.String(), nil
}

// topTopic walks labels first, then any remaining topics in sorted order,
// keeping the first strictly larger count.
func topTopic(counts map[string]int, labels []string) (string, int, bool) {
	order := make([]string, 0, len(counts))
	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
		if _, ok := counts[l]; ok {
			order = append(order, l)
		}
	}
	var extra []string
	for t := range counts {
		if !known[t] {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	best, bestCount, found := "", 0, false
	for _, t := range order {
		if c := counts[t]; !found || c > bestCount {
			best, bestCount, found = t, c, true
		}
	}
	return best, bestCount, found
}

func topSentiment(counts map[aggregate.Sentiment]int) aggregate.Sentiment {
	best := aggregate.Sentiments[0]
	for _, s := range aggregate.Sentiments[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}
