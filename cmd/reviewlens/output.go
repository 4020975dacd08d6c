package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/kalambet/reviewlens/internal/aggregate"
	"github.com/kalambet/reviewlens/internal/analysis"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

var sentimentColor = map[aggregate.Sentiment]string{
	aggregate.Positive: colorGreen,
	aggregate.Negative: colorRed,
	aggregate.Neutral:  colorYellow,
}

const barWidth = 30

// bar renders fraction (0..1) as a fixed-width bar.
func bar(fraction float64) string {
	n := int(fraction*barWidth + 0.5)
	n = max(0, min(n, barWidth))
	return strings.Repeat("█", n) + strings.Repeat("·", barWidth-n)
}

// renderAnalysis prints a human-readable report of res.
func renderAnalysis(w io.Writer, res *analysis.Result, showReviews int) {
	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, res.ASIN), res.ProductTitle)
	fmt.Fprintf(w, "  rating %.1f from %d ratings, %d local reviews, %d analyzed\n\n",
		res.AverageRating, res.RatingNumber, res.TotalReviewsLocal, res.AnalyzedCount)

	fmt.Fprintln(w, colorize(colorBold, "Topics"))
	type topic struct {
		name string
		frac float64
	}
	topics := make([]topic, 0, len(res.TopTopics))
	for name, f := range res.TopTopics {
		topics = append(topics, topic{name, f})
	}
	sort.Slice(topics, func(i, j int) bool {
		if topics[i].frac != topics[j].frac {
			return topics[i].frac > topics[j].frac
		}
		return topics[i].name < topics[j].name
	})
	for _, t := range topics {
		fmt.Fprintf(w, "  %-24s %s %3.0f%%\n", t.name, colorize(colorCyan, bar(t.frac)), t.frac*100)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, colorize(colorBold, "Sentiment"))
	for _, s := range aggregate.Sentiments {
		fmt.Fprintf(w, "  %-10s %d\n", colorize(sentimentColor[s], string(s)), res.SentimentBreakdown[s])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, res.AISummary)

	if showReviews > 0 && len(res.Reviews) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, colorize(colorBold, "Reviews"))
		for i, r := range res.Reviews {
			if i == showReviews {
				break
			}
			s := aggregate.SentimentForRating(r.Rating)
			fmt.Fprintf(w, "  [%d★ %s] %s (%.2f)\n      %s\n",
				r.Rating, colorize(sentimentColor[s], string(s)), r.Topic, r.TopicScore, truncate(r.Text, 160))
		}
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
