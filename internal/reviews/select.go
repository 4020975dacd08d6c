package reviews

import "sort"

// DefaultMaxSelected bounds how many reviews of one product are analyzed.
const DefaultMaxSelected = 50

// Select ranks reviews by helpful votes, then recency, and returns at most n
// of them. The input is not modified and equal keys keep their input order.
func Select(all []Review, n int) []Review {
	if n <= 0 {
		n = DefaultMaxSelected
	}

	ranked := make([]Review, len(all))
	copy(ranked, all)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].HelpfulVote != ranked[j].HelpfulVote {
			return ranked[i].HelpfulVote > ranked[j].HelpfulVote
		}
		return ranked[i].Timestamp > ranked[j].Timestamp
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
