package domain

// RatingDistribution counts reviews per star, keyed 1 through 5.
type RatingDistribution map[int]int

// ReviewStats is the derived rating summary attached to every product read.
type ReviewStats struct {
	TotalReviews       int                `json:"total_reviews"`
	AverageRating      float64            `json:"average_rating"`
	RatingDistribution RatingDistribution `json:"rating_distribution"`
}

// NewReviewStats derives stats from per-star counts, where counts[0] holds
// one-star reviews and counts[4] five-star reviews. The average is rounded
// half-up to one decimal and is 0 when there are no reviews. Integer
// arithmetic keeps the rounding exact (4.45 rounds to 4.5).
func NewReviewStats(counts [5]int) ReviewStats {
	dist := make(RatingDistribution, 5)
	total, sum := 0, 0
	for i, n := range counts {
		star := i + 1
		dist[star] = n
		total += n
		sum += star * n
	}

	stats := ReviewStats{TotalReviews: total, RatingDistribution: dist}
	if total > 0 {
		tenths := (sum*20 + total) / (2 * total)
		stats.AverageRating = float64(tenths) / 10
	}
	return stats
}

// ReviewStatsFromRatings derives stats from individual ratings. Ratings
// outside 1..5 are ignored.
func ReviewStatsFromRatings(ratings []int) ReviewStats {
	var counts [5]int
	for _, r := range ratings {
		if r >= MinRating && r <= MaxRating {
			counts[r-1]++
		}
	}
	return NewReviewStats(counts)
}
