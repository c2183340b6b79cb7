package domain

import "time"

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a buyer's rating of a product. At most one review exists per
// (product, user) pair. UserName is a snapshot of the author's name.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidRating reports whether r is an integer star rating.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// ReviewSort orders product review listings.
type ReviewSort string

const (
	ReviewSortNewest ReviewSort = "newest"
	ReviewSortRating ReviewSort = "rating"
)

// ParseReviewSort maps a query value onto a sort, defaulting to newest.
func ParseReviewSort(s string) ReviewSort {
	if ReviewSort(s) == ReviewSortRating {
		return ReviewSortRating
	}
	return ReviewSortNewest
}
