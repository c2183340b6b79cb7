package domain

// PlatformStats is the admin dashboard summary. TotalRevenue sums order
// totals across every status, cancelled and pending included.
type PlatformStats struct {
	Customers      int   `json:"customers"`
	Sellers        int   `json:"sellers"`
	PendingSellers int   `json:"pending_sellers"`
	BannedUsers    int   `json:"banned_users"`
	Products       int   `json:"products"`
	ActiveProducts int   `json:"active_products"`
	Orders         int   `json:"orders"`
	TotalRevenue   int64 `json:"total_revenue"`
}

// UserCounts is the user part of PlatformStats as computed by the store.
type UserCounts struct {
	Customers      int
	Sellers        int
	PendingSellers int
	Banned         int
}
