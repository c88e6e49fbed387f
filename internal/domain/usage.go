package domain

import "time"

// Usage is consumption in the current billing period. It is always derived
// from the site and post collections, never stored as the source of truth.
type Usage struct {
	PostsThisPeriod int64     `json:"postsThisPeriod"`
	SitesCreated    int64     `json:"sitesCreated"`
	PeriodStart     time.Time `json:"periodStart"`
	PeriodEnd       time.Time `json:"periodEnd"`
}

// Value returns the usage counter compared against key. Limits that are not
// counters (upload size, video length) report 0.
func (u Usage) Value(key LimitKey) int64 {
	switch key {
	case LimitMaxSites:
		return u.SitesCreated
	case LimitMaxPostsPerMonth:
		return u.PostsThisPeriod
	default:
		return 0
	}
}

// BillingPeriodBounds returns the calendar month containing t, in UTC.
func BillingPeriodBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}
