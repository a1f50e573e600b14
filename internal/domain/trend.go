package domain

import "time"

// TrendRecord is a time-bounded external popularity signal. Records past
// their expiry are excluded from ranking.
type TrendRecord struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Popularity  float64   `json:"popularity"` // 0-100
	IsActive    bool      `json:"is_active"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Expired reports whether the trend is past its expiry at the given time.
func (t TrendRecord) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && t.ExpiresAt.Before(now)
}

// PerformanceSnapshot is a read-only engagement measurement for one piece
// of published content, keyed by character.
type PerformanceSnapshot struct {
	ID             string    `json:"id"`
	CharacterID    string    `json:"character_id"`
	TrendID        string    `json:"trend_id,omitempty"`
	ContentType    string    `json:"content_type"`
	Aesthetic      string    `json:"aesthetic"`
	EngagementRate float64   `json:"engagement_rate"`
	Views          int64     `json:"views"`
	CreatedAt      time.Time `json:"created_at"`
}
