package domain

import "time"

// CharacterProfile is a content-generating persona the director ranks and
// schedules work for. Created once at roster initialization; only the
// performance score changes afterwards.
type CharacterProfile struct {
	ID               string    `json:"id"`
	Code             string    `json:"code"`
	Ethnicity        string    `json:"ethnicity"`
	BaseAge          int       `json:"base_age"`
	AestheticType    string    `json:"aesthetic_type"`
	Variant          string    `json:"variant"`
	IsActive         bool      `json:"is_active"`
	PerformanceScore float64   `json:"performance_score"`
	CreatedAt        time.Time `json:"created_at"`
}
