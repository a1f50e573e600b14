package domain

import "time"

// ContentType enumerates what a plan asks to be generated.
type ContentType string

const (
	ContentTypeImage ContentType = "image"
	ContentTypeVideo ContentType = "video"
)

// GenerationPlan is an immutable recommendation emitted by the director.
// Plans are never mutated after emission, only superseded by the next run.
type GenerationPlan struct {
	ID                   string      `json:"id"`
	CharacterID          string      `json:"character_id"`
	ContentType          ContentType `json:"content_type"`
	Aesthetic            string      `json:"aesthetic"`
	Prompt               string      `json:"prompt"`
	Caption              string      `json:"caption"`
	Priority             int         `json:"priority"`
	Reasoning            string      `json:"reasoning"`
	TrendKeywords        []string    `json:"trend_keywords"`
	OptimalPostingTime   time.Time   `json:"optimal_posting_time"`
	EstimatedPerformance int         `json:"estimated_performance"`
}

// CharacterRanking is one row of the director's performance snapshot.
type CharacterRanking struct {
	CharacterID string  `json:"character_id"`
	Score       float64 `json:"score"`
	Reasoning   string  `json:"reasoning"`
}

// DirectorStateID is the fixed id of the single current director state row.
const DirectorStateID = "director-main"

// DirectorState is the upserted snapshot of the director's last run. There
// is exactly one current state at a time.
type DirectorState struct {
	ID           string             `json:"id"`
	Rankings     []CharacterRanking `json:"rankings"`
	Plans        []GenerationPlan   `json:"plans"`
	LastAnalysis time.Time          `json:"last_analysis"`
}
