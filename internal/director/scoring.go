package director

import (
	"strings"
	"time"

	"orchestrator/internal/domain"
)

// characterPerformance is the per-character analysis the plan pipeline
// works from.
type characterPerformance struct {
	character      domain.CharacterProfile
	score          float64
	contentCount   int
	avgEngagement  float64
	bestAesthetic  string
	bestContent    domain.ContentType
	trendAlignment float64
}

// trendAlignment scores how well a character's recent engagement aligns
// with current momentum: rising engagement scores high, falling low.
// Pure function of the snapshot window, clamped to [0,1]; no data is
// neutral 0.5.
func trendAlignment(snapshots []domain.PerformanceSnapshot) float64 {
	if len(snapshots) == 0 {
		return 0.5
	}
	if len(snapshots) == 1 {
		return clamp01(0.5 + snapshots[0].EngagementRate/200)
	}

	// Compare the newer half of the window against the older half.
	mid := len(snapshots) / 2
	older := averageEngagement(snapshots[:mid])
	newer := averageEngagement(snapshots[mid:])

	alignment := 0.5
	switch {
	case older == 0 && newer > 0:
		alignment = 0.75
	case older > 0:
		// Relative delta mapped so +50% engagement -> 1.0, -50% -> 0.0.
		alignment = 0.5 + (newer-older)/older
	}
	return clamp01(alignment)
}

// relevance scores a trend for a character from demographic/aesthetic
// compatibility and popularity. An inactive, expired or zero-popularity
// trend always scores 0. Clamped to [0,1].
func relevance(character domain.CharacterProfile, trend domain.TrendRecord, now time.Time) float64 {
	if !trend.IsActive || trend.Expired(now) || trend.Popularity <= 0 {
		return 0
	}

	score := trend.Popularity / 100 * 0.6
	if strings.EqualFold(trend.Type, character.AestheticType) {
		score += 0.3
	}
	// Younger demographics align with fast-moving trend formats.
	if character.BaseAge <= 21 {
		score += 0.1
	}
	return clamp01(score)
}

// aestheticAffinity finds the aesthetic tag with the highest average
// engagement in the snapshot window, falling back to the character's own
// aesthetic type when there is no history.
func aestheticAffinity(character domain.CharacterProfile, snapshots []domain.PerformanceSnapshot) string {
	totals := map[string]float64{}
	counts := map[string]int{}
	for _, s := range snapshots {
		if s.Aesthetic == "" {
			continue
		}
		totals[s.Aesthetic] += s.EngagementRate
		counts[s.Aesthetic]++
	}
	best := ""
	bestAvg := -1.0
	for aesthetic, total := range totals {
		avg := total / float64(counts[aesthetic])
		if avg > bestAvg || (avg == bestAvg && aesthetic < best) {
			best = aesthetic
			bestAvg = avg
		}
	}
	if best == "" {
		if character.AestheticType != "" {
			return character.AestheticType
		}
		return "cinematic"
	}
	return best
}

// contentTypeAffinity picks the content type with the higher average
// engagement, defaulting to video when history is absent or tied.
func contentTypeAffinity(snapshots []domain.PerformanceSnapshot) domain.ContentType {
	var imageTotal, videoTotal float64
	var imageCount, videoCount int
	for _, s := range snapshots {
		switch domain.ContentType(s.ContentType) {
		case domain.ContentTypeImage:
			imageTotal += s.EngagementRate
			imageCount++
		case domain.ContentTypeVideo:
			videoTotal += s.EngagementRate
			videoCount++
		}
	}
	if imageCount == 0 {
		return domain.ContentTypeVideo
	}
	imageAvg := imageTotal / float64(imageCount)
	videoAvg := 0.0
	if videoCount > 0 {
		videoAvg = videoTotal / float64(videoCount)
	}
	if imageAvg > videoAvg {
		return domain.ContentTypeImage
	}
	return domain.ContentTypeVideo
}

// refreshScore folds the lookback window into a character's cumulative
// score on the 0-100 scale: a 10% average engagement rate counts as a
// perfect window. No history leaves the stored score untouched.
func refreshScore(stored float64, snapshots []domain.PerformanceSnapshot) float64 {
	if len(snapshots) == 0 {
		return stored
	}
	windowScore := averageEngagement(snapshots) * 10
	if windowScore > 100 {
		windowScore = 100
	}
	return 0.7*stored + 0.3*windowScore
}

func averageEngagement(snapshots []domain.PerformanceSnapshot) float64 {
	if len(snapshots) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range snapshots {
		total += s.EngagementRate
	}
	return total / float64(len(snapshots))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
