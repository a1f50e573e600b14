package director

import (
	"sort"
	"time"

	"orchestrator/internal/domain"
)

// optimalHour derives a character's posting hour from its demographic
// attributes. Korean-audience personas skew one hour later; younger
// audiences are active later in the evening, older ones earlier.
func optimalHour(character domain.CharacterProfile) int {
	hour := 19
	if character.Ethnicity == "korean" {
		hour = 20
	}
	switch {
	case character.BaseAge <= 18:
		hour++
	case character.BaseAge >= 35:
		hour--
	}
	return hour
}

// optimalPostingTime places the character's optimal hour on the next
// occurrence relative to now (today, or tomorrow when already past).
func optimalPostingTime(character domain.CharacterProfile, now time.Time) time.Time {
	hour := optimalHour(character)
	posting := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !posting.After(now) {
		posting = posting.AddDate(0, 0, 1)
	}
	return posting
}

// postingShift spaces colliding plans apart.
const postingShift = 2 * time.Hour

// spreadPostingTimes resolves hour-of-day collisions deterministically:
// plans are processed in (priority desc, time asc) order, and any plan
// landing on an hour already taken is shifted forward until it finds a
// free one.
func spreadPostingTimes(plans []domain.GenerationPlan) []domain.GenerationPlan {
	sort.SliceStable(plans, func(i, j int) bool {
		if plans[i].Priority != plans[j].Priority {
			return plans[i].Priority > plans[j].Priority
		}
		return plans[i].OptimalPostingTime.Before(plans[j].OptimalPostingTime)
	})

	used := map[int]bool{}
	for i := range plans {
		t := plans[i].OptimalPostingTime
		// A 2h shift only visits the 12 hours sharing t's parity, so
		// after one full cycle step by 1h to reach the rest.
		for shifts := 0; used[t.Hour()]; shifts++ {
			if shifts < 12 {
				t = t.Add(postingShift)
			} else {
				t = t.Add(time.Hour)
			}
		}
		used[t.Hour()] = true
		plans[i].OptimalPostingTime = t
	}
	return plans
}
