package director

import (
	"time"

	"orchestrator/internal/domain"
)

type rosterSeed struct {
	code      string
	ethnicity string
	baseAge   int
	variant   string
	aesthetic string
}

// The 18-character launch roster: three age bands per ethnicity, three
// variants per band alternating aesthetics.
var rosterSeeds = []rosterSeed{
	{"ID_01_A", "korean", 18, "A", "cinematic"},
	{"ID_01_B", "korean", 18, "B", "influencer"},
	{"ID_01_C", "korean", 18, "C", "cinematic"},
	{"ID_02_A", "korean", 25, "A", "influencer"},
	{"ID_02_B", "korean", 25, "B", "cinematic"},
	{"ID_02_C", "korean", 25, "C", "influencer"},
	{"ID_03_A", "korean", 35, "A", "cinematic"},
	{"ID_03_B", "korean", 35, "B", "influencer"},
	{"ID_03_C", "korean", 35, "C", "cinematic"},
	{"ID_04_A", "japanese", 18, "A", "cinematic"},
	{"ID_04_B", "japanese", 18, "B", "influencer"},
	{"ID_04_C", "japanese", 18, "C", "cinematic"},
	{"ID_05_A", "japanese", 25, "A", "influencer"},
	{"ID_05_B", "japanese", 25, "B", "cinematic"},
	{"ID_05_C", "japanese", 25, "C", "influencer"},
	{"ID_06_A", "chinese", 18, "A", "cinematic"},
	{"ID_06_B", "chinese", 18, "B", "influencer"},
	{"ID_06_C", "chinese", 18, "C", "cinematic"},
}

// DefaultRoster returns the initial character roster. Character ids equal
// their codes so plan references stay readable.
func DefaultRoster(now time.Time) []domain.CharacterProfile {
	roster := make([]domain.CharacterProfile, 0, len(rosterSeeds))
	for _, seed := range rosterSeeds {
		roster = append(roster, domain.CharacterProfile{
			ID:            seed.code,
			Code:          seed.code,
			Ethnicity:     seed.ethnicity,
			BaseAge:       seed.baseAge,
			AestheticType: seed.aesthetic,
			Variant:       seed.variant,
			IsActive:      true,
			CreatedAt:     now,
		})
	}
	return roster
}
