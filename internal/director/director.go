package director

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
	"orchestrator/internal/providers/prompt"
)

// Config tunes the decision engine.
type Config struct {
	TopCharacters      int
	TopTrends          int
	LookbackDays       int
	RelevanceThreshold float64
	PlansPerCharacter  int
	PlanningCharacters int
	Interval           time.Duration
	PlanPriority       int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TopCharacters:      6,
		TopTrends:          10,
		LookbackDays:       7,
		RelevanceThreshold: 0.3,
		PlansPerCharacter:  3,
		PlanningCharacters: 3,
		Interval:           2 * time.Hour,
		PlanPriority:       5,
	}
}

// Submitter is the slice of the job queue the engine needs to turn plans
// into work.
type Submitter interface {
	Submit(ctx context.Context, kind domain.JobKind, payload domain.JobPayload, priority int) (string, error)
}

// Engine ranks characters against trend and performance signals and emits
// a prioritized, time-spread production plan.
type Engine struct {
	characters domain.CharacterRepository
	trends     domain.TrendRepository
	analytics  domain.AnalyticsRepository
	state      domain.DirectorStateRepository
	prompts    *prompt.Builder
	cfg        Config
	logger     infra.Logger

	lastAnalysis time.Time
	now          func() time.Time
}

// New constructs a decision engine.
func New(
	characters domain.CharacterRepository,
	trends domain.TrendRepository,
	analytics domain.AnalyticsRepository,
	state domain.DirectorStateRepository,
	cfg Config,
	logger infra.Logger,
) *Engine {
	defaults := DefaultConfig()
	if cfg.TopCharacters <= 0 {
		cfg.TopCharacters = defaults.TopCharacters
	}
	if cfg.TopTrends <= 0 {
		cfg.TopTrends = defaults.TopTrends
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = defaults.LookbackDays
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = defaults.RelevanceThreshold
	}
	if cfg.PlansPerCharacter <= 0 {
		cfg.PlansPerCharacter = defaults.PlansPerCharacter
	}
	if cfg.PlanningCharacters <= 0 {
		cfg.PlanningCharacters = defaults.PlanningCharacters
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.PlanPriority <= 0 {
		cfg.PlanPriority = defaults.PlanPriority
	}
	return &Engine{
		characters: characters,
		trends:     trends,
		analytics:  analytics,
		state:      state,
		prompts:    prompt.NewBuilder(),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// GeneratePlan runs the full decision pipeline and persists the resulting
// director state. It never returns an empty plan: any signal failure
// degrades to the static fallback plan so generation does not silently
// halt.
func (e *Engine) GeneratePlan(ctx context.Context) ([]domain.GenerationPlan, error) {
	now := e.now().UTC()

	characters, err := e.characters.ListActiveTop(ctx, e.cfg.TopCharacters)
	if err != nil {
		e.logger.Error().Err(err).Msg("director: character fetch failed, using fallback plan")
		return e.fallback(ctx, now), nil
	}
	if len(characters) == 0 {
		e.logger.Warn().Msg("director: no active characters, using fallback plan")
		return e.fallback(ctx, now), nil
	}

	trends, err := e.trends.ListActiveTop(ctx, now, e.cfg.TopTrends)
	if err != nil {
		e.logger.Error().Err(err).Msg("director: trend fetch failed, using fallback plan")
		return e.fallback(ctx, now), nil
	}

	since := now.AddDate(0, 0, -e.cfg.LookbackDays)
	snapshots, err := e.analytics.ListSince(ctx, since)
	if err != nil {
		e.logger.Error().Err(err).Msg("director: analytics fetch failed, using fallback plan")
		return e.fallback(ctx, now), nil
	}

	ranked := e.analyzePerformance(characters, snapshots)
	e.persistScores(ctx, ranked)
	plans := e.buildPlans(ranked, trends, now)
	if len(plans) == 0 {
		plans = []domain.GenerationPlan{e.fallbackPlan(ranked[0].character, now)}
	}
	plans = spreadPostingTimes(plans)

	if err := e.saveState(ctx, ranked, plans, now); err != nil {
		e.logger.Error().Err(err).Msg("director: persist state failed")
	}
	e.lastAnalysis = now
	e.logger.Info().Int("plans", len(plans)).Msg("director: plan generated")
	return plans, nil
}

// analyzePerformance computes per-character performance signals and sorts
// by performance score descending.
func (e *Engine) analyzePerformance(characters []domain.CharacterProfile, snapshots []domain.PerformanceSnapshot) []characterPerformance {
	byCharacter := map[string][]domain.PerformanceSnapshot{}
	for _, s := range snapshots {
		byCharacter[s.CharacterID] = append(byCharacter[s.CharacterID], s)
	}

	ranked := make([]characterPerformance, 0, len(characters))
	for _, c := range characters {
		window := byCharacter[c.ID]
		ranked = append(ranked, characterPerformance{
			character:      c,
			score:          refreshScore(c.PerformanceScore, window),
			contentCount:   len(window),
			avgEngagement:  averageEngagement(window),
			bestAesthetic:  aestheticAffinity(c, window),
			bestContent:    contentTypeAffinity(window),
			trendAlignment: trendAlignment(window),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}

// persistScores writes refreshed cumulative scores back to storage so the
// next ListActiveTop ranks on current engagement. Best-effort: a write
// failure only costs staleness, never a planning cycle.
func (e *Engine) persistScores(ctx context.Context, ranked []characterPerformance) {
	for _, perf := range ranked {
		if perf.contentCount == 0 {
			continue
		}
		if err := e.characters.UpdatePerformanceScore(ctx, perf.character.ID, perf.score); err != nil {
			e.logger.Warn().Err(err).Str("character_id", perf.character.ID).Msg("director: score refresh failed")
		}
	}
}

// buildPlans emits up to PlansPerCharacter plans for each of the top
// planning characters, drawn from their most relevant trends.
func (e *Engine) buildPlans(ranked []characterPerformance, trends []domain.TrendRecord, now time.Time) []domain.GenerationPlan {
	planners := ranked
	if len(planners) > e.cfg.PlanningCharacters {
		planners = planners[:e.cfg.PlanningCharacters]
	}

	var plans []domain.GenerationPlan
	for _, perf := range planners {
		matches := e.matchTrends(perf.character, trends, now)
		count := len(matches)
		if count > e.cfg.PlansPerCharacter {
			count = e.cfg.PlansPerCharacter
		}
		for i := 0; i < count; i++ {
			plans = append(plans, e.buildPlan(perf, matches[i], now))
		}
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].Priority > plans[j].Priority
	})
	return plans
}

type trendMatch struct {
	trend     domain.TrendRecord
	relevance float64
}

// matchTrends scores every trend for the character and keeps those above
// the relevance threshold, most relevant first.
func (e *Engine) matchTrends(character domain.CharacterProfile, trends []domain.TrendRecord, now time.Time) []trendMatch {
	var matches []trendMatch
	for _, t := range trends {
		score := relevance(character, t, now)
		if score > e.cfg.RelevanceThreshold {
			matches = append(matches, trendMatch{trend: t, relevance: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].relevance > matches[j].relevance
	})
	return matches
}

func (e *Engine) buildPlan(perf characterPerformance, match trendMatch, now time.Time) domain.GenerationPlan {
	priority := int(math.Round(match.relevance * 100))
	estimated := int(math.Round(perf.score * match.relevance))
	if estimated > 100 {
		estimated = 100
	}
	keywords := []string{match.trend.Title, match.trend.Type}
	return domain.GenerationPlan{
		ID:                   uuid.NewString(),
		CharacterID:          perf.character.ID,
		ContentType:          perf.bestContent,
		Aesthetic:            perf.bestAesthetic,
		Prompt:               e.prompts.Build(perf.character, match.trend, perf.bestAesthetic),
		Caption:              e.prompts.Caption(match.trend.Title, keywords),
		Priority:             priority,
		Reasoning:            fmt.Sprintf("High relevance (%d%%) to %s trend", priority, match.trend.Title),
		TrendKeywords:        keywords,
		OptimalPostingTime:   optimalPostingTime(perf.character, now),
		EstimatedPerformance: estimated,
	}
}

// fallback persists and returns the single static fallback plan.
func (e *Engine) fallback(ctx context.Context, now time.Time) []domain.GenerationPlan {
	character := domain.CharacterProfile{
		ID:            "ID_01_A",
		AestheticType: "cinematic",
		BaseAge:       24,
	}
	if top, err := e.characters.ListActiveTop(ctx, 1); err == nil && len(top) > 0 {
		character = top[0]
	}
	plans := []domain.GenerationPlan{e.fallbackPlan(character, now)}
	if err := e.saveState(ctx, nil, plans, now); err != nil {
		e.logger.Error().Err(err).Msg("director: persist fallback state failed")
	}
	e.lastAnalysis = now
	return plans
}

func (e *Engine) fallbackPlan(character domain.CharacterProfile, now time.Time) domain.GenerationPlan {
	aesthetic := character.AestheticType
	if aesthetic == "" {
		aesthetic = "cinematic"
	}
	keywords := []string{"luxury", "lifestyle"}
	return domain.GenerationPlan{
		ID:                   uuid.NewString(),
		CharacterID:          character.ID,
		ContentType:          domain.ContentTypeVideo,
		Aesthetic:            aesthetic,
		Prompt:               "Create cinematic luxury lifestyle content",
		Caption:              e.prompts.Caption("Luxury lifestyle", keywords),
		Priority:             80,
		Reasoning:            "Fallback plan - top performer",
		TrendKeywords:        keywords,
		OptimalPostingTime:   optimalPostingTime(character, now),
		EstimatedPerformance: 75,
	}
}

func (e *Engine) saveState(ctx context.Context, ranked []characterPerformance, plans []domain.GenerationPlan, now time.Time) error {
	rankings := make([]domain.CharacterRanking, 0, len(ranked))
	for _, perf := range ranked {
		reasoning := "Steady performer"
		if perf.trendAlignment > 0.7 {
			reasoning = "High trend alignment"
		}
		rankings = append(rankings, domain.CharacterRanking{
			CharacterID: perf.character.ID,
			Score:       perf.score,
			Reasoning:   reasoning,
		})
	}
	return e.state.Upsert(ctx, &domain.DirectorState{
		ID:           domain.DirectorStateID,
		Rankings:     rankings,
		Plans:        plans,
		LastAnalysis: now,
	})
}

// SubmitPlans turns plans into director_plan jobs. Submission is
// best-effort: a failed submission is logged and the remaining plans still
// go through.
func (e *Engine) SubmitPlans(ctx context.Context, submitter Submitter, plans []domain.GenerationPlan) int {
	submitted := 0
	for _, plan := range plans {
		payload := domain.JobPayload{Plan: &domain.PlanPayload{
			PlanID:      plan.ID,
			CharacterID: plan.CharacterID,
			ContentType: string(plan.ContentType),
			Aesthetic:   plan.Aesthetic,
			Prompt:      plan.Prompt,
			Caption:     plan.Caption,
			Keywords:    plan.TrendKeywords,
		}}
		if _, err := submitter.Submit(ctx, domain.JobKindDirectorPlan, payload, e.cfg.PlanPriority); err != nil {
			e.logger.Error().Err(err).Str("plan_id", plan.ID).Msg("director: submit plan failed")
			continue
		}
		submitted++
	}
	return submitted
}

// ShouldRun reports whether enough time has passed since the last analysis.
func (e *Engine) ShouldRun() bool {
	if e.lastAnalysis.IsZero() {
		return true
	}
	return e.now().Sub(e.lastAnalysis) > e.cfg.Interval
}

// Run drives the periodic plan-and-submit loop until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, submitter Submitter) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	e.logger.Info().Dur("interval", e.cfg.Interval).Msg("director: loop started")
	for {
		if e.ShouldRun() {
			plans, err := e.GeneratePlan(ctx)
			if err != nil {
				e.logger.Error().Err(err).Msg("director: plan generation failed")
			} else {
				e.SubmitPlans(ctx, submitter, plans)
			}
		}
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("director: loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
