package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"orchestrator/internal/domain"
)

// Builder produces generation prompts and captions for character/trend
// pairings. Deterministic: the same inputs always yield the same text, so
// the director's plan output is reproducible.
type Builder struct {
	caser cases.Caser
}

// NewBuilder constructs a prompt builder.
func NewBuilder() *Builder {
	return &Builder{caser: cases.Title(language.Und)}
}

// Build renders the primary generation prompt for a character and trend.
func (b *Builder) Build(character domain.CharacterProfile, trend domain.TrendRecord, aesthetic string) string {
	subject := fmt.Sprintf("%s persona, age %d", character.Ethnicity, character.BaseAge)
	theme := b.caser.String(trend.Title)
	style := aesthetic
	if style == "" {
		style = character.AestheticType
	}
	return fmt.Sprintf("Create %s content featuring a %s around the %q theme, optimized for short-form social video", style, subject, theme)
}

// Caption renders a post caption with title-cased trend keywords appended
// as hashtags.
func (b *Builder) Caption(prompt string, keywords []string) string {
	if len(keywords) == 0 {
		return prompt
	}
	tags := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		tags = append(tags, "#"+strings.ReplaceAll(b.caser.String(kw), " ", ""))
	}
	return strings.TrimSpace(prompt + " " + strings.Join(tags, " "))
}
