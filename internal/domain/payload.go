package domain

// JobPayload is a tagged union keyed by JobKind: exactly one member matching
// the job's kind must be set. The queue treats it as opaque; only the
// generation client and validation look inside.
type JobPayload struct {
	Image     *ImagePayload     `json:"image,omitempty"`
	Video     *VideoPayload     `json:"video,omitempty"`
	Voiceover *VoiceoverPayload `json:"voiceover,omitempty"`
	Batch     *BatchPayload     `json:"batch,omitempty"`
	Plan      *PlanPayload      `json:"plan,omitempty"`
}

// ImagePayload carries parameters for a single image generation.
type ImagePayload struct {
	CharacterID string `json:"character_id"`
	Prompt      string `json:"prompt"`
	Aesthetic   string `json:"aesthetic,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// VideoPayload carries parameters for a single video generation.
type VideoPayload struct {
	CharacterID string `json:"character_id"`
	Prompt      string `json:"prompt"`
	Aesthetic   string `json:"aesthetic,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

// VoiceoverPayload carries parameters for speech synthesis.
type VoiceoverPayload struct {
	CharacterID string `json:"character_id"`
	Text        string `json:"text"`
	Voice       string `json:"voice,omitempty"`
}

// BatchPayload describes a batch expansion request: every prompt is
// generated for every character, sharing one batch id.
type BatchPayload struct {
	CharacterIDs []string `json:"character_ids"`
	Prompts      []string `json:"prompts"`
	ContentType  string   `json:"content_type"`
}

// PlanPayload links a queued job back to the director plan that produced it.
type PlanPayload struct {
	PlanID      string   `json:"plan_id"`
	CharacterID string   `json:"character_id"`
	ContentType string   `json:"content_type"`
	Aesthetic   string   `json:"aesthetic"`
	Prompt      string   `json:"prompt"`
	Caption     string   `json:"caption,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Validate checks that the payload member matching the kind is present and
// carries its required fields.
func (p JobPayload) Validate(kind JobKind) error {
	switch kind {
	case JobKindImageGeneration:
		if p.Image == nil || p.Image.Prompt == "" {
			return ErrValidation
		}
	case JobKindVideoGeneration:
		if p.Video == nil || p.Video.Prompt == "" {
			return ErrValidation
		}
	case JobKindVoiceoverGeneration:
		if p.Voiceover == nil || p.Voiceover.Text == "" {
			return ErrValidation
		}
	case JobKindBatchGeneration:
		if p.Batch == nil || len(p.Batch.CharacterIDs) == 0 || len(p.Batch.Prompts) == 0 {
			return ErrValidation
		}
	case JobKindDirectorPlan:
		if p.Plan == nil || p.Plan.Prompt == "" {
			return ErrValidation
		}
	default:
		return ErrValidation
	}
	return nil
}
