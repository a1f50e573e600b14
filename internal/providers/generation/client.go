package generation

import (
	"context"

	"orchestrator/internal/domain"
)

// Result is the normalized output of a generation call.
type Result struct {
	ResourceURL string         `json:"resource_url"`
	Format      string         `json:"format"`
	Data        []byte         `json:"-"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Client performs the actual media generation for a job. Implementations
// must be independently callable per job with no shared state between calls.
type Client interface {
	Generate(ctx context.Context, kind domain.JobKind, payload domain.JobPayload) (*Result, error)
}
