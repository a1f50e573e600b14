package generation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orchestrator/internal/domain"
	"orchestrator/internal/infra"
)

// Options controls how the HTTP generation client is configured.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// HTTPClient calls the external media generation API. When no API key is
// configured it falls back to deterministic synthetic results so the queue
// stays fully operational in local and CI environments.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewHTTPClient constructs a generation client.
func NewHTTPClient(opts Options) *HTTPClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Minute}
	}
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.generation.local"
	}
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		logger:     opts.Logger,
	}
}

// Generate produces media for the given kind and payload.
func (c *HTTPClient) Generate(ctx context.Context, kind domain.JobKind, payload domain.JobPayload) (*Result, error) {
	if err := payload.Validate(kind); err != nil {
		return nil, err
	}
	path, body := requestFor(kind, payload)
	if path == "" {
		return nil, fmt.Errorf("%w: kind %q is not generatable", domain.ErrValidation, kind)
	}
	if c.apiKey == "" {
		return c.synthetic(kind, body), nil
	}
	return c.invoke(ctx, path, body)
}

func requestFor(kind domain.JobKind, payload domain.JobPayload) (string, map[string]any) {
	switch kind {
	case domain.JobKindImageGeneration:
		return "/v1/images", map[string]any{
			"prompt":       payload.Image.Prompt,
			"character_id": payload.Image.CharacterID,
			"aesthetic":    payload.Image.Aesthetic,
			"aspect_ratio": payload.Image.AspectRatio,
		}
	case domain.JobKindVideoGeneration:
		return "/v1/videos", map[string]any{
			"prompt":       payload.Video.Prompt,
			"character_id": payload.Video.CharacterID,
			"aesthetic":    payload.Video.Aesthetic,
			"duration_sec": payload.Video.DurationSec,
		}
	case domain.JobKindVoiceoverGeneration:
		return "/v1/voiceovers", map[string]any{
			"text":         payload.Voiceover.Text,
			"character_id": payload.Voiceover.CharacterID,
			"voice":        payload.Voiceover.Voice,
		}
	case domain.JobKindDirectorPlan:
		path := "/v1/images"
		if payload.Plan.ContentType == string(domain.ContentTypeVideo) {
			path = "/v1/videos"
		}
		return path, map[string]any{
			"prompt":       payload.Plan.Prompt,
			"character_id": payload.Plan.CharacterID,
			"aesthetic":    payload.Plan.Aesthetic,
			"caption":      payload.Plan.Caption,
			"keywords":     payload.Plan.Keywords,
		}
	}
	return "", nil
}

func (c *HTTPClient) invoke(ctx context.Context, path string, body map[string]any) (*Result, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrProviderFailure, resp.StatusCode, truncate(raw, 256))
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrProviderFailure, err)
	}
	return &result, nil
}

func (c *HTTPClient) synthetic(kind domain.JobKind, body map[string]any) *Result {
	seed := deterministicSeed(string(kind), body)
	format := "image/png"
	switch kind {
	case domain.JobKindVideoGeneration:
		format = "video/mp4"
	case domain.JobKindVoiceoverGeneration:
		format = "audio/mpeg"
	}
	if c.logger != nil {
		c.logger.Debug().Str("kind", string(kind)).Str("seed", seed).Msg("generation: synthetic result")
	}
	return &Result{
		ResourceURL: fmt.Sprintf("synthetic://%s/%s", kind, seed),
		Format:      format,
		Meta:        map[string]any{"synthetic": true, "seed": seed},
	}
}

func deterministicSeed(parts ...any) string {
	h := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(h, "%v|", part)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ Client = (*HTTPClient)(nil)
