package social

import (
	"bytes"
	"context"
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

// PostReceipt is the platform's acknowledgement of a published entry.
type PostReceipt struct {
	ExternalID string    `json:"external_id"`
	PostedAt   time.Time `json:"posted_at"`
}

// Publisher posts a schedule entry to the social platform.
type Publisher interface {
	Post(ctx context.Context, entry *domain.ScheduleEntry) (*PostReceipt, error)
}

// Options controls how the TikTok publisher is configured. Token acquisition
// is out of scope; the access token is handed in ready to use.
type Options struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
	Logger      *infra.Logger
}

// TikTokPublisher is a thin wrapper over the platform publish API.
type TikTokPublisher struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *infra.Logger
}

// NewTikTokPublisher constructs a publisher. Without an access token it
// acknowledges posts synthetically, mirroring the generation client's
// local-mode behavior.
func NewTikTokPublisher(opts Options) *TikTokPublisher {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://open-api.tiktok.com"
	}
	return &TikTokPublisher{
		baseURL:     baseURL,
		accessToken: opts.AccessToken,
		httpClient:  httpClient,
		logger:      opts.Logger,
	}
}

// Post publishes a schedule entry.
func (p *TikTokPublisher) Post(ctx context.Context, entry *domain.ScheduleEntry) (*PostReceipt, error) {
	if entry == nil || entry.Title == "" {
		return nil, fmt.Errorf("%w: entry title is required", domain.ErrValidation)
	}
	if p.accessToken == "" {
		if p.logger != nil {
			p.logger.Debug().Str("entry_id", entry.ID).Msg("social: synthetic post")
		}
		return &PostReceipt{ExternalID: "synthetic-" + entry.ID, PostedAt: time.Now().UTC()}, nil
	}

	body, err := json.Marshal(map[string]any{
		"text":     entry.Title,
		"entry_id": entry.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal publish request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v2/video/publish/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrProviderFailure, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderFailure, resp.StatusCode)
	}

	var payload struct {
		Data struct {
			PostID string `json:"post_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrProviderFailure, err)
	}
	return &PostReceipt{ExternalID: payload.Data.PostID, PostedAt: time.Now().UTC()}, nil
}

var _ Publisher = (*TikTokPublisher)(nil)
