package generation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"orchestrator/internal/domain"
)

func imagePayload(prompt string) domain.JobPayload {
	return domain.JobPayload{Image: &domain.ImagePayload{CharacterID: "ID_01_A", Prompt: prompt}}
}

func TestSyntheticResultsAreDeterministic(t *testing.T) {
	client := NewHTTPClient(Options{}) // no API key -> synthetic mode
	ctx := context.Background()

	first, err := client.Generate(ctx, domain.JobKindImageGeneration, imagePayload("city at night"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	second, err := client.Generate(ctx, domain.JobKindImageGeneration, imagePayload("city at night"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if first.ResourceURL != second.ResourceURL {
		t.Fatalf("identical inputs produced %q and %q", first.ResourceURL, second.ResourceURL)
	}

	other, err := client.Generate(ctx, domain.JobKindImageGeneration, imagePayload("different prompt"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if other.ResourceURL == first.ResourceURL {
		t.Fatal("different prompts produced the same synthetic resource")
	}
}

func TestSyntheticFormatsByKind(t *testing.T) {
	client := NewHTTPClient(Options{})
	ctx := context.Background()

	tests := []struct {
		kind    domain.JobKind
		payload domain.JobPayload
		want    string
	}{
		{domain.JobKindImageGeneration, imagePayload("p"), "image/png"},
		{domain.JobKindVideoGeneration, domain.JobPayload{Video: &domain.VideoPayload{Prompt: "p"}}, "video/mp4"},
		{domain.JobKindVoiceoverGeneration, domain.JobPayload{Voiceover: &domain.VoiceoverPayload{Text: "hi"}}, "audio/mpeg"},
	}
	for _, tc := range tests {
		result, err := client.Generate(ctx, tc.kind, tc.payload)
		if err != nil {
			t.Fatalf("Generate(%s) error = %v", tc.kind, err)
		}
		if result.Format != tc.want {
			t.Fatalf("Generate(%s) format = %q, want %q", tc.kind, result.Format, tc.want)
		}
	}
}

func TestGenerateRejectsInvalidPayload(t *testing.T) {
	client := NewHTTPClient(Options{})
	if _, err := client.Generate(context.Background(), domain.JobKindImageGeneration, domain.JobPayload{}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Generate() error = %v, want ErrValidation", err)
	}
	if _, err := client.Generate(context.Background(), domain.JobKindBatchGeneration, domain.JobPayload{Batch: &domain.BatchPayload{CharacterIDs: []string{"a"}, Prompts: []string{"b"}}}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("batch kind error = %v, want ErrValidation (not generatable)", err)
	}
}

func TestGenerateAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/images" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resource_url":"https://cdn.example/a.png","format":"image/png"}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "test-key"})
	result, err := client.Generate(context.Background(), domain.JobKindImageGeneration, imagePayload("p"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.ResourceURL != "https://cdn.example/a.png" {
		t.Fatalf("resource url = %q", result.ResourceURL)
	}
}

func TestGenerateClassifiesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "test-key"})
	_, err := client.Generate(context.Background(), domain.JobKindImageGeneration, imagePayload("p"))
	if !errors.Is(err, domain.ErrProviderFailure) {
		t.Fatalf("Generate() error = %v, want ErrProviderFailure", err)
	}
	if !domain.IsRetryable(err) {
		t.Fatal("provider failure should be retryable")
	}
}

func TestGenerateClassifiesTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	client := NewHTTPClient(Options{BaseURL: srv.URL, APIKey: "test-key"})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, domain.JobKindImageGeneration, imagePayload("p"))
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("Generate() error = %v, want ErrTimeout", err)
	}
}

func TestRequestForRoutesDirectorPlans(t *testing.T) {
	imagePlan := domain.JobPayload{Plan: &domain.PlanPayload{Prompt: "p", ContentType: string(domain.ContentTypeImage)}}
	videoPlan := domain.JobPayload{Plan: &domain.PlanPayload{Prompt: "p", ContentType: string(domain.ContentTypeVideo)}}

	if path, _ := requestFor(domain.JobKindDirectorPlan, imagePlan); path != "/v1/images" {
		t.Fatalf("image plan path = %q, want /v1/images", path)
	}
	if path, _ := requestFor(domain.JobKindDirectorPlan, videoPlan); path != "/v1/videos" {
		t.Fatalf("video plan path = %q, want /v1/videos", path)
	}
}
