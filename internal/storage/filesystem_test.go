package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"orchestrator/internal/domain"
)

func TestFileStoreWriteRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	key, err := store.Write(ctx, "generated/job-1/asset.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if key != "generated/job-1/asset.png" {
		t.Fatalf("Write() key = %q", key)
	}

	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(data, []byte("png-bytes")) {
		t.Fatalf("Read() = %q, want original bytes", data)
	}

	if _, err := store.Read(ctx, "generated/missing/asset.png"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Read(missing) error = %v, want ErrNotFound", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ctx := context.Background()

	bad := []string{"", "../escape", "a/../../escape", "..\\escape"}
	for _, key := range bad {
		if _, err := store.Write(ctx, key, []byte("x")); err == nil {
			t.Fatalf("Write(%q) accepted a traversal key", key)
		}
	}

	// leading slashes and dot segments are normalized, not rejected
	key, err := store.Write(ctx, "/cleaned/./asset.bin", []byte("x"))
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if key != "cleaned/asset.bin" {
		t.Fatalf("normalized key = %q, want cleaned/asset.bin", key)
	}
}

func TestAssetKey(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"image/png", "generated/job-9/asset.png"},
		{"image/jpeg", "generated/job-9/asset.jpg"},
		{"video/mp4", "generated/job-9/asset.mp4"},
		{"audio/mpeg", "generated/job-9/asset.mp3"},
		{"application/x-mystery", "generated/job-9/asset.bin"},
	}
	for _, tc := range tests {
		if got := AssetKey("job-9", tc.format); got != tc.want {
			t.Fatalf("AssetKey(%q) = %q, want %q", tc.format, got, tc.want)
		}
	}
}
