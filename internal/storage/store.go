package storage

import (
	"context"
	"fmt"
	"strings"
)

// ObjectStore persists generated media bytes under a storage key. Queue
// workers write here when a generation result carries inline data; the
// download surface reads assets back by key.
type ObjectStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Read(ctx context.Context, key string) ([]byte, error)
}

// AssetKey builds the canonical storage key for a job's generated asset.
func AssetKey(jobID, format string) string {
	ext := extensionForFormat(format)
	return fmt.Sprintf("generated/%s/asset%s", jobID, ext)
}

func extensionForFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "video/mp4":
		return ".mp4"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	default:
		return ".bin"
	}
}
