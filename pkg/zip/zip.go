package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Asset is one generated file destined for an archive.
type Asset struct {
	Filename string
	Data     []byte
}

// ArchiveAssets packs the assets into a single in-memory zip. Duplicate
// filenames are suffixed with an index so no entry is silently dropped.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(assets))
	for _, asset := range assets {
		name := asset.Filename
		if n := seen[name]; n > 0 {
			name = fmt.Sprintf("%d-%s", n, name)
		}
		seen[asset.Filename]++
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("zip: create entry %s: %w", name, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close archive: %w", err)
	}
	return buf.Bytes(), nil
}
