// Package chapters models podcast chapter markers and writes the
// Podcasting 2.0 chapters JSON sidecar consumed by podcast players.
package chapters

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Marker delimits one segment's audio within the final file.
type Marker struct {
	Title     string  `json:"title"`
	StartTime float64 `json:"startTime"`
}

type chapterFile struct {
	Version  string   `json:"version"`
	Chapters []Marker `json:"chapters"`
}

// WriteFile serializes markers to the chapters JSON format
// (version 1.2.0) next to the audio artifact. The file is staged and
// renamed so a failed write leaves nothing behind.
func WriteFile(markers []Marker, path string) error {
	payload := chapterFile{Version: "1.2.0", Chapters: markers}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chapters: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prepare chapters dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".castforge-chapters-*")
	if err != nil {
		return fmt.Errorf("stage chapters file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write chapters file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("flush chapters file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish chapters file: %w", err)
	}
	return nil
}
