package chapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "episode_chapters.json")
	markers := []Marker{
		{Title: "Intro", StartTime: 0},
		{Title: "Story 1", StartTime: 10.0},
		{Title: "Outro", StartTime: 35.5},
	}
	if err := WriteFile(markers, path); err != nil {
		t.Fatalf("write chapters: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var decoded struct {
		Version  string   `json:"version"`
		Chapters []Marker `json:"chapters"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Version != "1.2.0" {
		t.Fatalf("unexpected version %q", decoded.Version)
	}
	if len(decoded.Chapters) != 3 || decoded.Chapters[2].StartTime != 35.5 {
		t.Fatalf("unexpected chapters: %+v", decoded.Chapters)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("staging file left behind: %d entries", len(entries))
	}
}
