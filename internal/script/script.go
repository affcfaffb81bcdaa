package script

import (
	"encoding/json"
	"fmt"
	"os"
)

// Segment is one titled block of episode text (intro, story, outro).
// Segments are produced upstream and consumed read-only.
type Segment struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Load reads an episode script file: a JSON array of segments in
// playback order.
func Load(path string) ([]Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script file: %w", err)
	}
	var segments []Segment
	if err := json.Unmarshal(data, &segments); err != nil {
		return nil, fmt.Errorf("parse script file: %w", err)
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("script file %s contains no segments", path)
	}
	return segments, nil
}
