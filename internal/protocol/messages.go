package protocol

import (
	"time"

	"github.com/castforge/castforge/internal/chapters"
	"github.com/castforge/castforge/internal/script"
)

// EpisodeRequest asks the daemon to render one episode from an ordered
// list of script segments.
type EpisodeRequest struct {
	RequestID string           `json:"request_id"`
	Name      string           `json:"name"`
	Segments  []script.Segment `json:"segments"`
}

// EpisodeProgress reports per-segment progress for a running render.
type EpisodeProgress struct {
	RequestID    string    `json:"request_id"`
	Stage        string    `json:"stage"`
	SegmentIndex int       `json:"segment_index"`
	SegmentTitle string    `json:"segment_title,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// EpisodeResult is the terminal message for one request: either the
// produced artifacts or an error string, never both.
type EpisodeResult struct {
	RequestID    string            `json:"request_id"`
	AudioPath    string            `json:"audio_path,omitempty"`
	ChaptersPath string            `json:"chapters_path,omitempty"`
	Duration     float64           `json:"duration_seconds,omitempty"`
	Chapters     []chapters.Marker `json:"chapters,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	Error        string            `json:"error,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

const (
	SubjectEpisodeRequest  = "episode.request"
	SubjectEpisodeProgress = "episode.progress"
	SubjectEpisodeResult   = "episode.result"

	StageAccepted = "accepted"
	StageSegment  = "segment"
	StageComplete = "complete"
	StageFailed   = "failed"
)
