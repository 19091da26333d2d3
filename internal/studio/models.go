// Package studio holds the core editing state: the source video, the
// segment queue, session clips and their durable records, and the
// settings that govern cuts.
package studio

import (
	"time"

	"github.com/clipstudio/clipper-agent/internal/transcode"
)

// Segment statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusError      = "error"
)

// Segment sources.
const (
	SourceManual  = "manual"
	SourceChapter = "chapter"
)

// Segment is one queued cut request against the current source video.
type Segment struct {
	ID           int64   `json:"id"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Title        string  `json:"title"`
	Source       string  `json:"source"` // manual or chapter
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
	Progress     float64 `json:"progress"` // 0-100
}

// Clip is a session clip produced by a successful cut. It lives in
// memory; only its annotations are written through to the database.
type Clip struct {
	ID              string    `json:"id"` // "clip_1", "clip_2", ...
	Title           string    `json:"title"`
	SourceSegmentID int64     `json:"source_segment_id"`
	CreatedAt       time.Time `json:"created_at"`
	MediaPath       string    `json:"-"`
	MediaAvailable  bool      `json:"media_available"`

	Annotations Annotations `json:"annotations"`
}

// Annotations is the user-entered posting data attached to a clip.
// PostLinks maps a platform tag to the URL of the post on that platform.
type Annotations struct {
	PlatformsPosted []string          `json:"platforms_posted"`
	PostLinks       map[string]string `json:"post_links"`
	Metrics         Metrics           `json:"metrics"`
	PostingNotes    string            `json:"posting_notes"`
}

// Metrics holds per-clip performance counts entered by the user.
type Metrics struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

// PersistedClip is the durable record of a clip, written on annotation
// save and surviving restarts and backup round-trips. Timing fields are
// pointers because imported records may predate segment tracking.
type PersistedClip struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	OriginalVideoFile string    `json:"original_video_file"`
	SourceSegmentID   int64     `json:"source_segment_id"`
	CreatedAt         time.Time `json:"created_at"`
	StartSeconds      *float64  `json:"start_seconds,omitempty"`
	EndSeconds        *float64  `json:"end_seconds,omitempty"`

	PlatformsPosted []string          `json:"platforms_posted"`
	PostLinks       map[string]string `json:"post_links"`
	Metrics         Metrics           `json:"metrics"`
	PostingNotes    string            `json:"posting_notes"`
}

// DurationSeconds returns the clip length, or 0 when timing is unknown.
func (p PersistedClip) DurationSeconds() float64 {
	if p.StartSeconds == nil || p.EndSeconds == nil {
		return 0
	}
	d := *p.EndSeconds - *p.StartSeconds
	if d < 0 {
		return 0
	}
	return d
}

// Settings control how cuts are produced and how metadata is fetched.
type Settings struct {
	APIKey          string  `json:"api_key" validate:"omitempty"`
	DefaultDuration float64 `json:"default_duration" validate:"gt=0"`
	OutputFormat    string  `json:"output_format" validate:"required"`
	AddFade         bool    `json:"add_fade"`
	AudioOption     string  `json:"audio_option" validate:"required"`
}

// DefaultSettings returns the settings used before the user saves any.
func DefaultSettings() Settings {
	return Settings{
		DefaultDuration: 30,
		OutputFormat:    string(transcode.AspectVertical),
		AddFade:         true,
		AudioOption:     string(transcode.AudioKeep),
	}
}

// Validate checks settings field values beyond struct tags.
func (s Settings) Validate() error {
	if s.DefaultDuration <= 0 {
		return validationErr("default_duration must be positive")
	}
	if !transcode.ValidAspect(transcode.Aspect(s.OutputFormat)) {
		return validationErr("output_format must be one of 9:16, 1:1, 16:9, original")
	}
	if !transcode.ValidAudioMode(transcode.AudioMode(s.AudioOption)) {
		return validationErr("audio_option must be keep or remove")
	}
	return nil
}

// SourceVideo describes the currently loaded source file.
type SourceVideo struct {
	Path     string  `json:"-"`
	Name     string  `json:"name"`
	Duration float64 `json:"duration_seconds"`
}
