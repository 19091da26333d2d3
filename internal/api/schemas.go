package api

import (
	"time"

	"github.com/clipstudio/clipper-agent/internal/studio"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State          string           `json:"state"` // idle, cutting, paused
	Source         *SourceResponse  `json:"source,omitempty"`
	SegmentsTotal  int              `json:"segments_total"`
	SegmentsDone   int              `json:"segments_done"`
	SegmentsFailed int              `json:"segments_failed"`
	ClipsCount     int              `json:"clips_count"`
	ActiveSegment  *SegmentResponse `json:"active_segment,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
}

type SourceResponse struct {
	Name            string  `json:"name"`
	DurationSeconds string  `json:"duration"` // HH:MM:SS
	DurationRaw     float64 `json:"duration_seconds"`
}

type SetSourceRequest struct {
	Path string `json:"path" validate:"required"`
}

type SettingsRequest struct {
	APIKey          string  `json:"api_key"`
	DefaultDuration float64 `json:"default_duration" validate:"required,gt=0"`
	OutputFormat    string  `json:"output_format" validate:"required"`
	AddFade         bool    `json:"add_fade"`
	AudioOption     string  `json:"audio_option" validate:"required"`
}

type SettingsResponse struct {
	APIKey          string  `json:"api_key"`
	DefaultDuration float64 `json:"default_duration"`
	OutputFormat    string  `json:"output_format"`
	AddFade         bool    `json:"add_fade"`
	AudioOption     string  `json:"audio_option"`
}

// AddSegmentRequest carries clock strings; the server converts them to
// seconds. Title defaults when empty, source defaults to manual.
type AddSegmentRequest struct {
	Start  string `json:"start" validate:"required"`
	End    string `json:"end" validate:"required"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

type SegmentResponse struct {
	ID       int64   `json:"id"`
	Start    string  `json:"start"` // HH:MM:SS
	End      string  `json:"end"`
	StartSec float64 `json:"start_seconds"`
	EndSec   float64 `json:"end_seconds"`
	Title    string  `json:"title"`
	Source   string  `json:"source"`
	Status   string  `json:"status"`
	Error    string  `json:"error,omitempty"`
	Progress float64 `json:"progress"`
}

type SegmentsResponse struct {
	Segments []SegmentResponse `json:"segments"`
}

type RunResponse struct {
	Started bool `json:"started"`
}

type ClipResponse struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	SourceSegmentID int64             `json:"source_segment_id"`
	CreatedAt       string            `json:"created_at"`
	MediaAvailable  bool              `json:"media_available"`
	PlatformsPosted []string          `json:"platforms_posted"`
	PostLinks       map[string]string `json:"post_links"`
	Views           int               `json:"views"`
	Likes           int               `json:"likes"`
	Comments        int               `json:"comments"`
	PostingNotes    string            `json:"posting_notes"`
}

type ClipsResponse struct {
	Clips []ClipResponse `json:"clips"`
}

type AnnotationsRequest struct {
	PlatformsPosted []string          `json:"platforms_posted"`
	PostLinks       map[string]string `json:"post_links"`
	Views           int               `json:"views" validate:"gte=0"`
	Likes           int               `json:"likes" validate:"gte=0"`
	Comments        int               `json:"comments" validate:"gte=0"`
	PostingNotes    string            `json:"posting_notes"`
}

type NotesResponse struct {
	Notes string `json:"notes"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func SegmentToResponse(s studio.Segment, format func(float64) string) SegmentResponse {
	return SegmentResponse{
		ID:       s.ID,
		Start:    format(s.StartSeconds),
		End:      format(s.EndSeconds),
		StartSec: s.StartSeconds,
		EndSec:   s.EndSeconds,
		Title:    s.Title,
		Source:   s.Source,
		Status:   s.Status,
		Error:    s.Error,
		Progress: s.Progress,
	}
}

func ClipToResponse(c studio.Clip) ClipResponse {
	return ClipResponse{
		ID:              c.ID,
		Title:           c.Title,
		SourceSegmentID: c.SourceSegmentID,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		MediaAvailable:  c.MediaAvailable,
		PlatformsPosted: c.Annotations.PlatformsPosted,
		PostLinks:       c.Annotations.PostLinks,
		Views:           c.Annotations.Metrics.Views,
		Likes:           c.Annotations.Metrics.Likes,
		Comments:        c.Annotations.Metrics.Comments,
		PostingNotes:    c.Annotations.PostingNotes,
	}
}

func SettingsToResponse(s studio.Settings) SettingsResponse {
	return SettingsResponse{
		APIKey:          s.APIKey,
		DefaultDuration: s.DefaultDuration,
		OutputFormat:    s.OutputFormat,
		AddFade:         s.AddFade,
		AudioOption:     s.AudioOption,
	}
}
