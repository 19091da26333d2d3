// Package transcode drives the external ffmpeg/ffprobe binaries to cut
// time-ranged clips out of a source video.
package transcode

import (
	"context"
	"fmt"
)

// Aspect selects the output framing of a cut.
type Aspect string

const (
	AspectVertical   Aspect = "9:16"
	AspectSquare     Aspect = "1:1"
	AspectHorizontal Aspect = "16:9"
	AspectOriginal   Aspect = "original"
)

// AudioMode selects whether the source audio track is kept.
type AudioMode string

const (
	AudioKeep   AudioMode = "keep"
	AudioRemove AudioMode = "remove"
)

// OutputConfig describes how a cut should be rendered.
type OutputConfig struct {
	Aspect  Aspect
	AddFade bool
	Audio   AudioMode
}

// ValidAspect reports whether a is one of the supported aspect values.
func ValidAspect(a Aspect) bool {
	switch a {
	case AspectVertical, AspectSquare, AspectHorizontal, AspectOriginal:
		return true
	}
	return false
}

// ValidAudioMode reports whether m is one of the supported audio modes.
func ValidAudioMode(m AudioMode) bool {
	return m == AudioKeep || m == AudioRemove
}

// Error is a transcoder failure. The message carries the tail of the
// ffmpeg diagnostics so it can be shown to the user as-is.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcode failed: %s", e.Message)
}

// Cutter is the contract the segment queue depends on. A single shared
// instance drives one cut at a time; callers must not run cuts concurrently.
type Cutter interface {
	// Cut extracts [startSec, endSec) of the source into outPath.
	// progress, when non-nil, receives fractional completion in [0,1].
	Cut(ctx context.Context, sourcePath string, startSec, endSec float64, cfg OutputConfig, outPath string, progress func(float64)) error

	// ProbeDuration returns the duration of a media file in seconds.
	ProbeDuration(ctx context.Context, path string) (float64, error)
}
