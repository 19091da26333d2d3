package studio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/clipstudio/clipper-agent/internal/transcode"
)

// QueueConfig wires a Queue's collaborators.
type QueueConfig struct {
	Repo     Repository
	Cutter   transcode.Cutter // nil when no ffmpeg was found
	Clips    *ClipStore
	MediaDir string
	Logger   *slog.Logger
}

// Queue holds the segment cut queue for the current source video.
// Segments are processed strictly one at a time, in insertion order.
type Queue struct {
	repo     Repository
	cutter   transcode.Cutter
	clips    *ClipStore
	mediaDir string
	logger   *slog.Logger

	mu       sync.Mutex
	source   *SourceVideo
	segments []*Segment
	nextID   int64

	running atomic.Bool
	paused  atomic.Bool
}

func NewQueue(cfg QueueConfig) *Queue {
	return &Queue{
		repo:     cfg.Repo,
		cutter:   cfg.Cutter,
		clips:    cfg.Clips,
		mediaDir: cfg.MediaDir,
		logger:   cfg.Logger,
		nextID:   1,
	}
}

// SetSource loads a source video for cutting. The file must exist and
// be probeable. Loading a new source clears the queue; already-created
// clips are untouched.
func (q *Queue) SetSource(ctx context.Context, path string) (SourceVideo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceVideo{}, validationErr("source file not accessible: %v", err)
	}
	if info.IsDir() {
		return SourceVideo{}, validationErr("source path is a directory")
	}
	if q.cutter == nil {
		return SourceVideo{}, preconditionErr("no ffmpeg available to probe source")
	}
	if q.running.Load() {
		return SourceVideo{}, ErrBusy
	}

	duration, err := q.cutter.ProbeDuration(ctx, path)
	if err != nil {
		return SourceVideo{}, validationErr("cannot probe source: %v", err)
	}

	src := SourceVideo{
		Path:     path,
		Name:     filepath.Base(path),
		Duration: duration,
	}

	q.mu.Lock()
	q.source = &src
	q.segments = nil
	q.mu.Unlock()

	q.logger.Info("source loaded", "name", src.Name, "duration_s", duration)
	return src, nil
}

// ClearSource unloads the source video. Segments stay queued; they
// only become runnable again once a source is loaded.
func (q *Queue) ClearSource() error {
	if q.running.Load() {
		return ErrBusy
	}
	q.mu.Lock()
	q.source = nil
	q.mu.Unlock()
	q.logger.Info("source cleared")
	return nil
}

// Source returns the currently loaded source video, if any.
func (q *Queue) Source() (SourceVideo, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.source == nil {
		return SourceVideo{}, false
	}
	return *q.source, true
}

// SourceName returns the loaded source's file name, or "" when none.
func (q *Queue) SourceName() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.source == nil {
		return ""
	}
	return q.source.Name
}

// Enqueue adds a pending segment to the back of the queue.
// Timing is validated against the probed source duration when a source
// is loaded. An empty title defaults to "Clip N" from the assigned id.
func (q *Queue) Enqueue(startSec, endSec float64, title, source string) (Segment, error) {
	if math.IsNaN(startSec) || math.IsInf(startSec, 0) || math.IsNaN(endSec) || math.IsInf(endSec, 0) {
		return Segment{}, validationErr("times must be finite")
	}
	if startSec < 0 {
		return Segment{}, validationErr("start must not be negative")
	}
	if endSec <= startSec {
		return Segment{}, validationErr("end must be after start")
	}
	if source != SourceManual && source != SourceChapter {
		return Segment{}, validationErr("source must be manual or chapter")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.source != nil && endSec > q.source.Duration {
		return Segment{}, validationErr("end %.3f exceeds source duration %.3f", endSec, q.source.Duration)
	}

	seg := &Segment{
		ID:           q.nextID,
		StartSeconds: startSec,
		EndSeconds:   endSec,
		Title:        title,
		Source:       source,
		Status:       StatusPending,
	}
	q.nextID++
	if seg.Title == "" {
		seg.Title = fmt.Sprintf("Clip %d", seg.ID)
	}
	q.segments = append(q.segments, seg)

	q.logger.Info("segment enqueued",
		"segment_id", seg.ID,
		"start_s", startSec,
		"end_s", endSec,
		"source", source,
	)
	return *seg, nil
}

// Remove deletes a segment from the queue. Removing a segment that is
// currently processing is rejected; removing an unknown id is a no-op.
func (q *Queue) Remove(id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, seg := range q.segments {
		if seg.ID != id {
			continue
		}
		if seg.Status == StatusProcessing {
			return validationErr("segment %d is processing", id)
		}
		q.segments = append(q.segments[:i], q.segments[i+1:]...)
		q.logger.Info("segment removed", "segment_id", id)
		return nil
	}
	return nil
}

// Segments returns a snapshot of the queue in insertion order.
func (q *Queue) Segments() []Segment {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Segment, len(q.segments))
	for i, seg := range q.segments {
		out[i] = *seg
	}
	return out
}

// LookupSegment returns a segment by id.
func (q *Queue) LookupSegment(id int64) (Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, seg := range q.segments {
		if seg.ID == id {
			return *seg, true
		}
	}
	return Segment{}, false
}

// Running reports whether a batch run is in flight.
func (q *Queue) Running() bool {
	return q.running.Load()
}

// SetPaused blocks new batch runs from starting. A run already in
// flight is never interrupted.
func (q *Queue) SetPaused(paused bool) {
	q.paused.Store(paused)
	q.logger.Info("queue pause state changed", "paused", paused)
}

// Paused reports whether new batch runs are blocked.
func (q *Queue) Paused() bool {
	return q.paused.Load()
}

// CheckRunnable verifies that a batch run could start right now.
// It is used by the HTTP layer to reject a run synchronously before
// kicking the batch off in the background.
func (q *Queue) CheckRunnable() error {
	if q.cutter == nil {
		return preconditionErr("no ffmpeg available")
	}
	if q.paused.Load() {
		return preconditionErr("queue is paused")
	}
	if q.running.Load() {
		return ErrBusy
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.source == nil {
		return preconditionErr("no source video loaded")
	}
	runnable := 0
	for _, seg := range q.segments {
		if seg.Status == StatusPending || seg.Status == StatusError {
			runnable++
		}
	}
	if runnable == 0 {
		return validationErr("no segments to process")
	}
	return nil
}

// RunAll processes every pending and errored segment in order, one at a
// time, and returns after the last segment finishes. A failing segment
// is marked errored and processing continues with the next one.
func (q *Queue) RunAll(ctx context.Context) error {
	if err := q.CheckRunnable(); err != nil {
		return err
	}
	if !q.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer q.running.Store(false)

	settings, err := q.repo.GetSettings(ctx)
	if err != nil {
		q.logger.Warn("failed to load settings, using defaults", "error", err)
		settings = DefaultSettings()
	}

	outCfg := transcode.OutputConfig{
		Aspect:  transcode.Aspect(settings.OutputFormat),
		AddFade: settings.AddFade,
		Audio:   transcode.AudioMode(settings.AudioOption),
	}

	q.mu.Lock()
	// the source can vanish between CheckRunnable and the CAS above
	if q.source == nil {
		q.mu.Unlock()
		return preconditionErr("no source video loaded")
	}
	sourcePath := q.source.Path
	ids := make([]int64, 0, len(q.segments))
	for _, seg := range q.segments {
		if seg.Status == StatusPending || seg.Status == StatusError {
			ids = append(ids, seg.ID)
		}
	}
	q.mu.Unlock()

	q.logger.Info("batch run starting", "segment_count", len(ids))

	var failed int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			q.logger.Warn("batch run cancelled", "error", err)
			return err
		}
		if err := q.runOne(ctx, id, sourcePath, outCfg); err != nil {
			failed++
		}
	}

	q.logger.Info("batch run finished", "segment_count", len(ids), "failed", failed)
	return nil
}

func (q *Queue) runOne(ctx context.Context, id int64, sourcePath string, outCfg transcode.OutputConfig) error {
	seg := q.updateSegment(id, func(s *Segment) {
		s.Status = StatusProcessing
		s.Error = ""
		s.Progress = 0
	})
	if seg == nil {
		// removed between scheduling and execution
		return nil
	}

	outPath := filepath.Join(q.mediaDir, uuid.NewString()+".mp4")
	log := q.logger.With("segment_id", id)

	err := q.cutter.Cut(ctx, sourcePath, seg.StartSeconds, seg.EndSeconds, outCfg, outPath,
		func(ratio float64) {
			q.updateSegment(id, func(s *Segment) { s.Progress = ratio * 100 })
		})
	if err != nil {
		q.updateSegment(id, func(s *Segment) {
			s.Status = StatusError
			s.Error = err.Error()
		})
		log.Warn("segment failed", "error", err)
		return err
	}

	done := q.updateSegment(id, func(s *Segment) {
		s.Status = StatusDone
		s.Progress = 100
	})
	if done != nil {
		clip := q.clips.CreateFromSegment(*done, outPath)
		log.Info("segment complete", "clip_id", clip.ID)
	}
	return nil
}

// updateSegment mutates a segment under the lock and returns a copy of
// the result, or nil when the id no longer exists.
func (q *Queue) updateSegment(id int64, fn func(*Segment)) *Segment {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, seg := range q.segments {
		if seg.ID == id {
			fn(seg)
			out := *seg
			return &out
		}
	}
	return nil
}
