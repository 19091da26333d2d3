package studio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/clipstudio/clipper-agent/internal/transcode"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	mu       sync.Mutex
	settings *Settings
	records  []PersistedClip
	notes    string
	config   map[string]string

	putClipCalls    int
	failPuts        bool
	getSettingsHook func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{config: map[string]string{}}
}

func (f *fakeRepo) GetSettings(ctx context.Context) (Settings, error) {
	if f.getSettingsHook != nil {
		f.getSettingsHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return DefaultSettings(), nil
	}
	return *f.settings, nil
}

func (f *fakeRepo) PutSettings(ctx context.Context, s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settings = &s
	return nil
}

func (f *fakeRepo) GetClipRecords(ctx context.Context) ([]PersistedClip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PersistedClip{}, f.records...), nil
}

func (f *fakeRepo) PutClipRecords(ctx context.Context, clips []PersistedClip) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPuts {
		return errors.New("disk full")
	}
	f.records = append([]PersistedClip{}, clips...)
	f.putClipCalls++
	return nil
}

func (f *fakeRepo) GetNotes(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notes, nil
}

func (f *fakeRepo) PutNotes(ctx context.Context, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = notes
	return nil
}

func (f *fakeRepo) GetConfig(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config[key], nil
}

func (f *fakeRepo) SetConfig(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config[key] = value
	return nil
}

// fakeCutter records cuts and fails the call indexes listed in failNext.
type fakeCutter struct {
	mu        sync.Mutex
	cuts      []string // output paths in execution order
	failNext  map[int]bool
	callCount int
	duration  float64
}

func (f *fakeCutter) Cut(ctx context.Context, sourcePath string, startSec, endSec float64, cfg transcode.OutputConfig, outPath string, progress func(float64)) error {
	f.mu.Lock()
	call := f.callCount
	f.callCount++
	fail := f.failNext[call]
	if !fail {
		f.cuts = append(f.cuts, outPath)
	}
	f.mu.Unlock()

	if progress != nil {
		progress(0.5)
	}
	if fail {
		return &transcode.Error{Message: fmt.Sprintf("cut %d failed", call)}
	}
	return os.WriteFile(outPath, []byte("video"), 0644)
}

func (f *fakeCutter) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if f.duration == 0 {
		return 120, nil
	}
	return f.duration, nil
}

func newTestQueue(t *testing.T, cutter transcode.Cutter) (*Queue, *ClipStore, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	logger := testLogger()
	clips := NewClipStore(repo, logger)
	q := NewQueue(QueueConfig{
		Repo:     repo,
		Cutter:   cutter,
		Clips:    clips,
		MediaDir: t.TempDir(),
		Logger:   logger,
	})
	clips.BindSegments(q)
	return q, clips, repo
}

func loadSource(t *testing.T, q *Queue) {
	t.Helper()
	src := filepath.Join(t.TempDir(), "stream.mp4")
	if err := os.WriteFile(src, []byte("source"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := q.SetSource(context.Background(), src); err != nil {
		t.Fatalf("SetSource: %v", err)
	}
}

func TestEnqueueValidation(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeCutter{})

	tests := []struct {
		name       string
		start, end float64
		source     string
	}{
		{"negative start", -1, 10, SourceManual},
		{"end before start", 10, 5, SourceManual},
		{"end equals start", 10, 10, SourceManual},
		{"bad source", 0, 10, "import"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Enqueue(tt.start, tt.end, "", tt.source)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Enqueue = %v, want ErrValidation", err)
			}
		})
	}
}

func TestEnqueueDefaultTitle(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeCutter{})

	seg, err := q.Enqueue(0, 10, "", SourceManual)
	if err != nil {
		t.Fatal(err)
	}
	if seg.Title != "Clip 1" {
		t.Errorf("title = %q, want %q", seg.Title, "Clip 1")
	}

	seg2, _ := q.Enqueue(10, 20, "Named", SourceChapter)
	if seg2.Title != "Named" {
		t.Errorf("title = %q, want %q", seg2.Title, "Named")
	}
	if seg2.ID != 2 {
		t.Errorf("id = %d, want 2", seg2.ID)
	}
}

func TestEnqueueRejectsBeyondSourceDuration(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeCutter{duration: 60})
	loadSource(t, q)

	if _, err := q.Enqueue(0, 61, "", SourceManual); !errors.Is(err, ErrValidation) {
		t.Errorf("Enqueue past duration = %v, want ErrValidation", err)
	}
	if _, err := q.Enqueue(0, 60, "", SourceManual); err != nil {
		t.Errorf("Enqueue at exact duration = %v, want nil", err)
	}
}

func TestRemoveUnknownIsNoOp(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeCutter{})
	if err := q.Remove(99); err != nil {
		t.Errorf("Remove(99) = %v, want nil", err)
	}
}

func TestRemove(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeCutter{})
	seg, _ := q.Enqueue(0, 10, "", SourceManual)
	q.Enqueue(10, 20, "", SourceManual)

	if err := q.Remove(seg.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	segs := q.Segments()
	if len(segs) != 1 || segs[0].ID == seg.ID {
		t.Errorf("segments after remove: %+v", segs)
	}
}

func TestCheckRunnablePreconditions(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeCutter{})

	// no source
	if err := q.CheckRunnable(); !errors.Is(err, ErrPrecondition) {
		t.Errorf("no source: %v, want ErrPrecondition", err)
	}

	loadSource(t, q)

	// no segments
	if err := q.CheckRunnable(); !errors.Is(err, ErrValidation) {
		t.Errorf("empty queue: %v, want ErrValidation", err)
	}

	q.Enqueue(0, 10, "", SourceManual)
	if err := q.CheckRunnable(); err != nil {
		t.Errorf("runnable queue: %v, want nil", err)
	}

	q.SetPaused(true)
	if err := q.CheckRunnable(); !errors.Is(err, ErrPrecondition) {
		t.Errorf("paused: %v, want ErrPrecondition", err)
	}
}

func TestCheckRunnableNoCutter(t *testing.T) {
	q, _, _ := newTestQueue(t, nil)
	if err := q.CheckRunnable(); !errors.Is(err, ErrPrecondition) {
		t.Errorf("nil cutter: %v, want ErrPrecondition", err)
	}
}

func TestRunAllSequential(t *testing.T) {
	cutter := &fakeCutter{failNext: map[int]bool{}}
	q, clips, _ := newTestQueue(t, cutter)
	loadSource(t, q)

	q.Enqueue(0, 10, "one", SourceManual)
	q.Enqueue(10, 20, "two", SourceManual)
	q.Enqueue(20, 30, "three", SourceChapter)

	if err := q.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	segs := q.Segments()
	for _, seg := range segs {
		if seg.Status != StatusDone {
			t.Errorf("segment %d status = %q, want done", seg.ID, seg.Status)
		}
		if seg.Progress != 100 {
			t.Errorf("segment %d progress = %v, want 100", seg.ID, seg.Progress)
		}
	}

	got := clips.List()
	if len(got) != 3 {
		t.Fatalf("got %d clips, want 3", len(got))
	}
	want := []string{"clip_1", "clip_2", "clip_3"}
	for i, w := range want {
		if got[i].ID != w {
			t.Errorf("clip %d id = %q, want %q", i, got[i].ID, w)
		}
		if !got[i].MediaAvailable {
			t.Errorf("clip %s media unavailable", got[i].ID)
		}
	}
}

func TestRunAllFirstFailsSecondSucceeds(t *testing.T) {
	cutter := &fakeCutter{failNext: map[int]bool{0: true}}
	q, clips, _ := newTestQueue(t, cutter)
	loadSource(t, q)

	q.Enqueue(0, 10, "bad", SourceManual)
	q.Enqueue(10, 20, "good", SourceManual)

	if err := q.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	segs := q.Segments()
	if segs[0].Status != StatusError {
		t.Errorf("first status = %q, want error", segs[0].Status)
	}
	if segs[0].Error == "" {
		t.Error("first segment has empty error message")
	}
	if segs[1].Status != StatusDone {
		t.Errorf("second status = %q, want done", segs[1].Status)
	}
	if got := clips.List(); len(got) != 1 || got[0].Title != "good" {
		t.Errorf("clips = %+v, want one clip from the succeeding segment", got)
	}
}

func TestRunAllFirstSucceedsSecondFails(t *testing.T) {
	cutter := &fakeCutter{failNext: map[int]bool{1: true}}
	q, clips, _ := newTestQueue(t, cutter)
	loadSource(t, q)

	q.Enqueue(0, 10, "good", SourceManual)
	q.Enqueue(10, 20, "bad", SourceManual)

	if err := q.RunAll(context.Background()); err != nil {
		t.Fatalf("RunAll: %v", err)
	}

	segs := q.Segments()
	if segs[0].Status != StatusDone || segs[1].Status != StatusError {
		t.Errorf("statuses = %q/%q, want done/error", segs[0].Status, segs[1].Status)
	}
	if got := clips.List(); len(got) != 1 || got[0].Title != "good" {
		t.Errorf("clips = %+v", got)
	}
}

func TestRunAllRetriesErroredSegments(t *testing.T) {
	cutter := &fakeCutter{failNext: map[int]bool{0: true}}
	q, clips, _ := newTestQueue(t, cutter)
	loadSource(t, q)

	q.Enqueue(0, 10, "flaky", SourceManual)

	if err := q.RunAll(context.Background()); err != nil {
		t.Fatalf("first RunAll: %v", err)
	}
	if segs := q.Segments(); segs[0].Status != StatusError {
		t.Fatalf("status after failure = %q", segs[0].Status)
	}

	// second run retries the errored segment and clears its error
	if err := q.RunAll(context.Background()); err != nil {
		t.Fatalf("second RunAll: %v", err)
	}
	segs := q.Segments()
	if segs[0].Status != StatusDone || segs[0].Error != "" {
		t.Errorf("after retry: status=%q error=%q", segs[0].Status, segs[0].Error)
	}
	if got := clips.List(); len(got) != 1 {
		t.Errorf("got %d clips, want 1", len(got))
	}
}

func TestRunAllSkipsDoneSegments(t *testing.T) {
	cutter := &fakeCutter{}
	q, _, _ := newTestQueue(t, cutter)
	loadSource(t, q)

	q.Enqueue(0, 10, "", SourceManual)
	if err := q.RunAll(context.Background()); err != nil {
		t.Fatal(err)
	}

	// all segments done, nothing runnable
	if err := q.RunAll(context.Background()); !errors.Is(err, ErrValidation) {
		t.Errorf("RunAll with all done = %v, want ErrValidation", err)
	}
	if cutter.callCount != 1 {
		t.Errorf("cutter called %d times, want 1", cutter.callCount)
	}
}

func TestRunAllSourceClearedAfterCheck(t *testing.T) {
	cutter := &fakeCutter{}
	q, _, repo := newTestQueue(t, cutter)
	loadSource(t, q)
	q.Enqueue(0, 10, "", SourceManual)

	// drop the source in the window between the runnable check and
	// the segment snapshot
	repo.getSettingsHook = func() {
		q.mu.Lock()
		q.source = nil
		q.mu.Unlock()
	}

	if err := q.RunAll(context.Background()); !errors.Is(err, ErrPrecondition) {
		t.Errorf("RunAll with vanished source = %v, want ErrPrecondition", err)
	}
	if cutter.callCount != 0 {
		t.Errorf("cutter called %d times, want 0", cutter.callCount)
	}
	if q.Running() {
		t.Error("queue still marked running after aborted run")
	}
}

func TestSetSourceClearsQueue(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeCutter{})
	loadSource(t, q)
	q.Enqueue(0, 10, "", SourceManual)

	loadSource(t, q)
	if segs := q.Segments(); len(segs) != 0 {
		t.Errorf("queue not cleared on new source: %+v", segs)
	}
}

func TestSetSourceMissingFile(t *testing.T) {
	q, _, _ := newTestQueue(t, &fakeCutter{})
	_, err := q.SetSource(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("SetSource missing file = %v, want ErrValidation", err)
	}
}
