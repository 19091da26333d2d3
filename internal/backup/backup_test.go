package backup

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/clipstudio/clipper-agent/internal/db"
	"github.com/clipstudio/clipper-agent/internal/studio"
)

func newService(t *testing.T) (*Service, studio.Repository, *studio.ClipStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := db.New(filepath.Join(t.TempDir(), "clipper.db"), logger)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	repo := studio.NewRepository(database.Conn())
	clips := studio.NewClipStore(repo, logger)
	return NewService(repo, clips, logger), repo, clips
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	settings := studio.DefaultSettings()
	settings.DefaultDuration = 45
	if err := repo.PutSettings(ctx, settings); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutClipRecords(ctx, []studio.PersistedClip{
		{ID: "clip_1", Title: "Intro", Metrics: studio.Metrics{Views: 100}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutNotes(ctx, "remember thumbnails"); err != nil {
		t.Fatal(err)
	}

	doc, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	// wipe and re-import
	if err := repo.PutNotes(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if err := repo.PutClipRecords(ctx, nil); err != nil {
		t.Fatal(err)
	}

	if err := svc.Import(ctx, raw); err != nil {
		t.Fatalf("Import: %v", err)
	}

	gotSettings, _ := repo.GetSettings(ctx)
	if gotSettings.DefaultDuration != 45 {
		t.Errorf("settings not restored: %+v", gotSettings)
	}
	gotClips, _ := repo.GetClipRecords(ctx)
	if len(gotClips) != 1 || gotClips[0].ID != "clip_1" {
		t.Errorf("clips not restored: %+v", gotClips)
	}
	gotNotes, _ := repo.GetNotes(ctx)
	if gotNotes != "remember thumbnails" {
		t.Errorf("notes not restored: %q", gotNotes)
	}
}

func TestImportMissingKeyRejected(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newService(t)

	if err := repo.PutNotes(ctx, "keep me"); err != nil {
		t.Fatal(err)
	}

	// notes key missing
	raw := []byte(`{"settings":{"default_duration":30,"output_format":"9:16","audio_option":"keep"},"clips":[]}`)
	err := svc.Import(ctx, raw)
	if !errors.Is(err, studio.ErrMalformedBackup) {
		t.Fatalf("Import = %v, want ErrMalformedBackup", err)
	}

	// existing state untouched
	notes, _ := repo.GetNotes(ctx)
	if notes != "keep me" {
		t.Errorf("notes mutated on rejected import: %q", notes)
	}
}

func TestImportInvalidJSONRejected(t *testing.T) {
	svc, _, _ := newService(t)
	err := svc.Import(context.Background(), []byte(`{not json`))
	if !errors.Is(err, studio.ErrMalformedBackup) {
		t.Errorf("Import = %v, want ErrMalformedBackup", err)
	}
}

func TestImportBadSettingsRejected(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	raw := []byte(`{"settings":{"default_duration":-1,"output_format":"9:16","audio_option":"keep"},"clips":[],"notes":""}`)
	err := svc.Import(ctx, raw)
	if !errors.Is(err, studio.ErrMalformedBackup) {
		t.Fatalf("Import = %v, want ErrMalformedBackup", err)
	}

	clips, _ := repo.GetClipRecords(ctx)
	if len(clips) != 0 {
		t.Errorf("clips mutated on rejected import: %+v", clips)
	}
}

func TestImportMarksClipsMediaUnavailable(t *testing.T) {
	svc, _, clips := newService(t)
	ctx := context.Background()

	raw := []byte(`{"settings":{"default_duration":30,"output_format":"9:16","audio_option":"keep"},` +
		`"clips":[{"id":"clip_1","title":"Restored"}],"notes":""}`)
	if err := svc.Import(ctx, raw); err != nil {
		t.Fatalf("Import: %v", err)
	}

	session := clips.List()
	if len(session) != 1 {
		t.Fatalf("session clips = %d, want 1", len(session))
	}
	if session[0].MediaAvailable {
		t.Error("imported clip should be flagged media-unavailable")
	}
}
