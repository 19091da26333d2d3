// Package backup exports and imports the durable store as a single
// JSON document with three top-level sections: settings, clips, notes.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/clipstudio/clipper-agent/internal/studio"
)

// Document is the backup wire format.
type Document struct {
	Settings studio.Settings        `json:"settings"`
	Clips    []studio.PersistedClip `json:"clips"`
	Notes    string                 `json:"notes"`
}

var requiredKeys = []string{"settings", "clips", "notes"}

// Service moves whole snapshots in and out of the durable store.
type Service struct {
	repo   studio.Repository
	clips  *studio.ClipStore
	logger *slog.Logger
}

func NewService(repo studio.Repository, clips *studio.ClipStore, logger *slog.Logger) *Service {
	return &Service{repo: repo, clips: clips, logger: logger}
}

// Export snapshots the three durable sections.
func (s *Service) Export(ctx context.Context) (Document, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("load settings: %w", err)
	}
	clips, err := s.repo.GetClipRecords(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("load clip records: %w", err)
	}
	notes, err := s.repo.GetNotes(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("load notes: %w", err)
	}

	s.logger.Info("backup exported", "clip_count", len(clips))
	return Document{Settings: settings, Clips: clips, Notes: notes}, nil
}

// Import validates and applies a backup document. Every required key
// must be present and well-formed before anything is written; a bad
// document leaves the store untouched.
func (s *Service) Import(ctx context.Context, raw []byte) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return fmt.Errorf("%w: %v", studio.ErrMalformedBackup, err)
	}
	for _, k := range requiredKeys {
		if _, ok := keys[k]; !ok {
			return fmt.Errorf("%w: missing %q section", studio.ErrMalformedBackup, k)
		}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", studio.ErrMalformedBackup, err)
	}
	if err := doc.Settings.Validate(); err != nil {
		return fmt.Errorf("%w: settings: %v", studio.ErrMalformedBackup, err)
	}

	// all sections validated; apply
	if err := s.repo.PutSettings(ctx, doc.Settings); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if err := s.clips.ReplaceAll(ctx, doc.Clips); err != nil {
		return fmt.Errorf("replace clips: %w", err)
	}
	if err := s.repo.PutNotes(ctx, doc.Notes); err != nil {
		return fmt.Errorf("save notes: %w", err)
	}

	s.logger.Info("backup imported", "clip_count", len(doc.Clips))
	return nil
}
