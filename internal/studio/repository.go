package studio

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Blob keys. Each holds one whole JSON document.
const (
	blobSettings = "settings"
	blobClips    = "clips"
	blobNotes    = "notes"
)

// Repository is the durable store for settings, persisted clip records,
// session notes, and small config values.
type Repository interface {
	GetSettings(ctx context.Context) (Settings, error)
	PutSettings(ctx context.Context, s Settings) error

	GetClipRecords(ctx context.Context) ([]PersistedClip, error)
	PutClipRecords(ctx context.Context, clips []PersistedClip) error

	GetNotes(ctx context.Context) (string, error)
	PutNotes(ctx context.Context, notes string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) GetSettings(ctx context.Context) (Settings, error) {
	raw, err := r.getBlob(ctx, blobSettings)
	if err != nil {
		return Settings{}, err
	}
	if raw == nil {
		return DefaultSettings(), nil
	}
	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

func (r *SQLiteRepository) PutSettings(ctx context.Context, s Settings) error {
	return r.putBlob(ctx, blobSettings, s)
}

func (r *SQLiteRepository) GetClipRecords(ctx context.Context) ([]PersistedClip, error) {
	raw, err := r.getBlob(ctx, blobClips)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return []PersistedClip{}, nil
	}
	var clips []PersistedClip
	if err := json.Unmarshal(raw, &clips); err != nil {
		return nil, fmt.Errorf("decode clip records: %w", err)
	}
	return clips, nil
}

func (r *SQLiteRepository) PutClipRecords(ctx context.Context, clips []PersistedClip) error {
	if clips == nil {
		clips = []PersistedClip{}
	}
	return r.putBlob(ctx, blobClips, clips)
}

func (r *SQLiteRepository) GetNotes(ctx context.Context) (string, error) {
	raw, err := r.getBlob(ctx, blobNotes)
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", nil
	}
	var notes string
	if err := json.Unmarshal(raw, &notes); err != nil {
		return "", fmt.Errorf("decode notes: %w", err)
	}
	return notes, nil
}

func (r *SQLiteRepository) PutNotes(ctx context.Context, notes string) error {
	return r.putBlob(ctx, blobNotes, notes)
}

func (r *SQLiteRepository) getBlob(ctx context.Context, key string) (json.RawMessage, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value), nil
}

func (r *SQLiteRepository) putBlob(ctx context.Context, key string, doc any) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, string(value), time.Now().UTC().Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
