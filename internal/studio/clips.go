package studio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// SegmentSource is the queue view the clip store needs to label
// persisted records at annotation-save time.
type SegmentSource interface {
	LookupSegment(id int64) (Segment, bool)
	SourceName() string
}

// ClipStore holds the session's clips and writes their annotation data
// through to the durable record collection. Creating a clip is a
// session-only event; saving annotations is what makes a record durable.
type ClipStore struct {
	repo   Repository
	logger *slog.Logger

	mu       sync.Mutex
	segments SegmentSource
	clips    []*Clip
	nextNum  int64
}

func NewClipStore(repo Repository, logger *slog.Logger) *ClipStore {
	return &ClipStore{
		repo:    repo,
		logger:  logger,
		nextNum: 1,
	}
}

// BindSegments attaches the segment queue after construction. The queue
// and the clip store reference each other, so one side binds late.
func (c *ClipStore) BindSegments(s SegmentSource) {
	c.mu.Lock()
	c.segments = s
	c.mu.Unlock()
}

// CreateFromSegment registers a new session clip for a finished cut.
// Nothing is written to the database until annotations are saved.
func (c *ClipStore) CreateFromSegment(seg Segment, mediaPath string) Clip {
	c.mu.Lock()
	defer c.mu.Unlock()

	clip := &Clip{
		ID:              fmt.Sprintf("clip_%d", c.nextNum),
		Title:           seg.Title,
		SourceSegmentID: seg.ID,
		CreatedAt:       time.Now().UTC(),
		MediaPath:       mediaPath,
		MediaAvailable:  true,
		Annotations: Annotations{
			PlatformsPosted: []string{},
			PostLinks:       map[string]string{},
		},
	}
	c.nextNum++
	c.clips = append(c.clips, clip)

	c.logger.Info("clip created", "clip_id", clip.ID, "segment_id", seg.ID)
	return *clip
}

// List returns the session clips in creation order.
func (c *ClipStore) List() []Clip {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Clip, len(c.clips))
	for i, clip := range c.clips {
		out[i] = *clip
	}
	return out
}

// Get returns a session clip by id.
func (c *ClipStore) Get(id string) (Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if clip := c.find(id); clip != nil {
		return *clip, true
	}
	return Clip{}, false
}

// Records returns the durable clip records.
func (c *ClipStore) Records(ctx context.Context) ([]PersistedClip, error) {
	return c.repo.GetClipRecords(ctx)
}

// UpdateAnnotations replaces a clip's annotation fields and upserts the
// matching durable record. This is the only path that persists a clip.
func (c *ClipStore) UpdateAnnotations(ctx context.Context, id string, ann Annotations) (Clip, error) {
	if ann.PlatformsPosted == nil {
		ann.PlatformsPosted = []string{}
	}
	if ann.PostLinks == nil {
		ann.PostLinks = map[string]string{}
	}
	if ann.Metrics.Views < 0 || ann.Metrics.Likes < 0 || ann.Metrics.Comments < 0 {
		return Clip{}, validationErr("metrics must not be negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	clip := c.find(id)
	if clip == nil {
		return Clip{}, fmt.Errorf("%w: clip %s", ErrNotFound, id)
	}

	record := PersistedClip{
		ID:              clip.ID,
		Title:           clip.Title,
		SourceSegmentID: clip.SourceSegmentID,
		CreatedAt:       clip.CreatedAt,
		PlatformsPosted: ann.PlatformsPosted,
		PostLinks:       ann.PostLinks,
		Metrics:         ann.Metrics,
		PostingNotes:    ann.PostingNotes,
	}
	if c.segments != nil {
		record.OriginalVideoFile = c.segments.SourceName()
		if seg, ok := c.segments.LookupSegment(clip.SourceSegmentID); ok {
			start, end := seg.StartSeconds, seg.EndSeconds
			record.StartSeconds = &start
			record.EndSeconds = &end
		}
	}

	records, err := c.repo.GetClipRecords(ctx)
	if err != nil {
		return Clip{}, fmt.Errorf("load clip records: %w", err)
	}
	replaced := false
	for i := range records {
		if records[i].ID == record.ID {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}
	if err := c.repo.PutClipRecords(ctx, records); err != nil {
		return Clip{}, fmt.Errorf("save clip records: %w", err)
	}

	// the session copy only changes once the record is durable
	clip.Annotations = ann

	c.logger.Info("clip annotations saved", "clip_id", id)
	return *clip, nil
}

// Remove deletes a clip from the session and from the durable records,
// and releases its media file. The durable record is purged even when
// the session clip is already gone.
func (c *ClipStore) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	inSession := false
	for i, clip := range c.clips {
		if clip.ID != id {
			continue
		}
		if clip.MediaPath != "" {
			if err := os.Remove(clip.MediaPath); err != nil && !os.IsNotExist(err) {
				c.logger.Warn("failed to remove clip media", "clip_id", id, "error", err)
			}
		}
		c.clips = append(c.clips[:i], c.clips[i+1:]...)
		inSession = true
		break
	}

	records, err := c.repo.GetClipRecords(ctx)
	if err != nil {
		return fmt.Errorf("load clip records: %w", err)
	}
	inDurable := false
	kept := records[:0]
	for _, r := range records {
		if r.ID == id {
			inDurable = true
			continue
		}
		kept = append(kept, r)
	}
	if inDurable {
		if err := c.repo.PutClipRecords(ctx, kept); err != nil {
			return fmt.Errorf("save clip records: %w", err)
		}
	}

	if !inSession && !inDurable {
		return fmt.Errorf("%w: clip %s", ErrNotFound, id)
	}

	c.logger.Info("clip removed", "clip_id", id, "session", inSession, "durable", inDurable)
	return nil
}

// ReplaceAll swaps in an imported clip collection. The imported records
// become both the durable collection and the session set; their media
// files are not part of a backup, so every imported clip is marked
// unavailable.
func (c *ClipStore) ReplaceAll(ctx context.Context, records []PersistedClip) error {
	if records == nil {
		records = []PersistedClip{}
	}
	if err := c.repo.PutClipRecords(ctx, records); err != nil {
		return fmt.Errorf("save clip records: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.clips = c.clips[:0]
	var maxNum int64
	for _, r := range records {
		links := make(map[string]string, len(r.PostLinks))
		for platform, url := range r.PostLinks {
			links[platform] = url
		}
		clip := &Clip{
			ID:              r.ID,
			Title:           r.Title,
			SourceSegmentID: r.SourceSegmentID,
			CreatedAt:       r.CreatedAt,
			MediaAvailable:  false,
			Annotations: Annotations{
				PlatformsPosted: append([]string{}, r.PlatformsPosted...),
				PostLinks:       links,
				Metrics:         r.Metrics,
				PostingNotes:    r.PostingNotes,
			},
		}
		c.clips = append(c.clips, clip)

		var n int64
		if _, err := fmt.Sscanf(r.ID, "clip_%d", &n); err == nil && n > maxNum {
			maxNum = n
		}
	}
	c.nextNum = maxNum + 1

	c.logger.Info("clip collection replaced", "count", len(records))
	return nil
}

func (c *ClipStore) find(id string) *Clip {
	for _, clip := range c.clips {
		if clip.ID == id {
			return clip
		}
	}
	return nil
}
