// Package metadata fetches YouTube video metadata and extracts chapter
// markers from video descriptions.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/clipstudio/clipper-agent/internal/timecode"
)

// Chapter is a single timestamped marker found in a video description.
type Chapter struct {
	Time    string  `json:"time"`    // original clock text, e.g. "1:23:45"
	Seconds float64 `json:"seconds"` // parsed offset into the video
	Title   string  `json:"title"`
}

// VideoInfo is the subset of YouTube snippet data the app cares about.
type VideoInfo struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ChannelName string    `json:"channel_name"`
	Chapters    []Chapter `json:"chapters"`
}

// APIError represents a non-2xx response from the YouTube Data API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube api: HTTP %d: %s", e.StatusCode, e.Message)
}

// chapterLine matches "<clock> <title>" at the start of a description line.
var chapterLine = regexp.MustCompile(`(?m)^\s*(\d{1,2}:\d{2}(?::\d{2})?)\s+(.+)$`)

// ExtractVideoID pulls the 11-character video id out of a YouTube URL.
// Both youtu.be short links and youtube.com/watch?v= links are accepted.
func ExtractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		if id == "" {
			return "", fmt.Errorf("no video id in %q", rawURL)
		}
		return id, nil
	case "youtube.com", "m.youtube.com":
		if id := u.Query().Get("v"); id != "" {
			return id, nil
		}
		// /shorts/<id> and /embed/<id> forms
		for _, prefix := range []string{"/shorts/", "/embed/"} {
			if strings.HasPrefix(u.Path, prefix) {
				if id := strings.Trim(strings.TrimPrefix(u.Path, prefix), "/"); id != "" {
					return id, nil
				}
			}
		}
		return "", fmt.Errorf("no video id in %q", rawURL)
	}
	return "", fmt.Errorf("not a youtube url: %q", rawURL)
}

// ParseChapters scans a video description for timestamped lines and
// returns them in the order they appear. Lines whose clock text does
// not parse are skipped.
func ParseChapters(description string) []Chapter {
	matches := chapterLine.FindAllStringSubmatch(description, -1)
	chapters := make([]Chapter, 0, len(matches))
	for _, m := range matches {
		secs, err := timecode.ParseClock(m[1])
		if err != nil {
			continue
		}
		chapters = append(chapters, Chapter{
			Time:    m[1],
			Seconds: secs,
			Title:   strings.TrimSpace(m[2]),
		})
	}
	return chapters
}

// Client fetches video metadata from the YouTube Data API v3.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(logger *slog.Logger) *Client {
	return &Client{
		baseURL: "https://www.googleapis.com/youtube/v3",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// videosResponse mirrors the shape of the videos.list endpoint response.
type videosResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchVideo retrieves the snippet for one video and parses its chapters.
func (c *Client) FetchVideo(ctx context.Context, videoID, apiKey string) (*VideoInfo, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("id", videoID)
	q.Set("key", apiKey)
	reqURL := fmt.Sprintf("%s/videos?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	c.logger.Info("fetching video metadata", "video_id", videoID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed videosResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error.Message
		if msg == "" {
			msg = string(body)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if len(parsed.Items) == 0 {
		return nil, &APIError{StatusCode: http.StatusNotFound, Message: "video not found"}
	}

	item := parsed.Items[0]
	info := &VideoInfo{
		VideoID:     item.ID,
		Title:       item.Snippet.Title,
		Description: item.Snippet.Description,
		ChannelName: item.Snippet.ChannelTitle,
		Chapters:    ParseChapters(item.Snippet.Description),
	}

	c.logger.Info("video metadata fetched",
		"video_id", videoID,
		"chapter_count", len(info.Chapters),
	)
	return info, nil
}

// SetBaseURL overrides the API base URL. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = u
}
