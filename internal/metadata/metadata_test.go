package metadata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=abc123&t=42", "abc123"},
		{"https://m.youtube.com/watch?v=abc123", "abc123"},
		{"https://www.youtube.com/shorts/xyz789", "xyz789"},
		{"https://www.youtube.com/embed/xyz789", "xyz789"},
	}
	for _, tt := range tests {
		got, err := ExtractVideoID(tt.url)
		if err != nil {
			t.Errorf("ExtractVideoID(%q) error: %v", tt.url, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestExtractVideoIDInvalid(t *testing.T) {
	for _, u := range []string{
		"https://vimeo.com/12345",
		"https://www.youtube.com/watch",
		"https://youtu.be/",
		"not a url at all ://",
	} {
		if id, err := ExtractVideoID(u); err == nil {
			t.Errorf("ExtractVideoID(%q) = %q, want error", u, id)
		}
	}
}

func TestParseChapters(t *testing.T) {
	desc := "Welcome to the show!\n" +
		"0:00 Intro\n" +
		"2:30 First topic\n" +
		"1:02:15 Deep dive\n" +
		"no timestamp here\n" +
		"15:00 Wrap up\n"

	chapters := ParseChapters(desc)
	if len(chapters) != 4 {
		t.Fatalf("got %d chapters, want 4", len(chapters))
	}

	want := []Chapter{
		{Time: "0:00", Seconds: 0, Title: "Intro"},
		{Time: "2:30", Seconds: 150, Title: "First topic"},
		{Time: "1:02:15", Seconds: 3735, Title: "Deep dive"},
		{Time: "15:00", Seconds: 900, Title: "Wrap up"},
	}
	for i, w := range want {
		if chapters[i] != w {
			t.Errorf("chapter %d = %+v, want %+v", i, chapters[i], w)
		}
	}
}

func TestParseChaptersEmpty(t *testing.T) {
	if got := ParseChapters("just a description with no markers"); len(got) != 0 {
		t.Errorf("got %d chapters, want 0", len(got))
	}
}

func TestFetchVideo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "vid123" {
			t.Errorf("request id = %q, want vid123", got)
		}
		if got := r.URL.Query().Get("key"); got != "secret" {
			t.Errorf("request key = %q, want secret", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":"vid123","snippet":{
			"title":"My Stream",
			"description":"0:00 Intro\n5:00 Main",
			"channelTitle":"MyChannel"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(testLogger())
	c.SetBaseURL(srv.URL)

	info, err := c.FetchVideo(context.Background(), "vid123", "secret")
	if err != nil {
		t.Fatalf("FetchVideo: %v", err)
	}
	if info.Title != "My Stream" || info.ChannelName != "MyChannel" {
		t.Errorf("unexpected info: %+v", info)
	}
	if len(info.Chapters) != 2 || info.Chapters[1].Seconds != 300 {
		t.Errorf("unexpected chapters: %+v", info.Chapters)
	}
}

func TestFetchVideoAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"API key invalid"}}`))
	}))
	defer srv.Close()

	c := NewClient(testLogger())
	c.SetBaseURL(srv.URL)

	_, err := c.FetchVideo(context.Background(), "vid123", "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Message != "API key invalid" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
}

func TestFetchVideoNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := NewClient(testLogger())
	c.SetBaseURL(srv.URL)

	_, err := c.FetchVideo(context.Background(), "nope", "k")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
}
