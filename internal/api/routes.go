package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/clipstudio/clipper-agent/internal/insights"
	"github.com/clipstudio/clipper-agent/internal/metadata"
	"github.com/clipstudio/clipper-agent/internal/studio"
	"github.com/clipstudio/clipper-agent/internal/timecode"
)

var validate = validator.New()

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/settings", getSettingsHandler(cfg))
		r.Put("/settings", putSettingsHandler(cfg))

		r.Put("/source", setSourceHandler(cfg))
		r.Delete("/source", clearSourceHandler(cfg))

		r.Get("/segments", listSegmentsHandler(cfg))
		r.Post("/segments", addSegmentHandler(cfg))
		r.Delete("/segments/{id}", removeSegmentHandler(cfg))
		r.Post("/segments/run", runSegmentsHandler(cfg))

		r.Get("/clips", listClipsHandler(cfg))
		r.Put("/clips/{id}/annotations", updateAnnotationsHandler(cfg))
		r.Delete("/clips/{id}", removeClipHandler(cfg))
		r.Get("/clips/{id}/media", clipMediaHandler(cfg))

		r.Get("/insights", insightsHandler(cfg))

		r.Get("/notes", getNotesHandler(cfg))
		r.Put("/notes", putNotesHandler(cfg))

		r.Get("/metadata", metadataHandler(cfg))

		r.Get("/backup", exportBackupHandler(cfg))
		r.Post("/backup", importBackupHandler(cfg))
	})

	return r
}

func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body", "VALIDATION")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION")
		return false
	}
	return true
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  int64(time.Since(cfg.StartTime).Seconds()),
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := "idle"
		if cfg.Queue.Paused() {
			state = "paused"
		}
		if cfg.Queue.Running() {
			state = "cutting"
		}

		resp := StatusResponse{State: state}

		if src, ok := cfg.Queue.Source(); ok {
			resp.Source = &SourceResponse{
				Name:            src.Name,
				DurationSeconds: timecode.FormatClock(src.Duration),
				DurationRaw:     src.Duration,
			}
		}

		segs := cfg.Queue.Segments()
		resp.SegmentsTotal = len(segs)
		for _, seg := range segs {
			switch seg.Status {
			case studio.StatusDone:
				resp.SegmentsDone++
			case studio.StatusError:
				resp.SegmentsFailed++
				if resp.LastError == "" {
					resp.LastError = seg.Error
				}
			case studio.StatusProcessing:
				s := SegmentToResponse(seg, timecode.FormatClock)
				resp.ActiveSegment = &s
			}
		}
		resp.ClipsCount = len(cfg.Clips.List())

		WriteJSON(w, http.StatusOK, resp)
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := cfg.Repository.GetSettings(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SettingsToResponse(settings))
	}
}

func putSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettingsRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		settings := studio.Settings{
			APIKey:          req.APIKey,
			DefaultDuration: req.DefaultDuration,
			OutputFormat:    req.OutputFormat,
			AddFade:         req.AddFade,
			AudioOption:     req.AudioOption,
		}
		if err := settings.Validate(); err != nil {
			writeDomainError(w, err)
			return
		}
		if err := cfg.Repository.PutSettings(r.Context(), settings); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SettingsToResponse(settings))
	}
}

func setSourceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SetSourceRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		src, err := cfg.Queue.SetSource(r.Context(), req.Path)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, SourceResponse{
			Name:            src.Name,
			DurationSeconds: timecode.FormatClock(src.Duration),
			DurationRaw:     src.Duration,
		})
	}
}

func clearSourceHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Queue.ClearSource(); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listSegmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		segs := cfg.Queue.Segments()
		resp := SegmentsResponse{Segments: make([]SegmentResponse, len(segs))}
		for i, seg := range segs {
			resp.Segments[i] = SegmentToResponse(seg, timecode.FormatClock)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func addSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddSegmentRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		start, err := timecode.ParseClock(req.Start)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid start time", "VALIDATION")
			return
		}
		end, err := timecode.ParseClock(req.End)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid end time", "VALIDATION")
			return
		}

		source := req.Source
		if source == "" {
			source = studio.SourceManual
		}

		seg, err := cfg.Queue.Enqueue(start, end, req.Title, source)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, SegmentToResponse(seg, timecode.FormatClock))
	}
}

func removeSegmentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid segment id", "VALIDATION")
			return
		}
		if err := cfg.Queue.Remove(id); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// runSegmentsHandler checks the run preconditions synchronously and
// then drives the batch in the background. Progress is polled via
// /status and /segments.
func runSegmentsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Queue.CheckRunnable(); err != nil {
			writeDomainError(w, err)
			return
		}

		// the batch must outlive the request
		go func() {
			if err := cfg.Queue.RunAll(context.WithoutCancel(r.Context())); err != nil {
				cfg.Logger.Warn("batch run did not start", "error", err)
			}
		}()

		WriteJSON(w, http.StatusAccepted, RunResponse{Started: true})
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clips := cfg.Clips.List()
		resp := ClipsResponse{Clips: make([]ClipResponse, len(clips))}
		for i, c := range clips {
			resp.Clips[i] = ClipToResponse(c)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func updateAnnotationsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AnnotationsRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		clip, err := cfg.Clips.UpdateAnnotations(r.Context(), chi.URLParam(r, "id"), studio.Annotations{
			PlatformsPosted: req.PlatformsPosted,
			PostLinks:       req.PostLinks,
			Metrics: studio.Metrics{
				Views:    req.Views,
				Likes:    req.Likes,
				Comments: req.Comments,
			},
			PostingNotes: req.PostingNotes,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ClipToResponse(clip))
	}
}

func removeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Clips.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func clipMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clip, ok := cfg.Clips.Get(chi.URLParam(r, "id"))
		if !ok {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}
		if !clip.MediaAvailable || clip.MediaPath == "" {
			WriteError(w, http.StatusGone, "clip media is not available", "MEDIA_GONE")
			return
		}
		if err := cfg.MediaServer.ServeFile(w, r, clip.MediaPath, clip.Title); err != nil {
			cfg.Logger.Error("failed to serve clip media", "clip_id", clip.ID, "error", err)
		}
	}
}

func insightsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := cfg.Clips.Records(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, insights.Analyze(records))
	}
}

func getNotesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notes, err := cfg.Repository.GetNotes(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, NotesResponse{Notes: notes})
	}
}

func putNotesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req NotesRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if err := cfg.Repository.PutNotes(r.Context(), req.Notes); err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, NotesResponse{Notes: req.Notes})
	}
}

func metadataHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawURL := r.URL.Query().Get("url")
		if rawURL == "" {
			WriteError(w, http.StatusBadRequest, "url query parameter is required", "VALIDATION")
			return
		}

		videoID, err := metadata.ExtractVideoID(rawURL)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "VALIDATION")
			return
		}

		settings, err := cfg.Repository.GetSettings(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if settings.APIKey == "" {
			WriteError(w, http.StatusConflict, "no API key configured in settings", "PRECONDITION")
			return
		}

		info, err := cfg.Metadata.FetchVideo(r.Context(), videoID, settings.APIKey)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, info)
	}
}

func exportBackupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := cfg.Backup.Export(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		w.Header().Set("Content-Disposition", `attachment; filename="clipper-backup.json"`)
		WriteJSON(w, http.StatusOK, doc)
	}
}

func importBackupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "failed to read body", "VALIDATION")
			return
		}
		if err := cfg.Backup.Import(r.Context(), raw); err != nil {
			writeDomainError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
