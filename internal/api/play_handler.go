package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/hlog"

	respond "github.com/recollect/recollect/internal/api/respond"
	"github.com/recollect/recollect/internal/api/validate"
	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/playback"
	"github.com/recollect/recollect/internal/store"
)

// PlayHandler streams a clip of a recording as MP3.
type PlayHandler struct {
	recs     store.Recordings
	streamer playback.Streamer
}

func NewPlayHandler(recs store.Recordings, streamer playback.Streamer) *PlayHandler {
	return &PlayHandler{recs: recs, streamer: streamer}
}

type playRequest struct {
	Offset   *model.Seconds `json:"offset"`
	Duration *model.Seconds `json:"duration"`
}

// Play POST /play/{id}
func (h *PlayHandler) Play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.NonNegative("offset", req.Offset); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Positive("duration", req.Duration); err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := h.recs.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec.FilePath == "" {
		respond.WriteNotFound(w, "recording has no file")
		return
	}
	if err := playback.CheckFile(rec.FilePath); err != nil {
		writeError(w, r, err)
		return
	}

	clip := playback.Request{Path: rec.FilePath}
	if req.Offset != nil {
		clip.Offset = req.Offset.Duration()
	}
	if req.Duration != nil {
		clip.Duration = req.Duration.Duration()
	}

	hlog.FromRequest(r).Info().
		Str("recording_id", rec.ID).
		Dur("offset", clip.Offset).
		Dur("duration", clip.Duration).
		Msg("playing recording")

	out := &lazyAudioWriter{w: w}
	err = h.streamer.Stream(r.Context(), out, clip)
	switch {
	case err == nil:
		if !out.started {
			out.start()
		}
	case errors.Is(err, context.Canceled):
		// client went away
	case !out.started:
		writeError(w, r, err)
	default:
		hlog.FromRequest(r).Error().Err(err).Str("recording_id", rec.ID).Msg("stream aborted")
	}
}

// lazyAudioWriter defers the 200 header until the first audio bytes so an
// early transcoder failure can still be reported as JSON.
type lazyAudioWriter struct {
	w       http.ResponseWriter
	started bool
}

func (l *lazyAudioWriter) start() {
	l.started = true
	l.w.Header().Set("Content-Type", "audio/mpeg")
	l.w.Header().Set("Cache-Control", "no-store")
	l.w.WriteHeader(http.StatusOK)
}

func (l *lazyAudioWriter) Write(p []byte) (int, error) {
	if !l.started {
		l.start()
	}
	n, err := l.w.Write(p)
	if f, ok := l.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}
