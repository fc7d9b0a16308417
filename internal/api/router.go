package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/recollect/recollect/internal/api/recovery"
	"github.com/recollect/recollect/internal/bisect"
	"github.com/recollect/recollect/internal/metrics"
	"github.com/recollect/recollect/internal/playback"
	"github.com/recollect/recollect/internal/store"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Engine     *bisect.Engine
	Recordings store.Recordings
	Streamer   playback.Streamer
	Log        zerolog.Logger
	// Healthy and Components back /api/health; nil reports unhealthy.
	Healthy    func() bool
	Components func() map[string]bool
}

// NewRouter wires HTTP routes to handlers.
func NewRouter(d Deps) *mux.Router {
	root := mux.NewRouter()
	root.Use(hlog.NewHandler(d.Log))
	root.Use(requestID)
	root.Use(recovery.Middleware)
	root.Use(metrics.Middleware)
	root.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))

	// Searches
	search := NewSearchHandler(d.Engine)
	root.HandleFunc("/search", search.CreateSearch).Methods("POST")
	root.HandleFunc("/search", search.ListSearches).Methods("GET")
	root.HandleFunc("/search/{searchId}", search.GetSearch).Methods("GET")
	root.HandleFunc("/search/{searchId}", search.UpdateSearch).Methods("PUT")
	root.HandleFunc("/search/{searchId}/prompt", search.GetPrompt).Methods("GET")

	// Catalog
	recs := NewRecordingHandler(d.Recordings)
	root.HandleFunc("/recordings", recs.ListRecordings).Methods("GET")
	root.HandleFunc("/recordings/{id}", recs.GetRecording).Methods("GET")
	root.HandleFunc("/statistics", recs.GetStatistics).Methods("GET")

	// Playback
	play := NewPlayHandler(d.Recordings, d.Streamer)
	root.HandleFunc("/play/{id}", play.Play).Methods("POST")

	// Health & metrics
	healthHandler := NewHealthHandler(d.Healthy, d.Components)
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	root.Handle("/metrics", metrics.Handler()).Methods("GET")

	return root
}

// requestID echoes or assigns X-Request-ID and tags the request logger with it.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		l := hlog.FromRequest(r).With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
	})
}
