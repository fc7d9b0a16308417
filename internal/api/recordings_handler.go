package api

import (
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/recollect/recollect/internal/api/respond"
	"github.com/recollect/recollect/internal/api/validate"
	"github.com/recollect/recollect/internal/model"
	"github.com/recollect/recollect/internal/store"
)

// RecordingHandler exposes read-only catalog browsing.
type RecordingHandler struct {
	recs store.Recordings
}

func NewRecordingHandler(recs store.Recordings) *RecordingHandler {
	return &RecordingHandler{recs: recs}
}

// ListRecordings GET /recordings?start=&end=
func (h *RecordingHandler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := validate.OptionalTimestamp("start", q.Get("start"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := validate.OptionalTimestamp("end", q.Get("end"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Range(start, end); err != nil {
		writeError(w, r, err)
		return
	}
	recs, err := h.recs.List(r.Context(), model.ListRecordingsRequest{Start: start, End: end})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recs == nil {
		recs = []*model.Recording{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"recordings": recs, "count": len(recs)})
}

// GetRecording GET /recordings/{id}
func (h *RecordingHandler) GetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recs.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, rec)
}

// GetStatistics GET /statistics
func (h *RecordingHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	sum, err := h.recs.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, sum)
}
