package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	respond "github.com/recollect/recollect/internal/api/respond"
	"github.com/recollect/recollect/internal/api/validate"
	"github.com/recollect/recollect/internal/bisect"
	"github.com/recollect/recollect/internal/model"
)

// SearchHandler is a thin HTTP transport over the bisection engine.
type SearchHandler struct {
	engine *bisect.Engine
}

func NewSearchHandler(engine *bisect.Engine) *SearchHandler { return &SearchHandler{engine: engine} }

type createSearchRequest struct {
	Duration *model.Seconds `json:"duration"`
	Lower    *time.Time     `json:"lower"`
	Upper    *time.Time     `json:"upper"`
}

type updateSearchRequest struct {
	Prompt *model.SearchPrompt `json:"prompt"`
	Result model.Result        `json:"result"`
}

// decodeBody decodes an optional JSON body; an empty body leaves dst untouched.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(err, model.ErrValidation) {
			return err
		}
		return fmt.Errorf("%w: invalid JSON: %v", model.ErrValidation, err)
	}
	return nil
}

// CreateSearch POST /search
func (h *SearchHandler) CreateSearch(w http.ResponseWriter, r *http.Request) {
	var req createSearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate.Positive("duration", req.Duration); err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.engine.Create(r.Context(), bisect.CreateRequest{
		Duration: req.Duration,
		Lower:    req.Lower,
		Upper:    req.Upper,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, s)
}

// ListSearches GET /search?status=active|completed
func (h *SearchHandler) ListSearches(w http.ResponseWriter, r *http.Request) {
	var status *model.Status
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := model.ParseStatus(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		status = &st
	}
	list, err := h.engine.List(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"searches": list, "count": len(list)})
}

// GetSearch GET /search/{searchId}
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	s, err := h.engine.Get(r.Context(), mux.Vars(r)["searchId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, s)
}

// GetPrompt GET /search/{searchId}/prompt?strategy=midpoint|coverage
func (h *SearchHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	var strategy bisect.Strategy
	if v := r.URL.Query().Get("strategy"); v != "" {
		st, err := bisect.ParseStrategy(v)
		if err != nil {
			writeError(w, r, err)
			return
		}
		strategy = st
	}
	p, err := h.engine.NextPrompt(r.Context(), mux.Vars(r)["searchId"], strategy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// UpdateSearch PUT /search/{searchId}
func (h *SearchHandler) UpdateSearch(w http.ResponseWriter, r *http.Request) {
	var req updateSearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Prompt == nil || req.Prompt.Timestamp.IsZero() {
		respond.WriteBadRequest(w, "prompt.timestamp is required")
		return
	}
	s, err := h.engine.Submit(r.Context(), mux.Vars(r)["searchId"], *req.Prompt, req.Result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, s)
}
