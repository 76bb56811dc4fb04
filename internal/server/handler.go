// Package server exposes the search use case over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"phrasematch/internal/adapter/fuzzy"
	"phrasematch/internal/domain"
	"phrasematch/internal/usecase"
)

// Handler holds the HTTP endpoints.
type Handler struct {
	search   *usecase.SearchUseCase
	maxBatch int
	log      *logrus.Entry
}

func NewHandler(search *usecase.SearchUseCase, maxBatch int, log *logrus.Entry) *Handler {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &Handler{
		search:   search,
		maxBatch: maxBatch,
		log:      log.WithField("component", "http"),
	}
}

// SearchResponse is the body of a search.
type SearchResponse struct {
	Query   string         `json:"query"`
	Limit   int            `json:"limit"`
	Matches []domain.Match `json:"matches"`
}

// BatchRequest is the body of a batch search.
type BatchRequest struct {
	Queries []string `json:"queries"`
	Limit   int      `json:"limit"`
}

// BatchResponse is the body returned for a batch search.
type BatchResponse struct {
	Limit   int              `json:"limit"`
	Results []SearchResponse `json:"results"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	limit = h.search.Limit(limit)

	matches, err := h.search.Search(query, limit)
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, SearchResponse{Query: query, Limit: limit, Matches: matches})
}

func (h *Handler) SearchBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Queries) == 0 {
		h.writeError(w, http.StatusBadRequest, "queries must not be empty")
		return
	}
	if len(req.Queries) > h.maxBatch {
		h.writeError(w, http.StatusBadRequest, "too many queries in batch")
		return
	}
	if req.Limit < 0 {
		h.writeError(w, http.StatusBadRequest, "limit must not be negative")
		return
	}
	limit := h.search.Limit(req.Limit)

	results, err := h.search.SearchBatch(r.Context(), req.Queries, limit)
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	resp := BatchResponse{Limit: limit, Results: make([]SearchResponse, len(results))}
	for i, matches := range results {
		resp.Results[i] = SearchResponse{Query: req.Queries[i], Limit: limit, Matches: matches}
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Snapshot serves the encoded index for client-side search.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	data, err := h.search.Snapshot()
	if err != nil {
		h.writeSearchError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log.WithError(err).Warn("failed to write snapshot")
	}
}

func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	result, err := h.search.Reload(r.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrReloadUnavailable) {
			h.writeError(w, http.StatusNotImplemented, err.Error())
			return
		}
		h.log.WithError(err).Error("reload failed")
		h.writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "reloaded",
		"stats":       result.Stats,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	info, err := h.search.Info()
	if err != nil {
		h.writeSearchError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, info)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !h.search.Ready() {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeSearchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrNoIndex):
		h.writeError(w, http.StatusServiceUnavailable, "index is not loaded yet")
	case errors.Is(err, fuzzy.ErrCorruptIndex):
		h.writeError(w, http.StatusInternalServerError, "index is corrupt")
	default:
		h.log.WithError(err).Error("search failed")
		h.writeError(w, http.StatusInternalServerError, "search failed")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.WithError(err).Error("failed to write response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
