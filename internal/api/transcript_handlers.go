package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/class-transcribe/internal/storage/sqlite"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// GetTranscripts returns archived transcripts with pagination, optionally
// filtered by ?meeting=
func (h *Handler) GetTranscripts(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		writeError(w, http.StatusServiceUnavailable, "transcript archive is not available")
		return
	}
	limit, offset := parsePaginationParams(r)
	meetingTitle := r.URL.Query().Get("meeting")

	records, err := h.transcripts.GetTranscripts(r.Context(), limit, offset, meetingTitle)
	if err != nil {
		h.logger.Error("Failed to retrieve transcripts", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve transcripts")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp":   h.clock.Now(),
		"count":       len(records),
		"transcripts": records,
	})
}

// GetTranscript returns a single archived transcript
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	if h.transcripts == nil {
		writeError(w, http.StatusServiceUnavailable, "transcript archive is not available")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transcript id")
		return
	}

	record, err := h.transcripts.GetTranscript(r.Context(), id)
	switch {
	case errors.Is(err, sqlite.ErrNotFound):
		writeError(w, http.StatusNotFound, "transcript not found")
	case err != nil:
		h.logger.Error("Failed to retrieve transcript", logger.Int64("id", id), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve transcript")
	default:
		WriteJSON(w, http.StatusOK, record)
	}
}

// Helper functions
func parsePaginationParams(r *http.Request) (int, int) {
	limit := 100 // Default limit
	offset := 0  // Default offset

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
