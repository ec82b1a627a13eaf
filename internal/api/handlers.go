package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yegors/class-transcribe/internal/audio"
	"github.com/yegors/class-transcribe/internal/clock"
	"github.com/yegors/class-transcribe/internal/control"
	"github.com/yegors/class-transcribe/internal/job"
	"github.com/yegors/class-transcribe/internal/meeting"
	"github.com/yegors/class-transcribe/internal/storage/sqlite"
	"github.com/yegors/class-transcribe/internal/websocket"
	"github.com/yegors/class-transcribe/pkg/logger"
)

// Caller runs fn on the goroutine that owns the coordinator
type Caller interface {
	Call(ctx context.Context, fn func()) error
}

// JobHistory reads journaled jobs
type JobHistory interface {
	GetJobs(ctx context.Context, limit, offset int) ([]*sqlite.JobRecord, error)
	GetJob(ctx context.Context, id string) (*sqlite.JobRecord, error)
}

// TranscriptArchive reads archived transcripts
type TranscriptArchive interface {
	GetTranscripts(ctx context.Context, limit, offset int, meeting string) ([]*sqlite.TranscriptRecord, error)
	GetTranscript(ctx context.Context, id int64) (*sqlite.TranscriptRecord, error)
}

// Deps are the services the API reads from and drives
type Deps struct {
	Loop        Caller
	Coordinator *control.Coordinator
	Schedule    *meeting.Weekly
	History     JobHistory
	Transcripts TranscriptArchive
	WS          *websocket.Server
	Clock       clock.Clock
	Logger      *logger.Logger
}

// Handler contains the API handlers
type Handler struct {
	loop        Caller
	coord       *control.Coordinator
	schedule    *meeting.Weekly
	history     JobHistory
	transcripts TranscriptArchive
	wsServer    *websocket.Server
	clock       clock.Clock
	logger      *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Deps) *Handler {
	c := deps.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Handler{
		loop:        deps.Loop,
		coord:       deps.Coordinator,
		schedule:    deps.Schedule,
		history:     deps.History,
		transcripts: deps.Transcripts,
		wsServer:    deps.WS,
		clock:       c,
		logger:      deps.Logger.Named("api"),
	}
}

// onLoop runs fn against the coordinator and writes a 503 when the loop is gone
func (h *Handler) onLoop(w http.ResponseWriter, r *http.Request, fn func()) bool {
	if err := h.loop.Call(r.Context(), fn); err != nil {
		h.logger.Warn("Event loop unavailable", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "service is shutting down")
		return false
	}
	return true
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":    "ok",
		"timestamp": h.clock.Now(),
	}
	if h.wsServer != nil {
		response["ws_clients"] = h.wsServer.ClientCount()
	}
	WriteJSON(w, http.StatusOK, response)
}

// GetStatus returns the status line and scheduler state
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var overview control.Overview
	if !h.onLoop(w, r, func() { overview = h.coord.Overview() }) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp": h.clock.Now(),
		"overview":  overview,
	})
}

// ToggleRecording starts a manual recording or stops the running one
func (h *Handler) ToggleRecording(w http.ResponseWriter, r *http.Request) {
	var snap job.Snapshot
	if !h.onLoop(w, r, func() { snap = h.coord.RequestRecording().Snapshot() }) {
		return
	}
	if snap.Error != nil {
		writeJobError(w, snap)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"job": snap})
}

// StopRecording finishes the running recording early
func (h *Handler) StopRecording(w http.ResponseWriter, r *http.Request) {
	var (
		snap  job.Snapshot
		found bool
	)
	if !h.onLoop(w, r, func() {
		var j *job.Job
		if j, found = h.coord.StopRecording(); found {
			snap = j.Snapshot()
		}
	}) {
		return
	}
	if !found {
		writeError(w, http.StatusConflict, "no recording in progress")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"job": snap})
}

type transcriptionRequest struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

// SubmitTranscription starts a transcription-only job for a file on disk
func (h *Handler) SubmitTranscription(w http.ResponseWriter, r *http.Request) {
	var req transcriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	info, err := os.Stat(req.Path)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "file not found: "+req.Path)
		return
	}
	mediaType, err := audio.DetectMedia(req.Path)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, audio.ErrUnsupportedMedia) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	var snap job.Snapshot
	if !h.onLoop(w, r, func() { snap = h.coord.SubmitTranscription(req.Path, req.Title).Snapshot() }) {
		return
	}
	h.logger.Info("Transcription submitted",
		logger.String("job_id", snap.ID),
		logger.String("path", req.Path),
		logger.String("media_type", mediaType))
	if snap.Error != nil {
		writeJobError(w, snap)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"job": snap, "media_type": mediaType})
}

// GetJobs returns the active jobs
func (h *Handler) GetJobs(w http.ResponseWriter, r *http.Request) {
	var (
		jobs    []job.Snapshot
		tracked string
	)
	if !h.onLoop(w, r, func() {
		jobs = h.coord.Jobs()
		tracked, _ = h.coord.Tracked()
	}) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp":      h.clock.Now(),
		"count":          len(jobs),
		"tracked_job_id": tracked,
		"jobs":           jobs,
	})
}

// GetJobHistory returns journaled jobs with pagination
func (h *Handler) GetJobHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "job history is not available")
		return
	}
	limit, offset := parsePaginationParams(r)
	records, err := h.history.GetJobs(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to retrieve job history", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to retrieve job history")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"timestamp": h.clock.Now(),
		"count":     len(records),
		"jobs":      records,
	})
}

// GetJob returns an active job, or its journaled record once it has finished
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		snap   job.Snapshot
		active bool
	)
	if !h.onLoop(w, r, func() { snap, active = h.coord.Job(id) }) {
		return
	}
	if active {
		WriteJSON(w, http.StatusOK, map[string]any{"active": true, "job": snap})
		return
	}

	if h.history != nil {
		record, err := h.history.GetJob(r.Context(), id)
		switch {
		case err == nil:
			WriteJSON(w, http.StatusOK, map[string]any{"active": false, "job": record})
			return
		case !errors.Is(err, sqlite.ErrNotFound):
			h.logger.Error("Failed to retrieve job", logger.String("id", id), logger.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to retrieve job")
			return
		}
	}
	writeError(w, http.StatusNotFound, "job not found: "+id)
}

// CancelJob cancels an active job
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var err error
	if !h.onLoop(w, r, func() { err = h.coord.CancelJob(id) }) {
		return
	}
	switch {
	case errors.Is(err, control.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusConflict, err.Error())
	default:
		WriteJSON(w, http.StatusAccepted, map[string]any{"id": id, "canceled": true})
	}
}

// HandleWebSocket handles WebSocket connections
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.wsServer.HandleConnection(w, r)
}

// HandleMessage answers client requests sent over the websocket
func (h *Handler) HandleMessage(client *websocket.Client, messageType string, _ map[string]any) error {
	if messageType != websocket.MessageTypeStatusRequest {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var overview control.Overview
	if err := h.loop.Call(ctx, func() { overview = h.coord.Overview() }); err != nil {
		return err
	}
	client.Reply("status", map[string]any{"overview": overview})
	return nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// writeJobError reports a job that failed before it could start
func writeJobError(w http.ResponseWriter, snap job.Snapshot) {
	status := http.StatusInternalServerError
	switch snap.Error.Code {
	case "permission_denied", "already_recording", "capture_device":
		status = http.StatusConflict
	}
	WriteJSON(w, status, map[string]any{"error": snap.Error.Message, "job": snap})
}
