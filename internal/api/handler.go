package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"NotiFlow/internal/bulk"
	"NotiFlow/internal/csvparser"
	"NotiFlow/internal/dispatch"
	"NotiFlow/internal/models"
	"NotiFlow/internal/queue"
)

const maxCSVRows = 10000

type Handler struct {
	Dispatcher *dispatch.Dispatcher
	Engine     *queue.Engine
	Bulk       *bulk.Processor
	Log        *zap.Logger
}

// Register wires all routes onto the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /send", h.Send)
	mux.HandleFunc("POST /send/async", h.SendAsync)
	mux.HandleFunc("POST /send/bulk", h.SendBulk)
	mux.HandleFunc("GET /jobs/{id}", h.JobStatus)
	mux.HandleFunc("DELETE /jobs/{id}", h.CancelJob)
	mux.HandleFunc("GET /queues/stats", h.QueueStats)
	mux.HandleFunc("POST /queues/cleanup", h.Cleanup)
	mux.HandleFunc("GET /health", h.Health)
}

type sendRequest struct {
	Channel  models.Channel         `json:"channel"`
	UserID   string                 `json:"user_id,omitempty"`
	To       string                 `json:"to"`
	Template string                 `json:"template"`
	Subject  string                 `json:"subject,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Send performs an immediate delivery and returns the structured
// result.
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	dreq := dispatch.SendRequest{
		Channel:  req.Channel,
		UserID:   req.UserID,
		To:       req.To,
		Template: req.Template,
		Subject:  req.Subject,
		Data:     req.Data,
	}
	if err := h.Dispatcher.Validate(dreq); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.Dispatcher.Send(r.Context(), dreq)
	h.writeJSON(w, http.StatusOK, result)
}

type asyncRequest struct {
	Lane        models.Lane            `json:"lane"`
	Type        models.JobType         `json:"type"`
	UserID      string                 `json:"user_id,omitempty"`
	To          string                 `json:"to"`
	Template    string                 `json:"template,omitempty"`
	Subject     string                 `json:"subject,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	DelaySec    int                    `json:"delay_seconds,omitempty"`
	MaxAttempts int                    `json:"max_attempts,omitempty"`
}

// SendAsync enqueues a deferred send and returns the job id. Once
// queued, failures surface only via job status (fire-and-forget).
func (h *Handler) SendAsync(w http.ResponseWriter, r *http.Request) {
	var req asyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Lane.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid lane")
		return
	}
	if req.To == "" {
		h.writeError(w, http.StatusBadRequest, "recipient is required")
		return
	}
	if req.Type == "" {
		req.Type = models.JobTransactional
	}

	payload := models.JobPayload{
		UserID:   req.UserID,
		To:       req.To,
		Subject:  req.Subject,
		Template: req.Template,
		Data:     req.Data,
	}

	var opts []queue.EnqueueOption
	if req.DelaySec > 0 {
		opts = append(opts, queue.WithDelay(time.Duration(req.DelaySec)*time.Second))
	}
	if req.MaxAttempts > 0 {
		opts = append(opts, queue.WithMaxAttempts(req.MaxAttempts))
	}

	jobID, err := h.Engine.Enqueue(r.Context(), req.Lane, req.Type, payload, opts...)
	if err != nil {
		h.Log.Error("enqueue failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

type bulkRequest struct {
	Type       models.JobType         `json:"type"`
	Template   string                 `json:"template,omitempty"`
	Subject    string                 `json:"subject,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Recipients []models.Recipient     `json:"recipients"`
}

// SendBulk accepts a recipient list as JSON or as a multipart CSV
// upload. By default the batch is queued on the bulk lane; ?sync=true
// runs it inline and returns the aggregate.
func (h *Handler) SendBulk(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeBulk(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Type == "" {
		req.Type = models.JobBulkEmail
	}
	if req.Type != models.JobBulkEmail && req.Type != models.JobBulkSMS {
		h.writeError(w, http.StatusBadRequest, "type must be bulk_email or bulk_sms")
		return
	}
	if len(req.Recipients) == 0 {
		h.writeError(w, http.StatusBadRequest, "recipients are required")
		return
	}

	payload := models.JobPayload{
		Subject:    req.Subject,
		Template:   req.Template,
		Data:       req.Data,
		Recipients: req.Recipients,
	}

	if r.URL.Query().Get("sync") == "true" {
		result, err := h.Dispatcher.RunBulk(r.Context(), h.Bulk, req.Type, payload)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeJSON(w, http.StatusOK, result)
		return
	}

	jobID, err := h.Engine.Enqueue(r.Context(), models.LaneBulk, req.Type, payload)
	if err != nil {
		h.Log.Error("bulk enqueue failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (h *Handler) decodeBulk(r *http.Request) (*bulkRequest, error) {
	ct := r.Header.Get("Content-Type")
	if len(ct) >= 19 && ct[:19] == "multipart/form-data" {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, errors.New("invalid multipart form")
		}
		file, _, err := r.FormFile("recipients")
		if err != nil {
			return nil, errors.New("recipients file is required")
		}
		defer file.Close()

		recipients, err := csvparser.ParseRecipients(file, maxCSVRows)
		if err != nil {
			return nil, err
		}
		return &bulkRequest{
			Type:       models.JobType(r.FormValue("type")),
			Template:   r.FormValue("template"),
			Subject:    r.FormValue("subject"),
			Recipients: recipients,
		}, nil
	}

	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.New("invalid request body")
	}
	return &req, nil
}

// JobStatus returns a snapshot of one job.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	lane := models.Lane(r.URL.Query().Get("lane"))
	if !lane.Valid() {
		h.writeError(w, http.StatusBadRequest, "valid lane query parameter is required")
		return
	}

	job, err := h.Engine.Status(r.Context(), id, lane)
	if errors.Is(err, queue.ErrJobNotFound) {
		h.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.Log.Error("job status failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

// CancelJob removes the job from future scheduling. An in-flight
// attempt is not interrupted.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	lane := models.Lane(r.URL.Query().Get("lane"))
	if !lane.Valid() {
		h.writeError(w, http.StatusBadRequest, "valid lane query parameter is required")
		return
	}

	err := h.Engine.Cancel(r.Context(), id, lane)
	if errors.Is(err, queue.ErrJobNotFound) {
		h.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		h.Log.Error("job cancel failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to cancel job")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"cancelled": true, "job_id": id})
}

// QueueStats reports per-lane job counts.
func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		h.Log.Error("queue stats failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

type cleanupRequest struct {
	OlderThanHours int `json:"older_than_hours,omitempty"`
}

// Cleanup removes finished jobs; retention caps apply regardless.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	var olderThan time.Time
	if req.OlderThanHours > 0 {
		olderThan = time.Now().Add(-time.Duration(req.OlderThanHours) * time.Hour)
	}

	removed, err := h.Engine.Cleanup(r.Context(), olderThan)
	if err != nil {
		h.Log.Error("cleanup failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to clean up jobs")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// Health reports per-transport reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "up",
		"transports": h.Dispatcher.Health(r.Context()),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("response encoding failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
