// File: internal/infra/web/handlers.go
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/infra/metrics"
	"video-analysis-platform/internal/usecase"
)

type jobCreateRequest struct {
	JobID        string            `json:"job_id"`
	UserID       string            `json:"user_id"`
	VideoID      string            `json:"video_id"`
	SourceBucket string            `json:"source_bucket"`
	SourceKey    string            `json:"source_key"`
	Options      map[string]string `json:"options,omitempty"`
}

// jobResponse is the wire shape of a ProcessingJob.
type jobResponse struct {
	ID               string             `json:"id"`
	RemoteID         string             `json:"remote_id,omitempty"`
	UserID           string             `json:"user_id"`
	VideoID          string             `json:"video_id"`
	Params           model.JobParams    `json:"params"`
	Status           model.JobStatus    `json:"status"`
	RetryCount       int                `json:"retry_count"`
	RetryLimit       int                `json:"retry_limit"`
	RetriesRemaining int                `json:"retries_remaining"`
	ParentJobID      *string            `json:"parent_job_id,omitempty"`
	LastError        string             `json:"last_error,omitempty"`
	ErrorDetail      *model.ErrorDetail `json:"error_detail,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
}

func toJobResponse(j *model.ProcessingJob) jobResponse {
	resp := jobResponse{
		ID:               j.ID,
		RemoteID:         j.RemoteID,
		UserID:           j.UserID,
		VideoID:          j.VideoID,
		Params:           j.Params,
		Status:           j.Status,
		RetryCount:       j.RetryCount,
		RetryLimit:       j.RetryLimit,
		RetriesRemaining: j.RetriesRemaining(),
		ParentJobID:      j.ParentJobID,
		LastError:        j.LastError,
		CreatedAt:        j.CreatedAt,
		StartedAt:        j.StartedAt,
		CompletedAt:      j.CompletedAt,
	}
	if j.ErrorDetail.Category != model.ErrCategoryNone {
		detail := j.ErrorDetail
		resp.ErrorDetail = &detail
	}
	return resp
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req jobCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	params := model.JobParams{
		SourceBucket: req.SourceBucket,
		SourceKey:    req.SourceKey,
		Options:      req.Options,
	}
	job, err := s.jobUC.Create(ctx, req.JobID, req.UserID, req.VideoID, params)
	if err != nil {
		if job != nil {
			// Persisted but dispatch failed: the record exists in a retryable
			// failed state, so the client gets it back alongside the error.
			s.log.Warn().Str("job_id", job.ID).Err(err).Msg("job created but dispatch failed")
			writeJSON(w, http.StatusBadGateway, struct {
				Job   jobResponse `json:"job"`
				Error string      `json:"error"`
			}{toJobResponse(job), "dispatch failed"})
			return
		}
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toJobResponse(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

type jobStatusResponse struct {
	Job              jobResponse            `json:"job"`
	State            string                 `json:"state"`
	Dispatched       bool                   `json:"dispatched"`
	Verdict          *verdictResponse       `json:"verdict,omitempty"`
	Progress         *usecase.StageProgress `json:"progress,omitempty"`
	RetriesRemaining int                    `json:"retries_remaining"`
}

type verdictResponse struct {
	IsAlive               bool   `json:"is_alive"`
	CompletedSuccessfully bool   `json:"completed_successfully"`
	WorkerDied            bool   `json:"worker_died"`
	ShouldRetry           bool   `json:"should_retry"`
	ErrorMessage          string `json:"error,omitempty"`
	Category              string `json:"category,omitempty"`
	RemoteState           string `json:"remote_state,omitempty"`
}

// handleJobStatus accepts either an internal job id or a remote execution id.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	view, err := s.statusUC.Query(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapDomainError(w, err)
		return
	}
	metrics.ObservePollLatency(float64(time.Since(start).Milliseconds()))

	resp := jobStatusResponse{
		Job:              toJobResponse(view.Job),
		State:            string(view.Job.Status),
		Dispatched:       view.Dispatched,
		Progress:         view.Progress,
		RetriesRemaining: view.RetriesRemaining,
	}
	if !view.Dispatched {
		// Known job that has not been handed to the execution service yet.
		resp.State = "not_yet_dispatched"
	}
	if v := view.Verdict; v != nil {
		resp.Verdict = &verdictResponse{
			IsAlive:               v.IsAlive,
			CompletedSuccessfully: v.CompletedSuccessfully,
			WorkerDied:            v.WorkerDied,
			ShouldRetry:           v.ShouldRetry,
			ErrorMessage:          v.ErrorMessage,
			Category:              string(v.Category),
			RemoteState:           string(v.RemoteState),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	successor, err := s.jobUC.Retry(r.Context(), jobID)
	if err != nil {
		if successor != nil {
			// Successor persisted but its dispatch failed; it is itself retryable.
			writeJSON(w, http.StatusBadGateway, struct {
				Job   jobResponse `json:"job"`
				Error string      `json:"error"`
			}{toJobResponse(successor), "dispatch failed"})
			return
		}
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Job         jobResponse `json:"job"`
		ParentJobID string      `json:"parent_job_id"`
	}{toJobResponse(successor), jobID})
}

type webhookRequest struct {
	JobID    string          `json:"jobId"`
	Status   string          `json:"status"`
	Step     string          `json:"step,omitempty"`
	Progress *float64        `json:"progress,omitempty"`
	Stage    string          `json:"stage,omitempty"`
	Error    string          `json:"error,omitempty"`
	Results  json.RawMessage `json:"results,omitempty"`
}

// handleRunnerWebhook ingests an asynchronous status push from the execution
// service. The push must carry the callback token minted at dispatch, and its
// jobId must match the job the token was bound to.
func (s *Server) handleRunnerWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing callback token", "")
		return
	}
	boundJobID, err := s.verifier.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid callback token", "")
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.JobID == "" || req.Status == "" {
		writeError(w, http.StatusBadRequest, "jobId and status are required", "")
		return
	}
	if req.JobID != boundJobID {
		writeError(w, http.StatusForbidden, "token is not valid for this job", "")
		return
	}

	update := model.JobUpdate{
		JobID:      req.JobID,
		Status:     req.Status,
		Step:       req.Step,
		Progress:   req.Progress,
		Stage:      req.Stage,
		Error:      req.Error,
		Results:    req.Results,
		ReceivedAt: time.Now(),
	}
	listeners := s.events.Publish(req.JobID, update)
	metrics.IncWebhookUpdate(req.Status)

	s.applyWebhookTransition(ctx, req)

	writeJSON(w, http.StatusOK, struct {
		Received  bool `json:"received"`
		Listeners int  `json:"listeners"`
	}{true, listeners})
}

// applyWebhookTransition folds a terminal push into the stored record,
// best-effort. A claimed completion without results is left alone; the poll
// path corroborates against storage before trusting it either way.
func (s *Server) applyWebhookTransition(ctx context.Context, req webhookRequest) {
	var status model.JobStatus
	switch req.Status {
	case string(model.JobStatusCompleted):
		if len(req.Results) == 0 {
			return
		}
		status = model.JobStatusCompleted
	case string(model.JobStatusFailed):
		status = model.JobStatusFailed
	case string(model.JobStatusRunning):
		status = model.JobStatusRunning
	default:
		return
	}

	var detail *model.ErrorDetail
	if status == model.JobStatusFailed {
		detail = &model.ErrorDetail{Category: model.ErrCategoryRemote, Context: "webhook"}
	}
	if _, err := s.jobUC.Transition(ctx, req.JobID, status, req.Error, detail); err != nil {
		s.log.Debug().Str("job_id", req.JobID).Str("status", req.Status).Err(err).
			Msg("webhook transition not applied")
	}
}

type uploadInitRequest struct {
	OwnerID     string `json:"owner_id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

func (s *Server) handleInitUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	plan, err := s.uploadUC.Initialize(r.Context(), req.OwnerID, req.Filename, req.Size, req.ContentType)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

type uploadCompleteRequest struct {
	Plan  *model.UploadPlan `json:"plan"`
	Parts []model.PartAck   `json:"parts,omitempty"`
}

func (s *Server) handleCompleteUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	asset, err := s.uploadUC.Complete(r.Context(), req.Plan, req.Parts)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

type uploadAbortRequest struct {
	Plan *model.UploadPlan `json:"plan"`
}

func (s *Server) handleAbortUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadAbortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if err := s.uploadUC.Abort(r.Context(), req.Plan); err != nil {
		mapDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"aborted": true})
}
