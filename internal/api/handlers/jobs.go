package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printsmart/printd/internal/core"
	"github.com/printsmart/printd/internal/db"
)

type SubmitJobRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	FileID      string `json:"file_id" binding:"required"`
	PrinterID   string `json:"printer_id" binding:"required"`
	Copies      int    `json:"copies"`
	Pages       string `json:"pages"`
	ColorMode   string `json:"color_mode"`
	PaperSize   string `json:"paper_size"`
	Quality     string `json:"print_quality"`
	Duplex      bool   `json:"duplex"`
	Collate     bool   `json:"collate"`
	Orientation string `json:"orientation"`
	Priority    int    `json:"priority"`
}

type ListJobsQuery struct {
	UserID string `form:"user_id"`
	Status string `form:"status"`
	Limit  int    `form:"limit" binding:"max=100"`
	Offset int    `form:"offset"`
}

type ProgressRequest struct {
	PagesPrinted int `json:"pages_printed" binding:"min=0"`
}

type FailRequest struct {
	Reason      string `json:"reason" binding:"required"`
	ShouldRetry bool   `json:"should_retry"`
}

type QueueResponse struct {
	Pending    int `json:"pending"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Printing   int `json:"printing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

type JobHandler struct {
	db   *sql.DB
	jobs *core.JobManager
}

func NewJobHandler(database *sql.DB, jobs *core.JobManager) *JobHandler {
	return &JobHandler{db: database, jobs: jobs}
}

func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), core.SubmitRequest{
		UserID:      req.UserID,
		FileID:      req.FileID,
		PrinterID:   req.PrinterID,
		Copies:      req.Copies,
		Pages:       req.Pages,
		ColorMode:   core.ColorMode(req.ColorMode),
		PaperSize:   req.PaperSize,
		Quality:     core.PrintQuality(req.Quality),
		Duplex:      req.Duplex,
		Collate:     req.Collate,
		Orientation: req.Orientation,
		Priority:    req.Priority,
	})
	if err != nil {
		var ve *core.ValidationError
		switch {
		case errors.As(err, &ve):
			c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
		case errors.Is(err, core.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient funds"})
		case errors.Is(err, core.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit job"})
		}
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 50
	}

	var jobs []*db.PrintJob
	var err error
	switch {
	case query.UserID != "":
		jobs, err = db.QueryJobs(c.Request.Context(), h.db, db.ListJobsByUser, query.UserID, query.Limit, query.Offset)
	case query.Status != "":
		jobs, err = db.QueryJobs(c.Request.Context(), h.db, db.ListJobsByStatus, query.Status, query.Limit, query.Offset)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id or status is required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	if jobs == nil {
		jobs = []*db.PrintJob{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	err := h.jobs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, core.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "only pending jobs can be cancelled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

func (h *JobHandler) RetryJob(c *gin.Context) {
	err := h.jobs.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, core.ErrNotRetryable):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, core.ErrInsufficientFunds):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient funds"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry job"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job re-queued"})
}

func (h *JobHandler) StartJob(c *gin.Context) {
	err := h.jobs.Start(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrInvalidState) {
			c.JSON(http.StatusConflict, gin.H{"error": "job is not pending or queued"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "job started"})
}

func (h *JobHandler) UpdateProgress(c *gin.Context) {
	var req ProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobs.UpdateProgress(c.Request.Context(), c.Param("id"), req.PagesPrinted)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		case errors.Is(err, core.ErrInvalidState):
			c.JSON(http.StatusConflict, gin.H{"error": "job is not in progress"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update progress"})
		}
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) FailJob(c *gin.Context) {
	var req FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	retried, err := h.jobs.MarkFailed(c.Request.Context(), c.Param("id"), req.Reason, req.ShouldRetry)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark job failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"retried": retried})
}

func (h *JobHandler) GetQueue(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(), db.CountJobsByStatus)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get queue stats"})
		return
	}
	defer rows.Close()

	var resp QueueResponse
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan queue stats"})
			return
		}
		switch core.JobStatus(status) {
		case core.JobStatusPending:
			resp.Pending = count
		case core.JobStatusQueued:
			resp.Queued = count
		case core.JobStatusProcessing:
			resp.Processing = count
		case core.JobStatusPrinting:
			resp.Printing = count
		case core.JobStatusCompleted:
			resp.Completed = count
		case core.JobStatusFailed:
			resp.Failed = count
		case core.JobStatusCancelled:
			resp.Cancelled = count
		}
		resp.Total += count
	}
	c.JSON(http.StatusOK, resp)
}
