package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/printsmart/printd/internal/archive"
	"github.com/printsmart/printd/internal/core"
)

type SweepRequest struct {
	PendingTimeoutMinutes    int  `json:"pending_timeout_minutes"`
	ProcessingTimeoutMinutes int  `json:"processing_timeout_minutes"`
	DryRun                   bool `json:"dry_run"`
	TestMode                 bool `json:"test_mode"`
}

type AdminHandler struct {
	sweeper  *core.Sweeper
	monitor  *core.HealthMonitor
	archiver *archive.Archiver
}

func NewAdminHandler(sweeper *core.Sweeper, monitor *core.HealthMonitor, archiver *archive.Archiver) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, monitor: monitor, archiver: archiver}
}

// RunSweep triggers one sweeper pass outside the schedule.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.sweeper.Sweep(c.Request.Context(), core.SweepOptions{
		PendingTimeout:    time.Duration(req.PendingTimeoutMinutes) * time.Minute,
		ProcessingTimeout: time.Duration(req.ProcessingTimeoutMinutes) * time.Minute,
		DryRun:            req.DryRun,
		TestMode:          req.TestMode,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RunHealthCheck triggers one monitor pass outside the schedule.
func (h *AdminHandler) RunHealthCheck(c *gin.Context) {
	summary, err := h.monitor.CheckAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "health check failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RunArchive triggers one retention pass.
func (h *AdminHandler) RunArchive(c *gin.Context) {
	count, err := h.archiver.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "archive failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": count})
}

func (h *AdminHandler) ListArchives(c *gin.Context) {
	archives, err := h.archiver.ListArchives()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list archives"})
		return
	}
	if archives == nil {
		archives = []*archive.ArchiveFile{}
	}
	c.JSON(http.StatusOK, archives)
}
