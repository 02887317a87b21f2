package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/printsmart/printd/internal/db"
)

type CreateWebhookRequest struct {
	Name    string   `json:"name" binding:"required"`
	URL     string   `json:"url" binding:"required,url"`
	Secret  string   `json:"secret"`
	Events  []string `json:"events" binding:"required,min=1"`
	Enabled *bool    `json:"enabled"`
}

type WebhookHandler struct {
	db *sql.DB
}

func NewWebhookHandler(database *sql.DB) *WebhookHandler {
	return &WebhookHandler{db: database}
}

func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventsJSON, err := json.Marshal(req.Events)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize events"})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	result, err := h.db.ExecContext(c.Request.Context(), db.InsertWebhook,
		req.Name, req.URL, req.Secret, string(eventsJSON), enabled)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create webhook"})
		return
	}
	id, _ := result.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	rows, err := h.db.QueryContext(c.Request.Context(), db.ListWebhooks)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list webhooks"})
		return
	}
	defer rows.Close()

	webhooks := []*db.Webhook{}
	for rows.Next() {
		w := &db.Webhook{}
		if err := rows.Scan(&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &w.Enabled, &w.CreatedAt); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to scan webhook"})
			return
		}
		w.Secret = ""
		webhooks = append(webhooks, w)
	}
	c.JSON(http.StatusOK, webhooks)
}

func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook id"})
		return
	}

	result, err := h.db.ExecContext(c.Request.Context(), db.DeleteWebhook, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete webhook"})
		return
	}
	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "webhook not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "webhook deleted"})
}
