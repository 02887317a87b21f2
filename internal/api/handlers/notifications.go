package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printsmart/printd/internal/db"
)

type NotificationsQuery struct {
	Limit  int `form:"limit" binding:"max=200"`
	Offset int `form:"offset"`
}

type NotificationHandler struct {
	db *sql.DB
}

func NewNotificationHandler(database *sql.DB) *NotificationHandler {
	return &NotificationHandler{db: database}
}

func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	var query NotificationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}

	notifications, err := db.GetNotificationsByUser(c.Request.Context(), h.db, c.Param("id"), query.Limit, query.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list notifications"})
		return
	}
	if notifications == nil {
		notifications = []*db.Notification{}
	}
	c.JSON(http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	result, err := h.db.ExecContext(c.Request.Context(), db.MarkNotificationRead, c.Param("nid"), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark notification read"})
		return
	}
	affected, err := result.RowsAffected()
	if err != nil || affected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "marked read"})
}
