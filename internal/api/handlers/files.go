package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/printsmart/printd/internal/db"
)

type RegisterFileRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	Filename  string `json:"filename" binding:"required"`
	FileType  string `json:"file_type" binding:"required"`
	PageCount int    `json:"page_count" binding:"required,min=1"`
}

type FileHandler struct {
	db *sql.DB
}

func NewFileHandler(database *sql.DB) *FileHandler {
	return &FileHandler{db: database}
}

// RegisterFile records document metadata ahead of a job submission.
// Content storage lives elsewhere; only the page count and format
// matter for pricing and timeouts.
func (h *FileHandler) RegisterFile(c *gin.Context) {
	var req RegisterFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	file := &db.File{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Filename:  req.Filename,
		FileType:  req.FileType,
		PageCount: req.PageCount,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.CreateFile(c.Request.Context(), h.db, file); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register file"})
		return
	}
	c.JSON(http.StatusCreated, file)
}

func (h *FileHandler) GetFile(c *gin.Context) {
	file, err := db.GetFile(c.Request.Context(), h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get file"})
		return
	}
	c.JSON(http.StatusOK, file)
}
