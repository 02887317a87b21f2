package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/printsmart/printd/internal/core"
	"github.com/printsmart/printd/internal/db"
)

type CreateUserRequest struct {
	Email          string  `json:"email" binding:"required,email"`
	InitialBalance float64 `json:"initial_balance" binding:"min=0"`
}

type TopUpRequest struct {
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	Reference string  `json:"reference"`
}

type LedgerQuery struct {
	Limit  int `form:"limit" binding:"max=200"`
	Offset int `form:"offset"`
}

type WalletHandler struct {
	db     *sql.DB
	ledger *core.Ledger
}

func NewWalletHandler(database *sql.DB, ledger *core.Ledger) *WalletHandler {
	return &WalletHandler{db: database, ledger: ledger}
}

func (h *WalletHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user := &db.User{
		ID:            uuid.NewString(),
		Email:         req.Email,
		WalletBalance: req.InitialBalance,
	}
	if err := db.CreateUser(c.Request.Context(), h.db, user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *WalletHandler) GetUser(c *gin.Context) {
	user, err := db.GetUser(c.Request.Context(), h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	balance, err := h.ledger.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *WalletHandler) TopUp(c *gin.Context) {
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := h.ledger.Credit(c.Request.Context(), c.Param("id"), req.Amount, core.ReasonTopUp, req.Reference)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to credit wallet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (h *WalletHandler) ListLedgerEntries(c *gin.Context) {
	var query LedgerQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := h.ledger.Entries(c.Request.Context(), c.Param("id"), query.Limit, query.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list ledger entries"})
		return
	}
	if entries == nil {
		entries = []*db.LedgerEntry{}
	}
	c.JSON(http.StatusOK, entries)
}
