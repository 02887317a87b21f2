package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/printsmart/printd/internal/core"
	"github.com/printsmart/printd/internal/db"
)

type CreatePrinterRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	PrinterType    string `json:"printer_type" binding:"required"`
	IPAddress      string `json:"ip_address"`
	Port           int    `json:"port"`
	SupportsColor  bool   `json:"supports_color"`
	SupportsDuplex bool   `json:"supports_duplex"`
	MaxPaperSize   string `json:"max_paper_size"`
	IsDefault      bool   `json:"is_default"`
}

type UpdatePrinterRequest struct {
	Name           string `json:"name" binding:"required"`
	Description    string `json:"description"`
	PrinterType    string `json:"printer_type" binding:"required"`
	IPAddress      string `json:"ip_address"`
	Port           int    `json:"port"`
	SupportsColor  bool   `json:"supports_color"`
	SupportsDuplex bool   `json:"supports_duplex"`
	MaxPaperSize   string `json:"max_paper_size"`
	IsDefault      bool   `json:"is_default"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=online offline busy error maintenance"`
}

type ListPrintersQuery struct {
	Available bool `form:"available"`
	Color     bool `form:"color"`
	Duplex    bool `form:"duplex"`
}

type PrinterHandler struct {
	db       *sql.DB
	registry *core.Registry
	monitor  *core.HealthMonitor
}

func NewPrinterHandler(database *sql.DB, registry *core.Registry, monitor *core.HealthMonitor) *PrinterHandler {
	return &PrinterHandler{db: database, registry: registry, monitor: monitor}
}

func (h *PrinterHandler) ListPrinters(c *gin.Context) {
	var query ListPrintersQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var printers []*db.Printer
	var err error
	if query.Available {
		printers, err = h.registry.ListAvailable(c.Request.Context(), core.CapabilityFilter{
			Color:  query.Color,
			Duplex: query.Duplex,
		})
	} else {
		printers, err = h.registry.List(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list printers"})
		return
	}

	if printers == nil {
		printers = []*db.Printer{}
	}
	c.JSON(http.StatusOK, printers)
}

func (h *PrinterHandler) GetPrinter(c *gin.Context) {
	printer, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get printer"})
		return
	}
	c.JSON(http.StatusOK, printer)
}

func (h *PrinterHandler) CreatePrinter(c *gin.Context) {
	var req CreatePrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	printer := &db.Printer{
		Name:           req.Name,
		Description:    req.Description,
		PrinterType:    req.PrinterType,
		IPAddress:      req.IPAddress,
		Port:           req.Port,
		SupportsColor:  req.SupportsColor,
		SupportsDuplex: req.SupportsDuplex,
		MaxPaperSize:   req.MaxPaperSize,
		IsDefault:      req.IsDefault,
		IsActive:       true,
	}
	if err := h.registry.Create(c.Request.Context(), printer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create printer"})
		return
	}
	c.JSON(http.StatusCreated, printer)
}

func (h *PrinterHandler) UpdatePrinter(c *gin.Context) {
	var req UpdatePrinterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	printer, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get printer"})
		return
	}

	printer.Name = req.Name
	printer.Description = req.Description
	printer.PrinterType = req.PrinterType
	printer.IPAddress = req.IPAddress
	printer.Port = req.Port
	printer.SupportsColor = req.SupportsColor
	printer.SupportsDuplex = req.SupportsDuplex
	printer.MaxPaperSize = req.MaxPaperSize
	printer.IsDefault = req.IsDefault

	if err := h.registry.Update(c.Request.Context(), printer); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update printer"})
		return
	}
	c.JSON(http.StatusOK, printer)
}

// SetPrinterStatus manually overrides a printer's status, typically to
// put it in or out of maintenance. The health monitor may overwrite it
// on its next pass if the printer has an address.
func (h *PrinterHandler) SetPrinterStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	previous, err := h.registry.SetStatus(c.Request.Context(), c.Param("id"), core.PrinterStatus(req.Status))
	if err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to set status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"previous_status": previous, "status": req.Status})
}

// CheckPrinter triggers an immediate health probe of one printer.
func (h *PrinterHandler) CheckPrinter(c *gin.Context) {
	printer, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get printer"})
		return
	}

	status, checked, err := h.monitor.CheckPrinter(c.Request.Context(), printer)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "health check failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "checked": checked})
}

func (h *PrinterHandler) DeactivatePrinter(c *gin.Context) {
	if err := h.registry.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, core.ErrPrinterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "printer not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to deactivate printer"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "printer deactivated"})
}
