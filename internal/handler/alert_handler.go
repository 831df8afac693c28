package handler

import (
	"errors"
	"net/http"

	"github.com/yourorg/crypto-alerts/internal/middleware"
	"github.com/yourorg/crypto-alerts/internal/repository"
	"github.com/yourorg/crypto-alerts/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AlertHandler handles alert HTTP requests
type AlertHandler struct {
	alertService *service.AlertService
	logger       *zap.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertService *service.AlertService, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{
		alertService: alertService,
		logger:       logger,
	}
}

type createAlertRequest struct {
	Symbol   string          `json:"symbol" binding:"required,ticker"`
	MinPrice decimal.Decimal `json:"minPrice" binding:"required"`
	MaxPrice decimal.Decimal `json:"maxPrice" binding:"required"`
}

type updateAlertRequest struct {
	MinPrice *decimal.Decimal `json:"minPrice"`
	MaxPrice *decimal.Decimal `json:"maxPrice"`
	IsActive *bool            `json:"isActive"`
}

// CreateAlert handles creating a price range alert
// POST /api/v1/alerts
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User identity required"})
		return
	}

	var request createAlertRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := h.alertService.CreateAlert(c.Request.Context(), userID, service.CreateAlertInput{
		Symbol:   request.Symbol,
		MinPrice: request.MinPrice,
		MaxPrice: request.MaxPrice,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidPriceRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to create alert", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, alert)
}

// GetAlerts handles listing the caller's alerts
// GET /api/v1/alerts
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User identity required"})
		return
	}

	alerts, err := h.alertService.GetUserAlerts(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list alerts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}

	c.JSON(http.StatusOK, alerts)
}

// GetTriggeredAlerts handles listing the caller's fired alerts
// GET /api/v1/alerts/triggered
func (h *AlertHandler) GetTriggeredAlerts(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User identity required"})
		return
	}

	alerts, err := h.alertService.GetTriggeredAlerts(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list triggered alerts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list triggered alerts"})
		return
	}

	c.JSON(http.StatusOK, alerts)
}

// UpdateAlert handles modifying an alert
// PUT /api/v1/alerts/:id
func (h *AlertHandler) UpdateAlert(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User identity required"})
		return
	}

	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	var request updateAlertRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := h.alertService.UpdateAlert(c.Request.Context(), userID, alertID, service.UpdateAlertInput{
		MinPrice: request.MinPrice,
		MaxPrice: request.MaxPrice,
		IsActive: request.IsActive,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrAlertNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		case errors.Is(err, service.ErrInvalidPriceRange), errors.Is(err, service.ErrAlertTriggered):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to update alert",
				zap.Error(err),
				zap.String("alert_id", alertID.String()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		}
		return
	}

	c.JSON(http.StatusOK, alert)
}

// DeleteAlert handles removing an alert
// DELETE /api/v1/alerts/:id
func (h *AlertHandler) DeleteAlert(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User identity required"})
		return
	}

	alertID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := h.alertService.DeleteAlert(c.Request.Context(), userID, alertID); err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Error("Failed to delete alert",
			zap.Error(err),
			zap.String("alert_id", alertID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete alert"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Alert deleted"})
}
