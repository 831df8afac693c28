package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/crypto-alerts/internal/client"
	"github.com/yourorg/crypto-alerts/internal/middleware"
	"github.com/yourorg/crypto-alerts/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PriceHandler handles price query HTTP requests
type PriceHandler struct {
	priceService *service.PriceService
	logger       *zap.Logger
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(priceService *service.PriceService, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{
		priceService: priceService,
		logger:       logger,
	}
}

// GetPrice handles retrieving the current price for one symbol
// GET /api/v1/crypto/price/:symbol
func (h *PriceHandler) GetPrice(c *gin.Context) {
	symbol := c.Param("symbol")

	snapshot, err := h.priceService.GetCurrentPrice(c.Request.Context(), symbol)
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) || errors.Is(err, client.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Data not found for " + strings.ToUpper(symbol)})
			return
		}
		h.logger.Error("Failed to get price",
			zap.Error(err),
			zap.String("symbol", symbol))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get price"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetPrices handles retrieving current prices for several symbols
// GET /api/v1/crypto/prices?symbols=BTC,ETH
func (h *PriceHandler) GetPrices(c *gin.Context) {
	raw := c.Query("symbols")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one symbol must be provided"})
		return
	}

	symbols := strings.Split(raw, ",")
	snapshots := h.priceService.GetCurrentPrices(c.Request.Context(), symbols)

	c.JSON(http.StatusOK, snapshots)
}

// GetSupportedSymbols handles listing the symbols with full fallback support
// GET /api/v1/crypto/supported-symbols
func (h *PriceHandler) GetSupportedSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"symbols": service.SupportedSymbols})
}

// GetHistoricalData handles retrieving candles from the primary provider
// GET /api/v1/crypto/historical/:symbol?interval=1h&limit=24
func (h *PriceHandler) GetHistoricalData(c *gin.Context) {
	symbol := c.Param("symbol")
	interval := c.DefaultQuery("interval", "1h")

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "24"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	candles, err := h.priceService.GetHistoricalCandles(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		if errors.Is(err, client.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Historical data not found for " + strings.ToUpper(symbol)})
			return
		}
		h.logger.Error("Failed to get historical data",
			zap.Error(err),
			zap.String("symbol", symbol))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get historical data"})
		return
	}

	c.JSON(http.StatusOK, candles)
}

type saveHistoryRequest struct {
	Symbol string `json:"symbol" binding:"required,ticker"`
}

// SaveHistory handles persisting the current price as a user-owned sample
// POST /api/v1/crypto/history
func (h *PriceHandler) SaveHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User identity required"})
		return
	}

	var request saveHistoryRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sample, err := h.priceService.SaveUserSample(c.Request.Context(), userID, request.Symbol)
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) || errors.Is(err, client.ErrSymbolNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Data not found for " + strings.ToUpper(request.Symbol)})
			return
		}
		h.logger.Error("Failed to save price sample", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save price sample"})
		return
	}

	c.JSON(http.StatusOK, sample)
}

// GetHistory handles listing the caller's saved samples for a symbol
// GET /api/v1/crypto/history?symbol=BTC&start_date=...&end_date=...&limit=100
func (h *PriceHandler) GetHistory(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User identity required"})
		return
	}

	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol is required"})
		return
	}

	var startDate, endDate *time.Time
	if startStr := c.Query("start_date"); startStr != "" {
		parsed, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid start_date format. Use RFC3339"})
			return
		}
		startDate = &parsed
	}
	if endStr := c.Query("end_date"); endStr != "" {
		parsed, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid end_date format. Use RFC3339"})
			return
		}
		endDate = &parsed
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}

	history, err := h.priceService.GetUserHistory(c.Request.Context(), userID, symbol, startDate, endDate, limit)
	if err != nil {
		h.logger.Error("Failed to get price history",
			zap.Error(err),
			zap.String("symbol", symbol))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get price history"})
		return
	}

	c.JSON(http.StatusOK, history)
}
