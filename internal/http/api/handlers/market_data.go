package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbutil "github.com/miky-rola/signals-backend/internal/db"
	"github.com/miky-rola/signals-backend/internal/http/api/query"
	"github.com/miky-rola/signals-backend/internal/models"
)

// marketDataOrderingFields is the ordering allow-list for market data.
var marketDataOrderingFields = map[string]bool{
	"ticker":                true,
	"implied_volatility":    true,
	"historical_volatility": true,
	"skew":                  true,
	"created_at":            true,
}

// MarketDataHandler manages volatility snapshot endpoints.
type MarketDataHandler struct {
	db *gorm.DB
}

// NewMarketDataHandler constructs a MarketDataHandler.
func NewMarketDataHandler(db *gorm.DB) *MarketDataHandler {
	return &MarketDataHandler{db: db}
}

// marketDataRequest defines the request body for snapshot creation.
type marketDataRequest struct {
	Ticker               string   `json:"ticker"`
	ImpliedVolatility    *float64 `json:"implied_volatility"`
	HistoricalVolatility *float64 `json:"historical_volatility"`
	Skew                 *float64 `json:"skew"`
}

// Create appends a volatility snapshot.
func (h *MarketDataHandler) Create(c *gin.Context) {
	var body marketDataRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(body.Ticker))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing ticker"})
		return
	}
	if body.ImpliedVolatility == nil || body.HistoricalVolatility == nil || body.Skew == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "implied_volatility, historical_volatility, and skew are required"})
		return
	}

	row := models.MarketData{
		Ticker:               ticker,
		ImpliedVolatility:    *body.ImpliedVolatility,
		HistoricalVolatility: *body.HistoricalVolatility,
		Skew:                 *body.Skew,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&row).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "create market data failed"})
		return
	}
	c.JSON(http.StatusCreated, serializeMarketData(row))
}

// List returns snapshots with pagination and ordering.
func (h *MarketDataHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.MarketData{})
	if ticker := strings.ToUpper(strings.TrimSpace(c.Query("ticker"))); ticker != "" {
		q = q.Where("ticker = ?", ticker)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "ticker"),
			dbutil.NormalizeLikePattern(h.db, "%"+search+"%"))
	}
	q = query.ApplyOrdering(q, c.Query("ordering"), marketDataOrderingFields)

	var rows []models.MarketData
	page, errPage := query.Paginate(c, q, &rows)
	if errPage != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "list market data failed"})
		return
	}

	out := make([]marketDataResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeMarketData(row))
	}
	page.Results = out
	c.JSON(http.StatusOK, page)
}

// Get returns a snapshot by ID.
func (h *MarketDataHandler) Get(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, serializeMarketData(row))
}

// Update modifies a snapshot.
func (h *MarketDataHandler) Update(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}
	var body marketDataRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if ticker := strings.ToUpper(strings.TrimSpace(body.Ticker)); ticker != "" {
		updates["ticker"] = ticker
	}
	if body.ImpliedVolatility != nil {
		updates["implied_volatility"] = *body.ImpliedVolatility
	}
	if body.HistoricalVolatility != nil {
		updates["historical_volatility"] = *body.HistoricalVolatility
	}
	if body.Skew != nil {
		updates["skew"] = *body.Skew
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.MarketData{}).
		Where("id = ?", row.ID).Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "update failed"})
		return
	}

	var updated models.MarketData
	if errFind := h.db.WithContext(c.Request.Context()).First(&updated, row.ID).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	c.JSON(http.StatusOK, serializeMarketData(updated))
}

// Delete removes a snapshot.
func (h *MarketDataHandler) Delete(c *gin.Context) {
	row, ok := h.load(c)
	if !ok {
		return
	}
	if errDelete := h.db.WithContext(c.Request.Context()).Delete(&models.MarketData{}, row.ID).Error; errDelete != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// load resolves the snapshot in the path. On failure it writes the response
// and returns ok=false.
func (h *MarketDataHandler) load(c *gin.Context) (models.MarketData, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return models.MarketData{}, false
	}
	var row models.MarketData
	if errFind := h.db.WithContext(c.Request.Context()).First(&row, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
			return models.MarketData{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return models.MarketData{}, false
	}
	return row, true
}
