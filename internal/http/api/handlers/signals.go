package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/miky-rola/signals-backend/internal/cache"
	dbutil "github.com/miky-rola/signals-backend/internal/db"
	"github.com/miky-rola/signals-backend/internal/http/api/query"
	"github.com/miky-rola/signals-backend/internal/models"
)

// Confidence bounds.
const (
	confidenceMin = 0
	confidenceMax = 99
)

// signalOrderingFields is the ordering allow-list for signals.
var signalOrderingFields = map[string]bool{
	"ticker":          true,
	"strategy":        true,
	"confidence":      true,
	"expected_return": true,
	"vrp_zscore":      true,
	"vrp_ratio":       true,
	"expires_at":      true,
	"created_at":      true,
}

// SignalHandler manages signal endpoints. Single-signal reads go through the
// cache; list queries always hit the store.
type SignalHandler struct {
	db    *gorm.DB
	store cache.Store
}

// NewSignalHandler constructs a SignalHandler.
func NewSignalHandler(db *gorm.DB, store cache.Store) *SignalHandler {
	return &SignalHandler{db: db, store: store}
}

// signalRequest defines the request body for signal creation and updates.
type signalRequest struct {
	Ticker         string     `json:"ticker"`
	Strategy       string     `json:"strategy"`
	VRPZScore      *float64   `json:"vrp_zscore"`
	VRPRatio       *float64   `json:"vrp_ratio"`
	ExpectedReturn *float64   `json:"expected_return"`
	Confidence     *int       `json:"confidence"`
	InLab          *bool      `json:"in_lab"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

// Create stores a signal and writes its serialized form through to the
// cache so the first read is already warm.
func (h *SignalHandler) Create(c *gin.Context) {
	var body signalRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	ticker := strings.ToUpper(strings.TrimSpace(body.Ticker))
	strategy := models.Strategy(strings.ToUpper(strings.TrimSpace(body.Strategy)))
	if ticker == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "missing ticker"})
		return
	}
	if !models.ValidStrategy(strategy) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "strategy must be one of VRP, SKEW, TERM"})
		return
	}
	if body.VRPZScore == nil || body.VRPRatio == nil || body.ExpectedReturn == nil || body.Confidence == nil || body.ExpiresAt == nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "vrp_zscore, vrp_ratio, expected_return, confidence, and expires_at are required"})
		return
	}
	if *body.Confidence < confidenceMin || *body.Confidence > confidenceMax {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "confidence must be between 0 and 99"})
		return
	}

	signal := models.Signal{
		Ticker:         ticker,
		Strategy:       strategy,
		VRPZScore:      *body.VRPZScore,
		VRPRatio:       *body.VRPRatio,
		ExpectedReturn: *body.ExpectedReturn,
		Confidence:     *body.Confidence,
		InLab:          true,
		ExpiresAt:      *body.ExpiresAt,
	}
	if body.InLab != nil {
		signal.InLab = *body.InLab
	}

	ctx := c.Request.Context()
	var payload []byte
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&signal).Error; errCreate != nil {
			return errCreate
		}
		var errMarshal error
		payload, errMarshal = json.Marshal(serializeSignal(signal))
		if errMarshal != nil {
			return errMarshal
		}
		if errSet := h.store.Set(ctx, cache.SignalKey(signal.ID), payload, cache.SignalTTL); errSet != nil {
			// A cold cache is recoverable; the row is not. Log and go on.
			log.WithError(errSet).Warnf("cache write-through failed for signal %d", signal.ID)
		}
		return nil
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "create signal failed"})
		return
	}
	c.Data(http.StatusCreated, "application/json; charset=utf-8", payload)
}

// List returns signals with pagination and ordering.
func (h *SignalHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.Signal{})
	if ticker := strings.ToUpper(strings.TrimSpace(c.Query("ticker"))); ticker != "" {
		q = q.Where("ticker = ?", ticker)
	}
	if strategy := models.Strategy(strings.ToUpper(strings.TrimSpace(c.Query("strategy")))); strategy != "" {
		if !models.ValidStrategy(strategy) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "strategy must be one of VRP, SKEW, TERM"})
			return
		}
		q = q.Where("strategy = ?", strategy)
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q = q.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "ticker"),
			dbutil.NormalizeLikePattern(h.db, "%"+search+"%"))
	}
	q = query.ApplyOrdering(q, c.Query("ordering"), signalOrderingFields)

	var rows []models.Signal
	page, errPage := query.Paginate(c, q, &rows)
	if errPage != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "list signals failed"})
		return
	}

	out := make([]signalResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, serializeSignal(row))
	}
	page.Results = out
	c.JSON(http.StatusOK, page)
}

// Get returns a signal, serving the cached payload verbatim on a hit and
// filling the cache on a miss. Updates never invalidate; entries age out on
// TTL alone.
func (h *SignalHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return
	}
	ctx := c.Request.Context()

	cached, errGet := h.store.Get(ctx, cache.SignalKey(id))
	if errGet == nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return
	}
	if !errors.Is(errGet, cache.ErrMiss) {
		log.WithError(errGet).Warnf("cache read failed for signal %d", id)
	}

	var signal models.Signal
	if errFind := h.db.WithContext(ctx).First(&signal, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}

	payload, errMarshal := json.Marshal(serializeSignal(signal))
	if errMarshal != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "serialize failed"})
		return
	}
	if errSet := h.store.Set(ctx, cache.SignalKey(signal.ID), payload, cache.SignalTTL); errSet != nil {
		log.WithError(errSet).Warnf("cache fill failed for signal %d", signal.ID)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// Update modifies a signal. The cached payload is left to expire via TTL.
func (h *SignalHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return
	}
	var body signalRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid json"})
		return
	}

	updates := map[string]any{"updated_at": time.Now().UTC()}
	if ticker := strings.ToUpper(strings.TrimSpace(body.Ticker)); ticker != "" {
		updates["ticker"] = ticker
	}
	if body.Strategy != "" {
		strategy := models.Strategy(strings.ToUpper(strings.TrimSpace(body.Strategy)))
		if !models.ValidStrategy(strategy) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "strategy must be one of VRP, SKEW, TERM"})
			return
		}
		updates["strategy"] = strategy
	}
	if body.VRPZScore != nil {
		updates["vrp_zscore"] = *body.VRPZScore
	}
	if body.VRPRatio != nil {
		updates["vrp_ratio"] = *body.VRPRatio
	}
	if body.ExpectedReturn != nil {
		updates["expected_return"] = *body.ExpectedReturn
	}
	if body.Confidence != nil {
		if *body.Confidence < confidenceMin || *body.Confidence > confidenceMax {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "confidence must be between 0 and 99"})
			return
		}
		updates["confidence"] = *body.Confidence
	}
	if body.InLab != nil {
		updates["in_lab"] = *body.InLab
	}
	if body.ExpiresAt != nil {
		updates["expires_at"] = *body.ExpiresAt
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.Signal{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
		return
	}

	var signal models.Signal
	if errFind := h.db.WithContext(c.Request.Context()).First(&signal, id).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}
	c.JSON(http.StatusOK, serializeSignal(signal))
}

// Delete removes a signal and its interactions.
func (h *SignalHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return
	}
	ctx := c.Request.Context()

	var signal models.Signal
	if errFind := h.db.WithContext(ctx).First(&signal, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}

	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errDelInteractions := tx.Where("signal_id = ?", id).Delete(&models.UserInteraction{}).Error; errDelInteractions != nil {
			return errDelInteractions
		}
		return tx.Delete(&models.Signal{}, id).Error
	})
	if errTx != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "delete failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

// performanceResult is the on-demand aggregate over taken interactions.
type performanceResult struct {
	AvgPNL      *float64 `json:"avg_pnl"`
	TotalTrades int64    `json:"total_trades"`
}

// Performance computes the signal's aggregate fresh on every call: average
// pnl and count over interactions with status "taken". With no taken
// interactions avg_pnl is null and total_trades is 0.
func (h *SignalHandler) Performance(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid id"})
		return
	}
	ctx := c.Request.Context()

	var signal models.Signal
	if errFind := h.db.WithContext(ctx).First(&signal, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "query failed"})
		return
	}

	var result performanceResult
	if errScan := h.db.WithContext(ctx).Model(&models.UserInteraction{}).
		Select("AVG(pnl) AS avg_pnl, COUNT(id) AS total_trades").
		Where("signal_id = ? AND status = ?", id, models.InteractionTaken).
		Scan(&result).Error; errScan != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "aggregate failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// FlushCache drops every cached signal payload. Staff only.
func (h *SignalHandler) FlushCache(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "authentication required"})
		return
	}
	if !user.IsStaff {
		c.JSON(http.StatusForbidden, gin.H{"detail": "You do not have permission to perform this action."})
		return
	}
	if errFlush := h.store.DeletePattern(c.Request.Context(), cache.SignalKeyPattern); errFlush != nil {
		log.WithError(errFlush).Error("flush signal cache failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "flush failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signal cache cleared"})
}
