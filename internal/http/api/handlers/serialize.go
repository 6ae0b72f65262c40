package handlers

import (
	"time"

	"gorm.io/datatypes"

	"github.com/miky-rola/signals-backend/internal/models"
)

// userResponse is the public representation of a user account.
type userResponse struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

func serializeUser(user models.User) userResponse {
	return userResponse{ID: user.ID, Email: user.Email, Username: user.Username}
}

// profileResponse is the public representation of a user profile.
type profileResponse struct {
	ID                      uint64         `json:"id"`
	UserID                  uint64         `json:"user"`
	RiskTolerance           int            `json:"risk_tolerance"`
	PreferredStrategies     datatypes.JSON `json:"preferred_strategies"`
	NotificationPreferences datatypes.JSON `json:"notification_preferences"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

func serializeProfile(profile models.Profile) profileResponse {
	return profileResponse{
		ID:                      profile.ID,
		UserID:                  profile.UserID,
		RiskTolerance:           profile.RiskTolerance,
		PreferredStrategies:     profile.PreferredStrategies,
		NotificationPreferences: profile.NotificationPreferences,
		CreatedAt:               profile.CreatedAt,
		UpdatedAt:               profile.UpdatedAt,
	}
}

// marketDataResponse is the public representation of a market data snapshot.
type marketDataResponse struct {
	ID                   uint64    `json:"id"`
	Ticker               string    `json:"ticker"`
	ImpliedVolatility    float64   `json:"implied_volatility"`
	HistoricalVolatility float64   `json:"historical_volatility"`
	Skew                 float64   `json:"skew"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func serializeMarketData(row models.MarketData) marketDataResponse {
	return marketDataResponse{
		ID:                   row.ID,
		Ticker:               row.Ticker,
		ImpliedVolatility:    row.ImpliedVolatility,
		HistoricalVolatility: row.HistoricalVolatility,
		Skew:                 row.Skew,
		CreatedAt:            row.CreatedAt,
		UpdatedAt:            row.UpdatedAt,
	}
}

// signalResponse is the public representation of a signal. This is also the
// exact shape cached under signal_{id}; field order is fixed so cached and
// freshly marshaled payloads stay byte-identical.
type signalResponse struct {
	ID             uint64          `json:"id"`
	Ticker         string          `json:"ticker"`
	Strategy       models.Strategy `json:"strategy"`
	VRPZScore      float64         `json:"vrp_zscore"`
	VRPRatio       float64         `json:"vrp_ratio"`
	ExpectedReturn float64         `json:"expected_return"`
	Confidence     int             `json:"confidence"`
	InLab          bool            `json:"in_lab"`
	ExpiresAt      time.Time       `json:"expires_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func serializeSignal(signal models.Signal) signalResponse {
	return signalResponse{
		ID:             signal.ID,
		Ticker:         signal.Ticker,
		Strategy:       signal.Strategy,
		VRPZScore:      signal.VRPZScore,
		VRPRatio:       signal.VRPRatio,
		ExpectedReturn: signal.ExpectedReturn,
		Confidence:     signal.Confidence,
		InLab:          signal.InLab,
		ExpiresAt:      signal.ExpiresAt,
		CreatedAt:      signal.CreatedAt,
		UpdatedAt:      signal.UpdatedAt,
	}
}

// interactionResponse is the public representation of a user interaction.
type interactionResponse struct {
	ID           uint64                   `json:"id"`
	UserID       uint64                   `json:"user"`
	SignalID     uint64                   `json:"signal"`
	Status       models.InteractionStatus `json:"status"`
	Notes        string                   `json:"notes"`
	PositionSize *int                     `json:"position_size"`
	PNL          *float64                 `json:"pnl"`
	ExitPrice    *float64                 `json:"exit_price"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func serializeInteraction(row models.UserInteraction) interactionResponse {
	return interactionResponse{
		ID:           row.ID,
		UserID:       row.UserID,
		SignalID:     row.SignalID,
		Status:       row.Status,
		Notes:        row.Notes,
		PositionSize: row.PositionSize,
		PNL:          row.PNL,
		ExitPrice:    row.ExitPrice,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
