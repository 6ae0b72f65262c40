package models

import "time"

// Strategy identifies the volatility strategy a signal trades.
type Strategy string

// Strategy constants define the supported signal strategies.
const (
	// StrategyVRP trades the volatility risk premium.
	StrategyVRP Strategy = "VRP"
	// StrategySkew trades volatility skew.
	StrategySkew Strategy = "SKEW"
	// StrategyTerm trades the term structure.
	StrategyTerm Strategy = "TERM"
)

// ValidStrategy reports whether s is a known strategy.
func ValidStrategy(s Strategy) bool {
	switch s {
	case StrategyVRP, StrategySkew, StrategyTerm:
		return true
	}
	return false
}

// Signal is a generated trading signal for a ticker and strategy.
type Signal struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Ticker   string   `gorm:"type:varchar(10);not null;index;index:idx_signals_ticker_strategy_created,priority:1"` // Instrument ticker.
	Strategy Strategy `gorm:"type:varchar(10);not null;index:idx_signals_ticker_strategy_created,priority:2"`       // Strategy enum.

	// Column pinned: the default naming would split this as vrpz_score.
	VRPZScore      float64 `gorm:"column:vrp_zscore;not null"` // VRP z-score.
	VRPRatio       float64 `gorm:"not null"`                   // VRP ratio.
	ExpectedReturn float64 `gorm:"not null"`                   // Modeled expected return.
	Confidence     int     `gorm:"not null"`                   // Confidence in [0,99].
	InLab          bool    `gorm:"not null;default:true"`      // Whether the signal is still in the lab.

	ExpiresAt time.Time `gorm:"not null;index"` // Signal expiry time.

	Interactions []UserInteraction `gorm:"foreignKey:SignalID"` // Related user interactions.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_signals_ticker_strategy_created,priority:3"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`                                                      // Last update timestamp.
}
