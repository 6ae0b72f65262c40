package models

import "time"

// MarketData is an append-only volatility snapshot for a ticker.
type MarketData struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Ticker               string  `gorm:"type:varchar(10);not null;index;index:idx_market_data_ticker_created,priority:1"` // Instrument ticker.
	ImpliedVolatility    float64 `gorm:"not null"`                                                                        // Implied volatility.
	HistoricalVolatility float64 `gorm:"not null"`                                                                        // Realized volatility.
	Skew                 float64 `gorm:"not null"`                                                                        // Volatility skew.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_market_data_ticker_created,priority:2"` // Snapshot timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`                                                 // Last update timestamp.
}
