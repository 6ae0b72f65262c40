package models

import "time"

// InteractionStatus describes how a user acted on a signal.
type InteractionStatus string

// InteractionStatus constants define the supported statuses.
const (
	// InteractionTaken means the user traded the signal.
	InteractionTaken InteractionStatus = "taken"
	// InteractionWatching means the user is tracking the signal.
	InteractionWatching InteractionStatus = "watching"
	// InteractionPassed means the user declined the signal.
	InteractionPassed InteractionStatus = "passed"
)

// ValidInteractionStatus reports whether s is a known status.
func ValidInteractionStatus(s InteractionStatus) bool {
	switch s {
	case InteractionTaken, InteractionWatching, InteractionPassed:
		return true
	}
	return false
}

// UserInteraction records a single user's response to a signal.
// A user records at most one interaction per signal.
type UserInteraction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex:idx_interactions_user_signal,priority:1;index:idx_interactions_user_signal_status,priority:1"` // Acting user ID.
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`                                                                    // Acting user record.

	SignalID uint64 `gorm:"not null;uniqueIndex:idx_interactions_user_signal,priority:2;index:idx_interactions_user_signal_status,priority:2"` // Related signal ID.
	Signal   Signal `gorm:"foreignKey:SignalID;constraint:OnDelete:CASCADE"`                                                                   // Related signal record.

	Status InteractionStatus `gorm:"type:varchar(10);not null;index:idx_interactions_user_signal_status,priority:3"` // Interaction status.
	Notes  string            `gorm:"type:text"`                                                                      // Free-form notes.

	PositionSize *int     `gorm:"type:bigint"` // Position size, if taken.
	PNL          *float64 // Realized profit and loss.
	ExitPrice    *float64 // Exit price, if closed.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
