package models

import (
	"time"

	"gorm.io/datatypes"
)

// User represents an end-user account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Unique email address.
	Username string `gorm:"type:varchar(15);uniqueIndex"`   // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	IsActive   bool `gorm:"not null;default:true"`  // Whether the user can sign in.
	IsVerified bool `gorm:"not null;default:false"` // Whether email verification completed.
	IsStaff    bool `gorm:"not null;default:false"` // Staff privilege flag.
	Deleted    bool `gorm:"not null;default:false"` // Soft-delete flag; rows are never hard-deleted.

	Profile *Profile `gorm:"foreignKey:UserID"` // Related profile.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Profile stores per-user trading preferences.
type Profile struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"`                          // Owning user ID.
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Owning user record.

	RiskTolerance           int            `gorm:"not null"`                         // Risk tolerance in [1,10].
	PreferredStrategies     datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Ordered strategy name list.
	NotificationPreferences datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Notification channel settings.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
