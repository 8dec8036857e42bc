// Package domain defines the outbound transfer contracts used by payout
// disbursement.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PayoutDestination records a creator's verified external payout account.
// Onboarding is owned by the Connect flow; the core only reads it.
type PayoutDestination struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	CreatorID snowflake.ID `gorm:"not null;uniqueIndex"`
	Provider  string       `gorm:"type:text;not null"`
	Handle    string       `gorm:"type:text;not null"`
	Verified  bool         `gorm:"not null;default:false"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PayoutDestination) TableName() string { return "payout_destinations" }
