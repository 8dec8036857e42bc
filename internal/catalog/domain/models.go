// Package domain contains the catalog read models consumed by the copy path.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Flow is the content item being copied. The catalog itself is owned by the
// marketplace service; the monetization core only reads it.
type Flow struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	CreatorID   snowflake.ID `gorm:"not null;index"`
	Title       string       `gorm:"type:text;not null"`
	Payload     string       `gorm:"type:text;not null"`
	IsPremium   bool         `gorm:"not null;default:true"`
	Featured    bool         `gorm:"not null;default:false"`
	TotalCopies int64        `gorm:"not null;default:0"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Flow) TableName() string { return "flows" }
