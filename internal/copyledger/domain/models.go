// Package domain contains the append-only copy ledger models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// CopyEvent is one ledger row: a user acquiring one flow's payload once per
// billing period. Rows are never updated or deleted.
//
// CreatorID is snapshotted at write time so aggregation never joins back to
// the catalog; historical payouts reflect the creator at the moment of copy
// even if flow ownership later changes.
type CopyEvent struct {
	ID                 snowflake.ID      `gorm:"primaryKey"`
	UserID             snowflake.ID      `gorm:"not null;uniqueIndex:ux_copy_user_flow_period,priority:1"`
	FlowID             snowflake.ID      `gorm:"not null;uniqueIndex:ux_copy_user_flow_period,priority:2"`
	CreatorID          snowflake.ID      `gorm:"not null;index:idx_copy_creator_period,priority:1"`
	BillingPeriod      time.Time         `gorm:"not null;uniqueIndex:ux_copy_user_flow_period,priority:3;index:idx_copy_creator_period,priority:2"`
	QualifiesForPayout bool              `gorm:"not null;default:false"`
	OccurredAt         time.Time         `gorm:"not null"`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (CopyEvent) TableName() string { return "copy_events" }

// CreatorPeriodTotal is one aggregation bucket over qualifying events.
type CreatorPeriodTotal struct {
	CreatorID     snowflake.ID
	BillingPeriod time.Time
	CopyCount     int64
}
