// Package domain contains the payout aggregation models and the
// disbursement state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PayoutStatus string

const (
	PayoutStatusPending      PayoutStatus = "pending"
	PayoutStatusTransferring PayoutStatus = "transferring"
	PayoutStatusPaid         PayoutStatus = "paid"
	PayoutStatusFailed       PayoutStatus = "failed"
)

// PayoutRecord is the per-creator, per-period rollup of qualifying copies.
// Created by the aggregator, mutated only through status transitions.
type PayoutRecord struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	CreatorID           snowflake.ID `gorm:"not null;uniqueIndex:ux_payout_creator_period,priority:1"`
	BillingPeriod       time.Time    `gorm:"not null;uniqueIndex:ux_payout_creator_period,priority:2"`
	QualifyingCopyCount int64        `gorm:"not null;default:0"`
	AmountMinorUnits    int64        `gorm:"not null;default:0"`
	Status              PayoutStatus `gorm:"type:text;not null;default:'pending';index"`
	TransferReference   string       `gorm:"type:text"`
	SettledAt           *time.Time   `gorm:""`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PayoutRecord) TableName() string { return "payout_records" }

// CanTransition enumerates the only legal status edges. paid is terminal and
// pending never jumps straight to paid: every settlement passes through
// transferring so the attempt itself is recorded.
func CanTransition(from, to PayoutStatus) bool {
	switch from {
	case PayoutStatusPending:
		return to == PayoutStatusTransferring
	case PayoutStatusTransferring:
		return to == PayoutStatusPaid || to == PayoutStatusFailed
	case PayoutStatusFailed:
		return to == PayoutStatusTransferring
	default:
		return false
	}
}
