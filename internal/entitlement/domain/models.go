// Package domain contains the subscription read models backing the
// entitlement check.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription mirrors the billing service's subscription state. One row per
// user; the monetization core never mutates it.
type Subscription struct {
	ID                 snowflake.ID       `gorm:"primaryKey"`
	UserID             snowflake.ID       `gorm:"not null;uniqueIndex"`
	Status             SubscriptionStatus `gorm:"type:text;not null"`
	PlanID             string             `gorm:"type:text;not null;default:'premium_monthly'"`
	CurrentPeriodStart time.Time          `gorm:"not null"`
	CurrentPeriodEnd   time.Time          `gorm:"not null"`
	CancelAtPeriodEnd  bool               `gorm:"not null;default:false"`
	CreatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
