package domain

import (
	"context"
	"errors"
	"time"
)

// AggregatorService rolls a closed period's qualifying copies into payout
// records. Safe to re-run until disbursement starts.
type AggregatorService interface {
	AggregatePeriod(ctx context.Context, period time.Time) ([]PayoutRecord, error)
}

// DisburserService drives pending and failed records through the transfer
// state machine. One creator's failure never blocks another's.
type DisburserService interface {
	// DisbursePending disburses a single period, for targeted replays.
	DisbursePending(ctx context.Context, period time.Time) error
	// DisburseOutstanding sweeps every closed period still holding
	// pending or failed records. The scheduled entry point.
	DisburseOutstanding(ctx context.Context) error
}

type PeriodEarnings struct {
	BillingPeriod    time.Time    `json:"billing_period"`
	CopyCount        int64        `json:"copy_count"`
	AmountMinorUnits int64        `json:"amount_minor_units"`
	Status           PayoutStatus `json:"status"`
	SettledAt        *time.Time   `json:"settled_at,omitempty"`
}

type EarningsResponse struct {
	CreatorID                string           `json:"creator_id"`
	LifetimeTotalMinorUnits  int64            `json:"lifetime_total_minor_units"`
	CurrentBalanceMinorUnits int64            `json:"current_balance_minor_units"`
	Periods                  []PeriodEarnings `json:"periods"`
}

// EarningsService is the read-only projection over payout records.
type EarningsService interface {
	Earnings(ctx context.Context, creatorID string) (EarningsResponse, error)
}

var (
	ErrInvalidCreator     = errors.New("invalid_creator")
	ErrInvalidPeriod      = errors.New("invalid_period")
	ErrPeriodStillOpen    = errors.New("period_still_open")
	ErrInvalidTransition  = errors.New("invalid_payout_transition")
	ErrRecordNotFound     = errors.New("payout_record_not_found")
	ErrTransitionConflict = errors.New("payout_transition_conflict")
)
