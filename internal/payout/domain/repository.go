package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository is the payout record storage contract. Status moves only
// through Transition, which compare-and-sets on the current status so two
// overlapping batch runs cannot both initiate a transfer.
type Repository interface {
	// UpsertAggregate creates a pending record for (creator, period) or
	// refreshes count/amount in place while the record is still pending.
	// Records that have entered disbursement are left untouched; the
	// returned bool reports whether the row was written.
	UpsertAggregate(ctx context.Context, record *PayoutRecord) (bool, error)
	ListForDisbursement(ctx context.Context, period time.Time) ([]PayoutRecord, error)
	// ListOutstanding returns pending and failed records across all
	// periods strictly before closedBefore, oldest period first.
	ListOutstanding(ctx context.Context, closedBefore time.Time) ([]PayoutRecord, error)
	ListByCreator(ctx context.Context, creatorID snowflake.ID, limit int) ([]PayoutRecord, error)
	// Transition performs the CAS from -> to, applying updates on success.
	// Returns false with a nil error when another writer won the race.
	Transition(ctx context.Context, id snowflake.ID, from, to PayoutStatus, updates map[string]any) (bool, error)
	SumAmountByStatus(ctx context.Context, creatorID snowflake.ID, statuses []PayoutStatus) (int64, error)
	SumAmountForPeriod(ctx context.Context, period time.Time) (int64, error)
}
