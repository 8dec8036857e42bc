package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository is the ledger's storage contract. Insert is the only write.
type Repository interface {
	// Insert attempts the dedupe-safe append. It returns false with a nil
	// error when the (user, flow, period) row already exists; the unique
	// index is the authority, not an application pre-check.
	Insert(ctx context.Context, event *CopyEvent) (bool, error)
	// FindExisting returns the prior row for (user, flow, period), or nil.
	FindExisting(ctx context.Context, userID, flowID snowflake.ID, period time.Time) (*CopyEvent, error)
	// CountQualifying counts qualifying rows for (user, period).
	CountQualifying(ctx context.Context, userID snowflake.ID, period time.Time) (int64, error)
	// AggregateByCreator groups qualifying rows for a period by creator.
	AggregateByCreator(ctx context.Context, period time.Time) ([]CreatorPeriodTotal, error)
	// CountQualifyingInPeriod counts all qualifying rows in a period,
	// across users. Used for reconciliation checks.
	CountQualifyingInPeriod(ctx context.Context, period time.Time) (int64, error)
}
