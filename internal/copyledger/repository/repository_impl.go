package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	copydomain "github.com/flowmarket/flowmarket/internal/copyledger/domain"
	"github.com/flowmarket/flowmarket/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepo struct {
	db *gorm.DB
}

func Provide(conn *gorm.DB) copydomain.Repository {
	return &ledgerRepo{db: conn}
}

// Insert relies on the ux_copy_user_flow_period unique index to close the
// duplicate race: two concurrent identical attempts produce exactly one row.
// A conflict is the normal duplicate-detection signal, not a failure.
func (r *ledgerRepo) Insert(ctx context.Context, event *copydomain.CopyEvent) (bool, error) {
	if event == nil {
		return false, errors.New("missing_copy_event")
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "flow_id"},
				{Name: "billing_period"},
			},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ledgerRepo) FindExisting(ctx context.Context, userID, flowID snowflake.ID, period time.Time) (*copydomain.CopyEvent, error) {
	var event copydomain.CopyEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND flow_id = ? AND billing_period = ?", userID, flowID, period).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *ledgerRepo) CountQualifying(ctx context.Context, userID snowflake.ID, period time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&copydomain.CopyEvent{}).
		Where("user_id = ? AND billing_period = ? AND qualifies_for_payout = ?", userID, period, true).
		Count(&count).Error
	return count, err
}

func (r *ledgerRepo) AggregateByCreator(ctx context.Context, period time.Time) ([]copydomain.CreatorPeriodTotal, error) {
	var totals []copydomain.CreatorPeriodTotal
	err := r.db.WithContext(ctx).Raw(
		`SELECT creator_id, billing_period, COUNT(1) AS copy_count
		 FROM copy_events
		 WHERE billing_period = ? AND qualifies_for_payout = ?
		 GROUP BY creator_id, billing_period
		 ORDER BY creator_id`,
		period,
		true,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *ledgerRepo) CountQualifyingInPeriod(ctx context.Context, period time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&copydomain.CopyEvent{}).
		Where("billing_period = ? AND qualifies_for_payout = ?", period, true).
		Count(&count).Error
	return count, err
}
