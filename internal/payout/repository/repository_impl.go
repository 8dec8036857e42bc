package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
	"gorm.io/gorm"
)

type payoutRepo struct {
	db *gorm.DB
}

func Provide(conn *gorm.DB) payoutdomain.Repository {
	return &payoutRepo{db: conn}
}

func (r *payoutRepo) UpsertAggregate(ctx context.Context, record *payoutdomain.PayoutRecord) (bool, error) {
	if record == nil {
		return false, errors.New("missing_payout_record")
	}

	var written bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing payoutdomain.PayoutRecord
		err := tx.
			Where("creator_id = ? AND billing_period = ?", record.CreatorID, record.BillingPeriod).
			First(&existing).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			record.Status = payoutdomain.PayoutStatusPending
			if createErr := tx.Create(record).Error; createErr != nil {
				return createErr
			}
			written = true
			return nil
		}

		// Once disbursement has started the aggregate is frozen; a re-run
		// must not rewrite amounts under an in-flight or settled transfer.
		if existing.Status != payoutdomain.PayoutStatusPending {
			*record = existing
			return nil
		}

		result := tx.Model(&payoutdomain.PayoutRecord{}).
			Where("id = ? AND status = ?", existing.ID, payoutdomain.PayoutStatusPending).
			Updates(map[string]any{
				"qualifying_copy_count": record.QualifyingCopyCount,
				"amount_minor_units":    record.AmountMinorUnits,
				"updated_at":            record.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		written = result.RowsAffected > 0

		existing.QualifyingCopyCount = record.QualifyingCopyCount
		existing.AmountMinorUnits = record.AmountMinorUnits
		existing.UpdatedAt = record.UpdatedAt
		*record = existing
		return nil
	})
	return written, err
}

func (r *payoutRepo) ListForDisbursement(ctx context.Context, period time.Time) ([]payoutdomain.PayoutRecord, error) {
	var records []payoutdomain.PayoutRecord
	err := r.db.WithContext(ctx).
		Where("billing_period = ? AND status IN (?, ?)",
			period,
			payoutdomain.PayoutStatusPending,
			payoutdomain.PayoutStatusFailed,
		).
		Order("creator_id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *payoutRepo) ListOutstanding(ctx context.Context, closedBefore time.Time) ([]payoutdomain.PayoutRecord, error) {
	var records []payoutdomain.PayoutRecord
	err := r.db.WithContext(ctx).
		Where("billing_period < ? AND status IN (?, ?)",
			closedBefore,
			payoutdomain.PayoutStatusPending,
			payoutdomain.PayoutStatusFailed,
		).
		Order("billing_period, creator_id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *payoutRepo) ListByCreator(ctx context.Context, creatorID snowflake.ID, limit int) ([]payoutdomain.PayoutRecord, error) {
	if limit <= 0 {
		limit = 12
	}
	var records []payoutdomain.PayoutRecord
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("billing_period DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *payoutRepo) Transition(ctx context.Context, id snowflake.ID, from, to payoutdomain.PayoutStatus, updates map[string]any) (bool, error) {
	if !payoutdomain.CanTransition(from, to) {
		return false, payoutdomain.ErrInvalidTransition
	}

	values := map[string]any{"status": to}
	for key, value := range updates {
		values[key] = value
	}

	result := r.db.WithContext(ctx).
		Model(&payoutdomain.PayoutRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *payoutRepo) SumAmountByStatus(ctx context.Context, creatorID snowflake.ID, statuses []payoutdomain.PayoutStatus) (int64, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	var total int64
	err := r.db.WithContext(ctx).
		Model(&payoutdomain.PayoutRecord{}).
		Select("COALESCE(SUM(amount_minor_units), 0)").
		Where("creator_id = ? AND status IN ?", creatorID, statuses).
		Scan(&total).Error
	return total, err
}

func (r *payoutRepo) SumAmountForPeriod(ctx context.Context, period time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&payoutdomain.PayoutRecord{}).
		Select("COALESCE(SUM(amount_minor_units), 0)").
		Where("billing_period = ?", period).
		Scan(&total).Error
	return total, err
}
