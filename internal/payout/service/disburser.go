package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flowmarket/flowmarket/internal/billingperiod"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
	transferdomain "github.com/flowmarket/flowmarket/internal/transfer/domain"
	"go.uber.org/zap"
)

// DisbursePending walks one period's pending and failed records and drives
// each through the transfer state machine. Failure isolation: a creator
// whose transfer errors is marked failed and the loop continues; only
// storage-level errors bubble up.
func (s *Service) DisbursePending(ctx context.Context, period time.Time) error {
	if period.IsZero() {
		return payoutdomain.ErrInvalidPeriod
	}
	period = billingperiod.Start(period)

	records, err := s.payouts.ListForDisbursement(ctx, period)
	if err != nil {
		return err
	}
	return s.disburseBatch(ctx, records)
}

// DisburseOutstanding sweeps pending and failed records across every closed
// period, not just the most recent one. A record that failed (or sat below
// the minimum) when its own month was processed stays eligible here until
// it settles, so the scheduled run never strands old balances.
func (s *Service) DisburseOutstanding(ctx context.Context) error {
	closedBefore := billingperiod.Start(s.clock.Now())

	records, err := s.payouts.ListOutstanding(ctx, closedBefore)
	if err != nil {
		return err
	}
	return s.disburseBatch(ctx, records)
}

func (s *Service) disburseBatch(ctx context.Context, records []payoutdomain.PayoutRecord) error {
	cfg := s.monetization.Get()
	var errs error
	for _, record := range records {
		if err := s.disburseOne(ctx, record, cfg.MinimumPayoutMinorUnits); err != nil {
			errs = errors.Join(errs, fmt.Errorf("creator %s: %w", record.CreatorID.String(), err))
		}
	}
	return errs
}

func (s *Service) disburseOne(ctx context.Context, record payoutdomain.PayoutRecord, minimum int64) error {
	log := s.log.With(
		zap.String("payout_id", record.ID.String()),
		zap.String("creator_id", record.CreatorID.String()),
		zap.Time("billing_period", record.BillingPeriod),
	)

	// Sub-threshold amounts stay pending; there is no cross-period merge,
	// the balance simply remains visible in the earnings projection.
	if record.AmountMinorUnits < minimum {
		log.Debug("payout below minimum threshold, skipping",
			zap.Int64("amount_minor_units", record.AmountMinorUnits),
			zap.Int64("minimum", minimum),
		)
		s.metrics.IncTransfer("below_threshold")
		return nil
	}

	destination, err := s.destinations.GetPayoutDestination(ctx, record.CreatorID.String())
	if err != nil {
		return err
	}
	if destination == "" {
		log.Warn("creator has no verified payout destination, skipping")
		s.metrics.IncTransfer("no_destination")
		return nil
	}

	if s.transfers == nil {
		return errors.New("transfer_adapter_unavailable")
	}

	moved, err := s.payouts.Transition(ctx, record.ID, record.Status, payoutdomain.PayoutStatusTransferring, map[string]any{
		"updated_at": s.clock.Now(),
	})
	if err != nil {
		return err
	}
	if !moved {
		// Another run claimed this record first.
		log.Info("payout already claimed by a concurrent run")
		return nil
	}

	result, err := s.transfers.CreateTransfer(ctx, transferdomain.TransferRequest{
		DestinationHandle: destination,
		AmountMinorUnits:  record.AmountMinorUnits,
		Currency:          "usd",
		Description:       fmt.Sprintf("flowmarket payout %s", record.BillingPeriod.Format("2006-01")),
		// Stable per-record key so a crash between transfer and settle
		// cannot double-pay on retry.
		IdempotencyKey: "payout-" + record.ID.String(),
	})
	if err != nil {
		log.Warn("transfer failed", zap.Error(err))
		s.metrics.IncTransfer("failed")
		_, casErr := s.payouts.Transition(ctx, record.ID, payoutdomain.PayoutStatusTransferring, payoutdomain.PayoutStatusFailed, map[string]any{
			"updated_at": s.clock.Now(),
		})
		if casErr != nil {
			return casErr
		}
		// A failed transfer is an expected outcome for this run; the record
		// retries on the next scheduled pass.
		return nil
	}

	now := s.clock.Now()
	moved, err = s.payouts.Transition(ctx, record.ID, payoutdomain.PayoutStatusTransferring, payoutdomain.PayoutStatusPaid, map[string]any{
		"transfer_reference": result.Reference,
		"settled_at":         now,
		"updated_at":         now,
	})
	if err != nil {
		return err
	}
	if !moved {
		return payoutdomain.ErrTransitionConflict
	}

	log.Info("payout settled",
		zap.String("transfer_reference", result.Reference),
		zap.Int64("amount_minor_units", record.AmountMinorUnits),
	)
	s.metrics.IncTransfer("paid")
	return nil
}
