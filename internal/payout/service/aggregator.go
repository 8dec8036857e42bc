package service

import (
	"github.com/bwmarrin/snowflake"
	"github.com/flowmarket/flowmarket/internal/billingperiod"
	"github.com/flowmarket/flowmarket/internal/clock"
	"github.com/flowmarket/flowmarket/internal/config"
	copydomain "github.com/flowmarket/flowmarket/internal/copyledger/domain"
	"github.com/flowmarket/flowmarket/internal/metrics"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
	transferdomain "github.com/flowmarket/flowmarket/internal/transfer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"context"
	"time"
)

type ServiceParam struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Ledger       copydomain.Repository
	Payouts      payoutdomain.Repository
	Monetization *config.MonetizationConfigHolder
	Destinations transferdomain.DestinationResolver
	Transfers    transferdomain.Adapter `optional:"true"`
	Metrics      *metrics.Metrics       `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID        *snowflake.Node
	clock        clock.Clock
	ledger       copydomain.Repository
	payouts      payoutdomain.Repository
	monetization *config.MonetizationConfigHolder
	destinations transferdomain.DestinationResolver
	transfers    transferdomain.Adapter
	metrics      *metrics.Metrics
}

func NewService(p ServiceParam) *Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("payout.service"),

		genID:        p.GenID,
		clock:        p.Clock,
		ledger:       p.Ledger,
		payouts:      p.Payouts,
		monetization: p.Monetization,
		destinations: p.Destinations,
		transfers:    p.Transfers,
		metrics:      p.Metrics,
	}
}

func NewAggregator(s *Service) payoutdomain.AggregatorService { return s }
func NewDisburser(s *Service) payoutdomain.DisburserService   { return s }
func NewEarnings(s *Service) payoutdomain.EarningsService     { return s }

// AggregatePeriod rolls the period's qualifying copies into one payout
// record per creator. Re-running refreshes pending records in place and
// leaves records that already entered disbursement untouched, so the job is
// idempotent up to the transferring boundary.
func (s *Service) AggregatePeriod(ctx context.Context, period time.Time) ([]payoutdomain.PayoutRecord, error) {
	if period.IsZero() {
		return nil, payoutdomain.ErrInvalidPeriod
	}
	period = billingperiod.Start(period)
	if !billingperiod.IsClosed(period, s.clock.Now()) {
		return nil, payoutdomain.ErrPeriodStillOpen
	}

	totals, err := s.ledger.AggregateByCreator(ctx, period)
	if err != nil {
		return nil, err
	}

	cfg := s.monetization.Get()
	now := s.clock.Now()

	records := make([]payoutdomain.PayoutRecord, 0, len(totals))
	for _, total := range totals {
		record := payoutdomain.PayoutRecord{
			ID:                  s.genID.Generate(),
			CreatorID:           total.CreatorID,
			BillingPeriod:       period,
			QualifyingCopyCount: total.CopyCount,
			AmountMinorUnits:    total.CopyCount * cfg.RatePerCopy,
			Status:              payoutdomain.PayoutStatusPending,
			CreatedAt:           now,
			UpdatedAt:           now,
		}

		written, err := s.payouts.UpsertAggregate(ctx, &record)
		if err != nil {
			return nil, err
		}
		if written {
			s.metrics.IncPayoutRecord("upserted")
		} else {
			s.metrics.IncPayoutRecord("frozen")
			s.log.Info("payout record already disbursing, aggregate left unchanged",
				zap.String("creator_id", total.CreatorID.String()),
				zap.Time("billing_period", period),
			)
		}
		records = append(records, record)
	}

	s.reconcile(ctx, period, records)

	s.log.Info("payout aggregation complete",
		zap.Time("billing_period", period),
		zap.Int("creators", len(records)),
	)
	return records, nil
}

// reconcile compares the ledger's qualifying count against the sum held in
// payout records. A mismatch means some records were frozen mid-period or
// the ledger moved after disbursement started; it is surfaced, not fixed.
func (s *Service) reconcile(ctx context.Context, period time.Time, records []payoutdomain.PayoutRecord) {
	ledgerCount, err := s.ledger.CountQualifyingInPeriod(ctx, period)
	if err != nil {
		s.log.Warn("reconciliation count failed", zap.Error(err))
		return
	}

	var recordCount int64
	for _, record := range records {
		recordCount += record.QualifyingCopyCount
	}

	if ledgerCount != recordCount {
		s.log.Warn("aggregation reconciliation mismatch",
			zap.Time("billing_period", period),
			zap.Int64("ledger_qualifying_copies", ledgerCount),
			zap.Int64("payout_record_copies", recordCount),
		)
	}
}
