package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
)

const earningsPeriodLimit = 12

// Earnings is the read-only creator projection: lifetime paid total, the
// balance still working its way through disbursement, and the recent
// per-period breakdown.
func (s *Service) Earnings(ctx context.Context, creatorID string) (payoutdomain.EarningsResponse, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(creatorID))
	if err != nil || id == 0 {
		return payoutdomain.EarningsResponse{}, payoutdomain.ErrInvalidCreator
	}

	lifetime, err := s.payouts.SumAmountByStatus(ctx, id, []payoutdomain.PayoutStatus{
		payoutdomain.PayoutStatusPaid,
	})
	if err != nil {
		return payoutdomain.EarningsResponse{}, err
	}

	balance, err := s.payouts.SumAmountByStatus(ctx, id, []payoutdomain.PayoutStatus{
		payoutdomain.PayoutStatusPending,
		payoutdomain.PayoutStatusTransferring,
		payoutdomain.PayoutStatusFailed,
	})
	if err != nil {
		return payoutdomain.EarningsResponse{}, err
	}

	records, err := s.payouts.ListByCreator(ctx, id, earningsPeriodLimit)
	if err != nil {
		return payoutdomain.EarningsResponse{}, err
	}

	periods := make([]payoutdomain.PeriodEarnings, 0, len(records))
	for _, record := range records {
		periods = append(periods, payoutdomain.PeriodEarnings{
			BillingPeriod:    record.BillingPeriod,
			CopyCount:        record.QualifyingCopyCount,
			AmountMinorUnits: record.AmountMinorUnits,
			Status:           record.Status,
			SettledAt:        record.SettledAt,
		})
	}

	return payoutdomain.EarningsResponse{
		CreatorID:                id.String(),
		LifetimeTotalMinorUnits:  lifetime,
		CurrentBalanceMinorUnits: balance,
		Periods:                  periods,
	}, nil
}
