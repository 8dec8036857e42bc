package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowmarket/flowmarket/internal/config"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
)

func TestEarnings_SplitsLifetimeAndBalance(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())
	creatorID := f.genID.Generate()
	other := f.genID.Generate()

	seed := []struct {
		period time.Time
		amount int64
		status payoutdomain.PayoutStatus
	}{
		{time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), 1400, payoutdomain.PayoutStatusPaid},
		{time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), 2100, payoutdomain.PayoutStatusPaid},
		{time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), 700, payoutdomain.PayoutStatusPending},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 2800, payoutdomain.PayoutStatusFailed},
	}
	for _, s := range seed {
		record := payoutdomain.PayoutRecord{
			ID:               f.genID.Generate(),
			CreatorID:        creatorID,
			BillingPeriod:    s.period,
			AmountMinorUnits: s.amount,
			Status:           s.status,
			CreatedAt:        f.clk.Now(),
			UpdatedAt:        f.clk.Now(),
		}
		assert.NoError(t, f.db.Create(&record).Error)
	}
	// Another creator's record never shows up.
	assert.NoError(t, f.db.Create(&payoutdomain.PayoutRecord{
		ID:               f.genID.Generate(),
		CreatorID:        other,
		BillingPeriod:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		AmountMinorUnits: 99999,
		Status:           payoutdomain.PayoutStatusPaid,
		CreatedAt:        f.clk.Now(),
		UpdatedAt:        f.clk.Now(),
	}).Error)

	resp, err := f.svc.Earnings(context.Background(), creatorID.String())
	assert.NoError(t, err)

	assert.Equal(t, creatorID.String(), resp.CreatorID)
	assert.Equal(t, int64(3500), resp.LifetimeTotalMinorUnits)
	assert.Equal(t, int64(3500), resp.CurrentBalanceMinorUnits)
	assert.Len(t, resp.Periods, 4)
	// Most recent period first.
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), resp.Periods[0].BillingPeriod.UTC())
}

func TestEarnings_BreakdownLimitedToRecentPeriods(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())
	creatorID := f.genID.Generate()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		record := payoutdomain.PayoutRecord{
			ID:               f.genID.Generate(),
			CreatorID:        creatorID,
			BillingPeriod:    start.AddDate(0, i, 0),
			AmountMinorUnits: 1000,
			Status:           payoutdomain.PayoutStatusPaid,
			CreatedAt:        f.clk.Now(),
			UpdatedAt:        f.clk.Now(),
		}
		assert.NoError(t, f.db.Create(&record).Error)
	}

	resp, err := f.svc.Earnings(context.Background(), creatorID.String())
	assert.NoError(t, err)

	assert.Len(t, resp.Periods, 12)
	// The lifetime total still covers everything, including periods beyond
	// the breakdown window.
	assert.Equal(t, int64(15000), resp.LifetimeTotalMinorUnits)
}

func TestEarnings_InvalidCreator(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())

	_, err := f.svc.Earnings(context.Background(), "")
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidCreator)

	_, err = f.svc.Earnings(context.Background(), "not-a-snowflake")
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidCreator)
}

func TestEarnings_EmptyCreatorHasZeroes(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())

	resp, err := f.svc.Earnings(context.Background(), f.genID.Generate().String())
	assert.NoError(t, err)
	assert.Zero(t, resp.LifetimeTotalMinorUnits)
	assert.Zero(t, resp.CurrentBalanceMinorUnits)
	assert.Empty(t, resp.Periods)
}
