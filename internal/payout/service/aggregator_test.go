package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flowmarket/flowmarket/internal/clock"
	"github.com/flowmarket/flowmarket/internal/config"
	copydomain "github.com/flowmarket/flowmarket/internal/copyledger/domain"
	copyrepository "github.com/flowmarket/flowmarket/internal/copyledger/repository"
	payoutdomain "github.com/flowmarket/flowmarket/internal/payout/domain"
	"github.com/flowmarket/flowmarket/internal/payout/repository"
	transferdomain "github.com/flowmarket/flowmarket/internal/transfer/domain"
)

// -- Mocks --

type destinationMock struct {
	mock.Mock
}

func (m *destinationMock) GetPayoutDestination(ctx context.Context, creatorID string) (string, error) {
	args := m.Called(ctx, creatorID)
	return args.String(0), args.Error(1)
}

type adapterMock struct {
	mock.Mock
}

func (m *adapterMock) Provider() string { return "stripe" }

func (m *adapterMock) CreateTransfer(ctx context.Context, req transferdomain.TransferRequest) (*transferdomain.TransferResult, error) {
	args := m.Called(ctx, req)
	res := args.Get(0)
	if res == nil {
		return nil, args.Error(1)
	}
	return res.(*transferdomain.TransferResult), args.Error(1)
}

// -- Fixture --

type payoutFixture struct {
	svc          *Service
	db           *gorm.DB
	genID        *snowflake.Node
	clk          *clock.FakeClock
	ledger       copydomain.Repository
	payouts      payoutdomain.Repository
	destinations *destinationMock
	transfers    *adapterMock
}

func newPayoutFixture(t *testing.T, monetization config.MonetizationConfig) *payoutFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&copydomain.CopyEvent{}, &payoutdomain.PayoutRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	genID, _ := snowflake.NewNode(1)
	// Mid-February: January is closed, February is the open period.
	clk := clock.NewFakeClock(time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC))
	destinations := &destinationMock{}
	transfers := &adapterMock{}
	ledger := copyrepository.Provide(db)
	payouts := repository.Provide(db)

	svc := NewService(ServiceParam{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        genID,
		Clock:        clk,
		Ledger:       ledger,
		Payouts:      payouts,
		Monetization: config.NewStaticMonetizationHolder(monetization),
		Destinations: destinations,
		Transfers:    transfers,
	})

	return &payoutFixture{
		svc:          svc,
		db:           db,
		genID:        genID,
		clk:          clk,
		ledger:       ledger,
		payouts:      payouts,
		destinations: destinations,
		transfers:    transfers,
	}
}

func (f *payoutFixture) seedQualifyingCopies(t *testing.T, creatorID snowflake.ID, period time.Time, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		inserted, err := f.ledger.Insert(context.Background(), &copydomain.CopyEvent{
			ID:                 f.genID.Generate(),
			UserID:             f.genID.Generate(),
			FlowID:             f.genID.Generate(),
			CreatorID:          creatorID,
			BillingPeriod:      period,
			QualifiesForPayout: true,
			OccurredAt:         period.Add(time.Duration(i) * time.Hour),
			CreatedAt:          period.Add(time.Duration(i) * time.Hour),
		})
		assert.NoError(t, err)
		assert.True(t, inserted)
	}
}

var january = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// -- Tests --

func TestAggregatePeriod_AmountIsCountTimesRate(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())
	creatorID := f.genID.Generate()
	f.seedQualifyingCopies(t, creatorID, january, 42)

	records, err := f.svc.AggregatePeriod(context.Background(), january)
	assert.NoError(t, err)
	if assert.Len(t, records, 1) {
		assert.Equal(t, creatorID, records[0].CreatorID)
		assert.Equal(t, int64(42), records[0].QualifyingCopyCount)
		assert.Equal(t, int64(42*7), records[0].AmountMinorUnits)
		assert.Equal(t, payoutdomain.PayoutStatusPending, records[0].Status)
	}
}

func TestAggregatePeriod_Idempotent(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())
	creatorID := f.genID.Generate()
	f.seedQualifyingCopies(t, creatorID, january, 5)

	first, err := f.svc.AggregatePeriod(context.Background(), january)
	assert.NoError(t, err)

	second, err := f.svc.AggregatePeriod(context.Background(), january)
	assert.NoError(t, err)

	assert.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].AmountMinorUnits, second[0].AmountMinorUnits)

	var count int64
	assert.NoError(t, f.db.Model(&payoutdomain.PayoutRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestAggregatePeriod_RefreshesPendingWithNewCopies(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())
	creatorID := f.genID.Generate()
	f.seedQualifyingCopies(t, creatorID, january, 3)

	_, err := f.svc.AggregatePeriod(context.Background(), january)
	assert.NoError(t, err)

	// Late-arriving events for the closed period are picked up while the
	// record is still pending.
	f.seedQualifyingCopies(t, creatorID, january, 2)

	records, err := f.svc.AggregatePeriod(context.Background(), january)
	assert.NoError(t, err)
	assert.Equal(t, int64(5), records[0].QualifyingCopyCount)
	assert.Equal(t, int64(5*7), records[0].AmountMinorUnits)
}

func TestAggregatePeriod_FrozenOnceDisbursing(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())
	creatorID := f.genID.Generate()
	f.seedQualifyingCopies(t, creatorID, january, 3)

	records, err := f.svc.AggregatePeriod(context.Background(), january)
	assert.NoError(t, err)

	moved, err := f.payouts.Transition(context.Background(), records[0].ID,
		payoutdomain.PayoutStatusPending, payoutdomain.PayoutStatusTransferring, nil)
	assert.NoError(t, err)
	assert.True(t, moved)

	f.seedQualifyingCopies(t, creatorID, january, 4)

	refreshed, err := f.svc.AggregatePeriod(context.Background(), january)
	assert.NoError(t, err)
	// The in-flight record keeps its original amount.
	assert.Equal(t, int64(3), refreshed[0].QualifyingCopyCount)
	assert.Equal(t, int64(3*7), refreshed[0].AmountMinorUnits)
	assert.Equal(t, payoutdomain.PayoutStatusTransferring, refreshed[0].Status)
}

func TestAggregatePeriod_MultipleCreators(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())
	creatorA := f.genID.Generate()
	creatorB := f.genID.Generate()
	f.seedQualifyingCopies(t, creatorA, january, 10)
	f.seedQualifyingCopies(t, creatorB, january, 1)

	records, err := f.svc.AggregatePeriod(context.Background(), january)
	assert.NoError(t, err)
	assert.Len(t, records, 2)

	total, err := f.payouts.SumAmountForPeriod(context.Background(), january)
	assert.NoError(t, err)
	assert.Equal(t, int64(11*7), total)
}

func TestAggregatePeriod_RejectsOpenPeriod(t *testing.T) {
	f := newPayoutFixture(t, config.DefaultMonetizationConfig())

	february := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.svc.AggregatePeriod(context.Background(), february)
	assert.ErrorIs(t, err, payoutdomain.ErrPeriodStillOpen)

	_, err = f.svc.AggregatePeriod(context.Background(), time.Time{})
	assert.ErrorIs(t, err, payoutdomain.ErrInvalidPeriod)
}
