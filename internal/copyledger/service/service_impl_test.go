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

	"github.com/flowmarket/flowmarket/internal/cache"
	catalogdomain "github.com/flowmarket/flowmarket/internal/catalog/domain"
	"github.com/flowmarket/flowmarket/internal/clock"
	"github.com/flowmarket/flowmarket/internal/config"
	copydomain "github.com/flowmarket/flowmarket/internal/copyledger/domain"
	"github.com/flowmarket/flowmarket/internal/copyledger/repository"
	"github.com/flowmarket/flowmarket/internal/usercontext"
)

// -- Mocks --

type catalogMock struct {
	mock.Mock
}

func (m *catalogMock) GetFlow(ctx context.Context, flowID string) (*catalogdomain.Flow, error) {
	args := m.Called(ctx, flowID)
	res := args.Get(0)
	if res == nil {
		return nil, args.Error(1)
	}
	return res.(*catalogdomain.Flow), args.Error(1)
}

func (m *catalogMock) IncrementTotalCopies(ctx context.Context, flowID string) error {
	args := m.Called(ctx, flowID)
	return args.Error(0)
}

type entitlementMock struct {
	mock.Mock
}

func (m *entitlementMock) IsEntitled(ctx context.Context, userID string, at time.Time) (bool, error) {
	args := m.Called(ctx, userID, at)
	return args.Bool(0), args.Error(1)
}

// -- Fixture --

type fixture struct {
	svc         copydomain.Service
	db          *gorm.DB
	genID       *snowflake.Node
	clk         *clock.FakeClock
	catalog     *catalogMock
	entitlement *entitlementMock
}

func newFixture(t *testing.T, monetization config.MonetizationConfig) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&copydomain.CopyEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	genID, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	catalog := &catalogMock{}
	entitlement := &entitlementMock{}

	svc := NewService(ServiceParam{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          genID,
		Clock:          clk,
		Ledger:         repository.Provide(db),
		EntitlementSvc: entitlement,
		CatalogSvc:     catalog,
		Monetization:   config.NewStaticMonetizationHolder(monetization),
		ResolverCache:  cache.NewCopyResolverCache(),
	})

	return &fixture{
		svc:         svc,
		db:          db,
		genID:       genID,
		clk:         clk,
		catalog:     catalog,
		entitlement: entitlement,
	}
}

func (f *fixture) userCtx(userID snowflake.ID) context.Context {
	return usercontext.WithUserID(context.Background(), userID)
}

func (f *fixture) premiumFlow(creatorID snowflake.ID) *catalogdomain.Flow {
	return &catalogdomain.Flow{
		ID:        f.genID.Generate(),
		CreatorID: creatorID,
		Title:     "morning research digest",
		Payload:   "open tabs, summarize, email me",
		IsPremium: true,
	}
}

func (f *fixture) rowCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	assert.NoError(t, f.db.Model(&copydomain.CopyEvent{}).Count(&count).Error)
	return count
}

// -- Tests --

func TestCopy_RequiresUserContext(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())

	_, err := f.svc.Copy(context.Background(), copydomain.CreateCopyRequest{FlowID: "123"})
	assert.ErrorIs(t, err, copydomain.ErrInvalidUser)
	assert.Equal(t, int64(0), f.rowCount(t))
}

func TestCopy_PremiumWithoutEntitlement(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	flow := f.premiumFlow(f.genID.Generate())

	f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(false, nil)

	_, err := f.svc.Copy(f.userCtx(userID), copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.ErrorIs(t, err, copydomain.ErrEntitlementRequired)

	// Denied attempts leave no trace in the ledger.
	assert.Equal(t, int64(0), f.rowCount(t))
}

func TestCopy_FirstQualifyingCopy(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	creatorID := f.genID.Generate()
	flow := f.premiumFlow(creatorID)

	f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
	f.catalog.On("IncrementTotalCopies", mock.Anything, flow.ID.String()).Return(nil)
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(true, nil)

	result, err := f.svc.Copy(f.userCtx(userID), copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)

	assert.True(t, result.Qualifying)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 99, result.RemainingQuota)
	assert.Equal(t, flow.Payload, result.Payload)
	assert.Equal(t, creatorID, result.Event.CreatorID)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), result.Event.BillingPeriod)
	assert.Equal(t, int64(1), f.rowCount(t))

	f.catalog.AssertCalled(t, "IncrementTotalCopies", mock.Anything, flow.ID.String())
}

func TestCopy_DuplicateSamePeriod(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	flow := f.premiumFlow(f.genID.Generate())

	f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
	f.catalog.On("IncrementTotalCopies", mock.Anything, flow.ID.String()).Return(nil)
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(true, nil)

	first, err := f.svc.Copy(f.userCtx(userID), copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)

	second, err := f.svc.Copy(f.userCtx(userID), copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.False(t, second.Qualifying)
	assert.Equal(t, first.Event.ID, second.Event.ID)
	assert.Equal(t, flow.Payload, second.Payload)
	// The duplicate did not consume quota beyond the first copy.
	assert.Equal(t, 99, second.RemainingQuota)
	assert.Equal(t, int64(1), f.rowCount(t))
}

func TestCopy_DuplicateRetryAfterEntitlementLapse(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	flow := f.premiumFlow(f.genID.Generate())

	f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
	f.catalog.On("IncrementTotalCopies", mock.Anything, flow.ID.String()).Return(nil)
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(true, nil).Once()

	_, err := f.svc.Copy(f.userCtx(userID), copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)

	// The subscription lapses; the retry of the same copy must still return
	// the recorded outcome instead of an entitlement error.
	f.entitlement.ExpectedCalls = nil
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(false, nil)

	result, err := f.svc.Copy(f.userCtx(userID), copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)
	assert.True(t, result.Duplicate)
}

func TestCopy_CapExhausted(t *testing.T) {
	cfg := config.DefaultMonetizationConfig()
	cfg.MonthlyCopyCap = 2
	f := newFixture(t, cfg)

	userID := f.genID.Generate()
	creatorID := f.genID.Generate()
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(true, nil)

	flows := []*catalogdomain.Flow{
		f.premiumFlow(creatorID),
		f.premiumFlow(creatorID),
		f.premiumFlow(creatorID),
	}
	for _, flow := range flows {
		f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
		f.catalog.On("IncrementTotalCopies", mock.Anything, flow.ID.String()).Return(nil)
	}

	ctx := f.userCtx(userID)

	first, err := f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flows[0].ID.String()})
	assert.NoError(t, err)
	assert.True(t, first.Qualifying)
	assert.Equal(t, 1, first.RemainingQuota)

	second, err := f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flows[1].ID.String()})
	assert.NoError(t, err)
	assert.True(t, second.Qualifying)
	assert.Equal(t, 0, second.RemainingQuota)

	// Cap reached: the copy still succeeds and is recorded, but earns the
	// creator nothing.
	third, err := f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flows[2].ID.String()})
	assert.NoError(t, err)
	assert.False(t, third.Qualifying)
	assert.False(t, third.Duplicate)
	assert.Equal(t, 0, third.RemainingQuota)
	assert.Equal(t, flows[2].Payload, third.Payload)
	assert.Equal(t, int64(3), f.rowCount(t))

	count, err := f.svc.CountQualifying(ctx, userID, f.clk.Now())
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCopy_FreeFlowBypassesEntitlement(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	flow := f.premiumFlow(f.genID.Generate())
	flow.IsPremium = false

	f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
	f.catalog.On("IncrementTotalCopies", mock.Anything, flow.ID.String()).Return(nil)

	result, err := f.svc.Copy(f.userCtx(userID), copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)

	assert.False(t, result.Qualifying)
	assert.Equal(t, flow.Payload, result.Payload)
	assert.Equal(t, int64(1), f.rowCount(t))

	// No subscription lookup happened at all.
	f.entitlement.AssertNotCalled(t, "IsEntitled", mock.Anything, mock.Anything, mock.Anything)
}

func TestCopy_NewPeriodResetsDedupe(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	flow := f.premiumFlow(f.genID.Generate())

	f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
	f.catalog.On("IncrementTotalCopies", mock.Anything, flow.ID.String()).Return(nil)
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(true, nil)

	ctx := f.userCtx(userID)

	_, err := f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)

	f.clk.Advance(31 * 24 * time.Hour) // into February

	result, err := f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)

	assert.False(t, result.Duplicate)
	assert.True(t, result.Qualifying)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), result.Event.BillingPeriod)
	assert.Equal(t, int64(2), f.rowCount(t))
}

func TestCopy_UnknownFlow(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	missing := f.genID.Generate().String()

	f.catalog.On("GetFlow", mock.Anything, missing).Return(nil, catalogdomain.ErrFlowNotFound)

	_, err := f.svc.Copy(f.userCtx(userID), copydomain.CreateCopyRequest{FlowID: missing})
	assert.ErrorIs(t, err, copydomain.ErrInvalidFlow)
	assert.Equal(t, int64(0), f.rowCount(t))
}

func TestCopy_StampsSourceMetadata(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	flowA := f.premiumFlow(f.genID.Generate())
	flowB := f.premiumFlow(f.genID.Generate())

	for _, flow := range []*catalogdomain.Flow{flowA, flowB} {
		f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
		f.catalog.On("IncrementTotalCopies", mock.Anything, flow.ID.String()).Return(nil)
	}
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(true, nil)

	ctx := f.userCtx(userID)

	result, err := f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flowA.ID.String(), Source: "extension"})
	assert.NoError(t, err)
	assert.Equal(t, "extension", result.Event.Metadata["source"])
	assert.Equal(t, flowA.Title, result.Event.Metadata["flow_title"])

	// The map survives the round trip through the jsonb column.
	var stored copydomain.CopyEvent
	assert.NoError(t, f.db.First(&stored, "id = ?", result.Event.ID).Error)
	assert.Equal(t, "extension", stored.Metadata["source"])

	// An omitted source falls back to the default surface.
	result, err = f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flowB.ID.String()})
	assert.NoError(t, err)
	assert.Equal(t, "api", result.Event.Metadata["source"])
}

func TestList_FiltersByBillingPeriod(t *testing.T) {
	f := newFixture(t, config.DefaultMonetizationConfig())
	userID := f.genID.Generate()
	flow := f.premiumFlow(f.genID.Generate())

	f.catalog.On("GetFlow", mock.Anything, flow.ID.String()).Return(flow, nil)
	f.catalog.On("IncrementTotalCopies", mock.Anything, flow.ID.String()).Return(nil)
	f.entitlement.On("IsEntitled", mock.Anything, userID.String(), mock.Anything).Return(true, nil)

	ctx := f.userCtx(userID)

	_, err := f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)

	f.clk.Advance(31 * 24 * time.Hour) // into February

	_, err = f.svc.Copy(ctx, copydomain.CreateCopyRequest{FlowID: flow.ID.String()})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), f.rowCount(t))

	resp, err := f.svc.List(ctx, copydomain.ListCopiesRequest{
		UserID:        userID.String(),
		BillingPeriod: "2026-01-01",
	})
	assert.NoError(t, err)
	if assert.Len(t, resp.CopyEvents, 1) {
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), resp.CopyEvents[0].BillingPeriod)
	}

	_, err = f.svc.List(ctx, copydomain.ListCopiesRequest{BillingPeriod: "not-a-date"})
	assert.ErrorIs(t, err, copydomain.ErrInvalidFlow)
}
