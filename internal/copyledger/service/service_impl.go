package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowmarket/flowmarket/internal/billingperiod"
	"github.com/flowmarket/flowmarket/internal/cache"
	catalogdomain "github.com/flowmarket/flowmarket/internal/catalog/domain"
	"github.com/flowmarket/flowmarket/internal/clock"
	"github.com/flowmarket/flowmarket/internal/config"
	copydomain "github.com/flowmarket/flowmarket/internal/copyledger/domain"
	entitlementdomain "github.com/flowmarket/flowmarket/internal/entitlement/domain"
	"github.com/flowmarket/flowmarket/internal/metrics"
	"github.com/flowmarket/flowmarket/internal/usercontext"
	"github.com/flowmarket/flowmarket/pkg/db/option"
	"github.com/flowmarket/flowmarket/pkg/db/pagination"
	"github.com/flowmarket/flowmarket/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Ledger         copydomain.Repository
	EntitlementSvc entitlementdomain.Service
	CatalogSvc     catalogdomain.Service
	Monetization   *config.MonetizationConfigHolder
	ResolverCache  cache.CopyResolverCache
	Metrics        *metrics.Metrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID          *snowflake.Node
	clock          clock.Clock
	ledger         copydomain.Repository
	entitlementSvc entitlementdomain.Service
	catalogSvc     catalogdomain.Service
	monetization   *config.MonetizationConfigHolder
	resolverCache  cache.CopyResolverCache
	metrics        *metrics.Metrics
	eventrepo      repository.Repository[copydomain.CopyEvent]
}

func NewService(p ServiceParam) copydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("copyledger.service"),

		genID:          p.GenID,
		clock:          p.Clock,
		ledger:         p.Ledger,
		entitlementSvc: p.EntitlementSvc,
		catalogSvc:     p.CatalogSvc,
		monetization:   p.Monetization,
		resolverCache:  p.ResolverCache,
		metrics:        p.Metrics,
		eventrepo:      repository.ProvideStore[copydomain.CopyEvent](p.DB),
	}
}

// Copy is the single entry point of the copy path. The qualifying count read
// and the ledger insert are intentionally not wrapped in one serializable
// transaction: two concurrent requests can both read count = cap-1 and both
// insert qualifying rows, overshooting the cap by one. Copy volume per user
// per period is bounded by the cap itself, so the exposure is off-by-a-few
// at the boundary and the unique index still guarantees one row per
// (user, flow, period).
func (s *Service) Copy(ctx context.Context, req copydomain.CreateCopyRequest) (*copydomain.CopyResult, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return nil, copydomain.ErrInvalidUser
	}

	flow, err := s.resolveFlow(ctx, req.FlowID)
	if err != nil {
		return nil, err
	}

	cfg := s.monetization.Get()
	now := s.clock.Now()
	period := billingperiod.Start(now)

	// Duplicate pre-check runs before the entitlement gate so a retry of an
	// already-recorded copy returns the original outcome as-is, even if the
	// subscription lapsed between the first attempt and the retry.
	existing, err := s.ledger.FindExisting(ctx, userID, flow.ID, period)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.duplicateResult(ctx, existing, flow, userID, period, cfg)
	}

	if flow.IsPremium {
		entitled, err := s.resolveEntitlement(ctx, userID, now)
		if err != nil {
			return nil, err
		}
		if !entitled {
			return nil, copydomain.ErrEntitlementRequired
		}
	}

	count, err := s.ledger.CountQualifying(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	// Free flows are recorded for dedupe and audit but never pay out.
	qualifies := flow.IsPremium && count < int64(cfg.MonthlyCopyCap)

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "api"
	}

	event := &copydomain.CopyEvent{
		ID:                 s.genID.Generate(),
		UserID:             userID,
		FlowID:             flow.ID,
		CreatorID:          flow.CreatorID,
		BillingPeriod:      period,
		QualifiesForPayout: qualifies,
		OccurredAt:         now,
		Metadata: datatypes.JSONMap{
			"source":     source,
			"flow_title": flow.Title,
		},
		CreatedAt: now,
	}

	inserted, err := s.ledger.Insert(ctx, event)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Lost the race to a concurrent identical request; surface that
		// request's row as the duplicate.
		existing, err := s.ledger.FindExisting(ctx, userID, flow.ID, period)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, errors.New("copy_event_conflict_vanished")
		}
		return s.duplicateResult(ctx, existing, flow, userID, period, cfg)
	}

	if err := s.catalogSvc.IncrementTotalCopies(ctx, flow.ID.String()); err != nil {
		s.log.Warn("total copies counter update failed",
			zap.String("flow_id", flow.ID.String()),
			zap.Error(err),
		)
	}

	remaining := int64(cfg.MonthlyCopyCap) - count
	if qualifies {
		remaining--
	}
	if remaining < 0 {
		remaining = 0
	}

	s.recordCopyMetric(flow, qualifies, false)

	return &copydomain.CopyResult{
		Event:          *event,
		Payload:        flow.Payload,
		Qualifying:     qualifies,
		RemainingQuota: int(remaining),
		Duplicate:      false,
	}, nil
}

func (s *Service) CountQualifying(ctx context.Context, userID snowflake.ID, period time.Time) (int64, error) {
	if userID == 0 {
		return 0, copydomain.ErrInvalidUser
	}
	return s.ledger.CountQualifying(ctx, userID, billingperiod.Start(period))
}

func (s *Service) List(ctx context.Context, req copydomain.ListCopiesRequest) (copydomain.ListCopiesResponse, error) {
	filter := &copydomain.CopyEvent{}

	if req.UserID != "" {
		id, err := snowflake.ParseString(req.UserID)
		if err != nil || id == 0 {
			return copydomain.ListCopiesResponse{}, copydomain.ErrInvalidUser
		}
		filter.UserID = id
	}
	if req.CreatorID != "" {
		id, err := snowflake.ParseString(req.CreatorID)
		if err != nil || id == 0 {
			return copydomain.ListCopiesResponse{}, copydomain.ErrInvalidUser
		}
		filter.CreatorID = id
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	opts := []option.QueryOption{
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  int(pageSize),
		}),
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
	}

	if req.BillingPeriod != "" {
		period, err := time.Parse(time.RFC3339, req.BillingPeriod)
		if err != nil {
			period, err = time.Parse("2006-01-02", req.BillingPeriod)
		}
		if err != nil {
			return copydomain.ListCopiesResponse{}, copydomain.ErrInvalidFlow
		}
		opts = append(opts, option.WithWhere("billing_period = ?", billingperiod.Start(period)))
	}

	items, err := s.eventrepo.Find(ctx, filter, opts...)
	if err != nil {
		return copydomain.ListCopiesResponse{}, err
	}
	return buildListResponse(items, pageSize), nil
}

func (s *Service) duplicateResult(
	ctx context.Context,
	existing *copydomain.CopyEvent,
	flow *catalogdomain.Flow,
	userID snowflake.ID,
	period time.Time,
	cfg config.MonetizationConfig,
) (*copydomain.CopyResult, error) {
	count, err := s.ledger.CountQualifying(ctx, userID, period)
	if err != nil {
		return nil, err
	}
	remaining := int64(cfg.MonthlyCopyCap) - count
	if remaining < 0 {
		remaining = 0
	}

	s.recordCopyMetric(flow, false, true)

	return &copydomain.CopyResult{
		Event:          *existing,
		Payload:        flow.Payload,
		Qualifying:     false,
		RemainingQuota: int(remaining),
		Duplicate:      true,
	}, nil
}

func (s *Service) resolveFlow(ctx context.Context, flowID string) (*catalogdomain.Flow, error) {
	if s.resolverCache != nil {
		if cached, ok := s.resolverCache.GetFlow(flowID); ok {
			return cached, nil
		}
	}
	flow, err := s.catalogSvc.GetFlow(ctx, flowID)
	if err != nil {
		switch {
		case errors.Is(err, catalogdomain.ErrInvalidFlow):
			return nil, copydomain.ErrInvalidFlow
		case errors.Is(err, catalogdomain.ErrFlowNotFound):
			return nil, copydomain.ErrInvalidFlow
		default:
			return nil, err
		}
	}
	if s.resolverCache != nil {
		s.resolverCache.SetFlow(flowID, flow)
	}
	return flow, nil
}

func (s *Service) resolveEntitlement(ctx context.Context, userID snowflake.ID, at time.Time) (bool, error) {
	key := userID.String()
	if s.resolverCache != nil {
		if cached, ok := s.resolverCache.GetEntitlement(key); ok {
			return cached, nil
		}
	}
	entitled, err := s.entitlementSvc.IsEntitled(ctx, key, at)
	if err != nil {
		return false, err
	}
	// Only positive results are cached; a fresh subscriber must not be
	// blocked by a stale negative entry.
	if entitled && s.resolverCache != nil {
		s.resolverCache.SetEntitlement(key, true)
	}
	return entitled, nil
}

func (s *Service) recordCopyMetric(flow *catalogdomain.Flow, qualifying, duplicate bool) {
	if s.metrics == nil {
		return
	}
	switch {
	case duplicate:
		s.metrics.IncCopyEvent(metrics.CopyOutcomeDuplicate)
	case qualifying:
		s.metrics.IncCopyEvent(metrics.CopyOutcomeQualifying)
	case !flow.IsPremium:
		s.metrics.IncCopyEvent(metrics.CopyOutcomeFree)
	default:
		s.metrics.IncCopyEvent(metrics.CopyOutcomeCapped)
	}
}

func buildListResponse(items []*copydomain.CopyEvent, pageSize int32) copydomain.ListCopiesResponse {
	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(event *copydomain.CopyEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        event.ID.String(),
			CreatedAt: event.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	events := make([]copydomain.CopyEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}

	resp := copydomain.ListCopiesResponse{CopyEvents: events}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp
}
