package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	entitlementdomain "github.com/flowmarket/flowmarket/internal/entitlement/domain"
	"github.com/flowmarket/flowmarket/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	subrepo repository.Repository[entitlementdomain.Subscription]
}

func NewService(p ServiceParam) entitlementdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("entitlement.service"),

		subrepo: repository.ProvideStore[entitlementdomain.Subscription](p.DB),
	}
}

// IsEntitled treats active and trialing subscriptions whose current period
// covers the instant as paid access. past_due and canceled do not qualify.
func (s *Service) IsEntitled(ctx context.Context, userID string, at time.Time) (bool, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(userID))
	if err != nil || id == 0 {
		return false, entitlementdomain.ErrInvalidUser
	}

	sub, err := s.subrepo.FindOne(ctx, &entitlementdomain.Subscription{UserID: id})
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}

	switch sub.Status {
	case entitlementdomain.SubscriptionStatusActive, entitlementdomain.SubscriptionStatusTrialing:
	default:
		return false, nil
	}

	at = at.UTC()
	if at.Before(sub.CurrentPeriodStart) || !at.Before(sub.CurrentPeriodEnd) {
		return false, nil
	}
	return true, nil
}
