package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/flowmarket/flowmarket/internal/catalog/domain"
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

	flowrepo repository.Repository[catalogdomain.Flow]
}

func NewService(p ServiceParam) catalogdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("catalog.service"),

		flowrepo: repository.ProvideStore[catalogdomain.Flow](p.DB),
	}
}

func (s *Service) GetFlow(ctx context.Context, flowID string) (*catalogdomain.Flow, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(flowID))
	if err != nil || id == 0 {
		return nil, catalogdomain.ErrInvalidFlow
	}

	flow, err := s.flowrepo.FindOne(ctx, &catalogdomain.Flow{ID: id})
	if err != nil {
		return nil, err
	}
	if flow == nil {
		return nil, catalogdomain.ErrFlowNotFound
	}
	return flow, nil
}

func (s *Service) IncrementTotalCopies(ctx context.Context, flowID string) error {
	id, err := snowflake.ParseString(strings.TrimSpace(flowID))
	if err != nil || id == 0 {
		return catalogdomain.ErrInvalidFlow
	}

	return s.db.WithContext(ctx).Exec(
		`UPDATE flows SET total_copies = total_copies + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		id,
	).Error
}
