package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	transferdomain "github.com/flowmarket/flowmarket/internal/transfer/domain"
	"github.com/flowmarket/flowmarket/pkg/repository"
	"gorm.io/gorm"
)

type destinationRepo struct {
	store repository.Repository[transferdomain.PayoutDestination]
}

func ProvideDestinationResolver(conn *gorm.DB) transferdomain.DestinationResolver {
	return &destinationRepo{
		store: repository.ProvideStore[transferdomain.PayoutDestination](conn),
	}
}

// GetPayoutDestination returns the creator's verified handle, or "" when the
// creator has not onboarded or verification is incomplete.
func (r *destinationRepo) GetPayoutDestination(ctx context.Context, creatorID string) (string, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(creatorID))
	if err != nil || id == 0 {
		return "", nil
	}

	destination, err := r.store.FindOne(ctx, &transferdomain.PayoutDestination{CreatorID: id})
	if err != nil {
		return "", err
	}
	if destination == nil || !destination.Verified {
		return "", nil
	}
	return destination.Handle, nil
}
