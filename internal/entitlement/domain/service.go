package domain

import (
	"context"
	"errors"
	"time"
)

// Service answers "does this user hold an active paid entitlement right now".
// Ownership of the underlying subscription state stays with billing.
type Service interface {
	IsEntitled(ctx context.Context, userID string, at time.Time) (bool, error)
}

var (
	ErrInvalidUser = errors.New("invalid_user")
)
