package domain

import (
	"context"
	"errors"
)

type Service interface {
	// GetFlow resolves a flow and its creator at copy time.
	GetFlow(ctx context.Context, flowID string) (*Flow, error)
	// IncrementTotalCopies bumps the flow's denormalized copy counter.
	IncrementTotalCopies(ctx context.Context, flowID string) error
}

var (
	ErrInvalidFlow  = errors.New("invalid_flow")
	ErrFlowNotFound = errors.New("flow_not_found")
)
