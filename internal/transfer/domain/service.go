package domain

import (
	"context"
	"errors"
)

type TransferRequest struct {
	DestinationHandle string
	AmountMinorUnits  int64
	Currency          string
	Description       string
	IdempotencyKey    string
}

type TransferResult struct {
	Reference string
}

// Adapter initiates a transfer with one external provider.
type Adapter interface {
	Provider() string
	CreateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// AdapterFactory builds a provider adapter from its configuration.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}

type AdapterConfig struct {
	Config map[string]any
}

// DestinationResolver answers "where does this creator get paid". An empty
// handle with a nil error means the creator has not finished onboarding.
type DestinationResolver interface {
	GetPayoutDestination(ctx context.Context, creatorID string) (string, error)
}

var (
	ErrInvalidConfig    = errors.New("invalid_transfer_config")
	ErrProviderNotFound = errors.New("transfer_provider_not_found")
	ErrInvalidAmount    = errors.New("invalid_transfer_amount")
	ErrTransferFailed   = errors.New("transfer_failed")
)
