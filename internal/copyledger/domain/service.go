package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowmarket/flowmarket/pkg/db/pagination"
)

type CreateCopyRequest struct {
	FlowID string `json:"flow_id"`
	// Source identifies the surface the copy came from (extension, web,
	// api). Stored on the event for attribution; defaults to "api".
	Source string `json:"source"`
}

// CopyResult is the recorder outcome. Duplicate and cap-exhausted copies are
// not errors: the payload is still delivered, the flags explain what the
// copy earned.
type CopyResult struct {
	Event          CopyEvent `json:"event"`
	Payload        string    `json:"payload"`
	Qualifying     bool      `json:"qualifying"`
	RemainingQuota int       `json:"remaining_quota"`
	Duplicate      bool      `json:"duplicate"`
}

type ListCopiesRequest struct {
	UserID        string `json:"user_id" form:"user_id"`
	CreatorID     string `json:"creator_id" form:"creator_id"`
	BillingPeriod string `json:"billing_period" form:"billing_period"`
	PageToken     string `json:"page_token" form:"page_token"`
	PageSize      int32  `json:"page_size" form:"page_size"`
}

type ListCopiesResponse struct {
	pagination.PageInfo
	CopyEvents []CopyEvent `json:"copy_events"`
}

type Service interface {
	// Copy records a copy attempt for the context user and returns the
	// qualification outcome together with the flow payload.
	Copy(ctx context.Context, req CreateCopyRequest) (*CopyResult, error)
	// CountQualifying is the monthly cap counter: a live read over the
	// ledger, never a cached counter.
	CountQualifying(ctx context.Context, userID snowflake.ID, period time.Time) (int64, error)
	List(ctx context.Context, req ListCopiesRequest) (ListCopiesResponse, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidFlow         = errors.New("invalid_flow")
	ErrEntitlementRequired = errors.New("entitlement_required")
)
