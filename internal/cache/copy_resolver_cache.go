package cache

import (
	"strings"
	"time"

	catalogdomain "github.com/flowmarket/flowmarket/internal/catalog/domain"
)

const (
	defaultFlowTTL        = 10 * time.Minute
	defaultEntitlementTTL = 45 * time.Second
)

// CopyResolverCache stores hot-path resolver lookups for the copy endpoint.
// Entitlement entries are short-lived on purpose: a lapsed subscription must
// stop qualifying within the TTL window.
type CopyResolverCache interface {
	GetFlow(flowID string) (*catalogdomain.Flow, bool)
	SetFlow(flowID string, flow *catalogdomain.Flow)
	GetEntitlement(userID string) (bool, bool)
	SetEntitlement(userID string, entitled bool)
	InvalidateFlow(flowID string)
}

type copyResolverCache struct {
	flows          Cache[string, *catalogdomain.Flow]
	entitlements   Cache[string, bool]
	flowTTL        time.Duration
	entitlementTTL time.Duration
}

// NewCopyResolverCache returns an in-memory cache tuned for the copy path.
func NewCopyResolverCache() CopyResolverCache {
	return &copyResolverCache{
		flows:          NewTTLCache[string, *catalogdomain.Flow](),
		entitlements:   NewTTLCache[string, bool](),
		flowTTL:        defaultFlowTTL,
		entitlementTTL: defaultEntitlementTTL,
	}
}

func (c *copyResolverCache) GetFlow(flowID string) (*catalogdomain.Flow, bool) {
	return c.flows.Get(strings.TrimSpace(flowID))
}

func (c *copyResolverCache) SetFlow(flowID string, flow *catalogdomain.Flow) {
	if flow == nil {
		return
	}
	c.flows.Set(strings.TrimSpace(flowID), flow, c.flowTTL)
}

func (c *copyResolverCache) GetEntitlement(userID string) (bool, bool) {
	return c.entitlements.Get(strings.TrimSpace(userID))
}

func (c *copyResolverCache) SetEntitlement(userID string, entitled bool) {
	c.entitlements.Set(strings.TrimSpace(userID), entitled, c.entitlementTTL)
}

func (c *copyResolverCache) InvalidateFlow(flowID string) {
	c.flows.Delete(strings.TrimSpace(flowID))
}
