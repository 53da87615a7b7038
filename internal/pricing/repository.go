package pricing

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNoCurrentPrice   = errors.New("no active price version for tenant")
	ErrVersionNotFound  = errors.New("price version not found")
	ErrPriceUnavailable = errors.New("price unavailable and default provisioning is disabled")
	ErrInvalidAmount    = errors.New("price amount must not be negative")
	ErrMissingActor     = errors.New("acting user is required")
	ErrMissingTenant    = errors.New("tenant id is required")
)

// Repository is the storage contract of the pricing ledger. Every method is
// scoped by tenant id.
type Repository interface {
	// Current returns the active version with the latest effective_from or ErrNoCurrentPrice.
	Current(ctx context.Context, tenantID string) (*PriceVersion, error)
	Insert(ctx context.Context, v PriceVersion) (*PriceVersion, error)
	// InsertIfNoneActive inserts v only when the tenant has no active version.
	// It reports whether the row was written.
	InsertIfNoneActive(ctx context.Context, v PriceVersion) (bool, error)
	List(ctx context.Context, tenantID string) ([]PriceVersion, error)
	SetActive(ctx context.Context, tenantID string, id uuid.UUID, active bool) (*PriceVersion, error)
}
