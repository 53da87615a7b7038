package pricing

import (
	"time"

	"github.com/google/uuid"
)

// PriceVersion is one entry of a tenant's append-only price history.
// Only IsActive may change after creation.
type PriceVersion struct {
	ID            uuid.UUID
	TenantID      string
	PriceAmount   int64 // smallest currency unit
	EffectiveFrom time.Time
	CreatedBy     string
	IsActive      bool
	CreatedAt     time.Time
}

// InitialEffectiveFrom dates auto-provisioned defaults far enough in the past
// that bookings made before the tenant configured pricing still resolve a price.
var InitialEffectiveFrom = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
