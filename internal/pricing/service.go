package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("clinic-scheduling/pricing")

// Ledger manages the append-only price history of each tenant.
type Ledger struct {
	repo   Repository
	logger *logging.Logger
	now    func() time.Time
}

func NewLedger(repo Repository, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// CurrentPrice returns the active version with the most recent effective date.
// It never provisions a default.
func (l *Ledger) CurrentPrice(ctx context.Context, tenantID string) (*PriceVersion, error) {
	ctx, span := tracer.Start(ctx, "pricing.current")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	v, err := l.repo.Current(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrNoCurrentPrice) {
			return nil, err
		}
		return nil, fmt.Errorf("load current price: %w", err)
	}
	return v, nil
}

// CreateVersion appends a new active version. A zero effectiveFrom means now.
func (l *Ledger) CreateVersion(ctx context.Context, tenantID string, amount int64, createdBy string, effectiveFrom time.Time) (*PriceVersion, error) {
	ctx, span := tracer.Start(ctx, "pricing.create_version")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int64("price.amount", amount),
	)

	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if createdBy == "" {
		return nil, ErrMissingActor
	}
	if effectiveFrom.IsZero() {
		effectiveFrom = l.now()
	}

	created, err := l.repo.Insert(ctx, PriceVersion{
		ID:            uuid.New(),
		TenantID:      tenantID,
		PriceAmount:   amount,
		EffectiveFrom: effectiveFrom.UTC(),
		CreatedBy:     createdBy,
		IsActive:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create price version: %w", err)
	}

	l.logger.Info().
		Str("tenant_id", tenantID).
		Str("price_version_id", created.ID.String()).
		Int64("price_amount", amount).
		Time("effective_from", created.EffectiveFrom).
		Msg("price version created")

	return created, nil
}

// EnsureInitialPrice returns the current version, provisioning one with
// defaultAmount when the tenant has none. The provisioned version is dated
// InitialEffectiveFrom. defaultAmount <= 0 disables provisioning.
//
// Concurrent callers for one tenant create at most one default: the insert is
// conditional on no active version existing.
func (l *Ledger) EnsureInitialPrice(ctx context.Context, tenantID, createdBy string, defaultAmount int64) (*PriceVersion, error) {
	ctx, span := tracer.Start(ctx, "pricing.ensure_initial")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	current, err := l.CurrentPrice(ctx, tenantID)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, ErrNoCurrentPrice) {
		return nil, err
	}

	if defaultAmount <= 0 {
		return nil, ErrPriceUnavailable
	}
	if createdBy == "" {
		createdBy = "system"
	}

	inserted, err := l.repo.InsertIfNoneActive(ctx, PriceVersion{
		ID:            uuid.New(),
		TenantID:      tenantID,
		PriceAmount:   defaultAmount,
		EffectiveFrom: InitialEffectiveFrom,
		CreatedBy:     createdBy,
		IsActive:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("provision initial price: %w", err)
	}
	if inserted {
		l.logger.Info().
			Str("tenant_id", tenantID).
			Int64("price_amount", defaultAmount).
			Msg("default price version provisioned")
	}

	// Whoever won the insert, the tenant now has an active version.
	return l.CurrentPrice(ctx, tenantID)
}

// ListVersions returns the tenant's price history, newest first.
func (l *Ledger) ListVersions(ctx context.Context, tenantID string) ([]PriceVersion, error) {
	ctx, span := tracer.Start(ctx, "pricing.list_versions")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	versions, err := l.repo.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list price versions: %w", err)
	}
	return versions, nil
}

// Deactivate clears the active flag of a version. Appointments keep the
// snapshot they were booked with.
func (l *Ledger) Deactivate(ctx context.Context, tenantID string, versionID uuid.UUID) (*PriceVersion, error) {
	ctx, span := tracer.Start(ctx, "pricing.deactivate")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("price_version.id", versionID.String()),
	)

	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	v, err := l.repo.SetActive(ctx, tenantID, versionID, false)
	if err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("deactivate price version: %w", err)
	}

	l.logger.Info().
		Str("tenant_id", tenantID).
		Str("price_version_id", versionID.String()).
		Msg("price version deactivated")

	return v, nil
}
