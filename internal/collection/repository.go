package collection

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCollectionExists   = errors.New("collection already exists for appointment")
	ErrUnknownAppointment = errors.New("appointment does not exist for tenant")
	ErrMissingTenant      = errors.New("tenant id is required")
	ErrMissingActor       = errors.New("acting user is required")
	ErrInvalidAmount      = errors.New("amount due must not be negative")
	ErrInvalidRange       = errors.New("date range start must not be after its end")
	ErrInvalidStatus      = errors.New("invalid collection status")
)

// Repository contains all DB interactions needed by the ledger. Every
// predicate is scoped by tenant id.
type Repository interface {
	Insert(ctx context.Context, c Collection) (*Collection, error)
	GetByAppointment(ctx context.Context, tenantID string, appointmentID uuid.UUID) (*Collection, error)
	List(ctx context.Context, tenantID string, f Filter) ([]Collection, error)

	// Overdue reconciliation: PENDING rows with due_date < now become OVERDUE.
	ReconcileOverdue(ctx context.Context, tenantID string, now time.Time) (int64, error)
	ReconcileOne(ctx context.Context, tenantID string, appointmentID uuid.UUID, now time.Time) (int64, error)
	TenantsWithOverdue(ctx context.Context, now time.Time) ([]string, error)

	MarkPaid(ctx context.Context, tenantID string, appointmentID uuid.UUID, paidAt time.Time, notes *string, userID string) (*Collection, error)
	SetDueDate(ctx context.Context, tenantID string, appointmentID uuid.UUID, due time.Time, status Status, userID string) (*Collection, error)

	// StatusTotals returns count and sum per status. When paidWindow is set the
	// PAID row only covers paid_at within it; other statuses are never windowed.
	StatusTotals(ctx context.Context, tenantID string, paidWindow *DateRange) ([]StatusTotal, error)
}
