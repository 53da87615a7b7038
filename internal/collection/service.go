package collection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/eventlog"
	"github.com/hackgods/clinic-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("clinic-scheduling/collection")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Ledger tracks the deferred-payment receivable of each appointment.
type Ledger struct {
	repo     Repository
	events   *eventlog.Recorder
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
	dueAfter time.Duration
	now      func() time.Time
}

func NewLedger(repo Repository, cfg config.Config, events *eventlog.Recorder, m *metrics.SchedulingMetrics, logger *logging.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	return &Ledger{
		repo:     repo,
		events:   events,
		metrics:  m,
		logger:   logger,
		dueAfter: cfg.CollectionDueAfter(),
		now:      time.Now,
	}
}

// WithClock replaces the ledger's time source.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Open creates the PENDING collection of a freshly booked appointment, due
// the configured offset after its start. It joins the caller's transaction
// when ctx carries one. Callers record COLLECTION_OPENED once committed.
func (l *Ledger) Open(ctx context.Context, tenantID string, appointmentID uuid.UUID, amountDue int64, appointmentStart time.Time, actor string) (*Collection, error) {
	ctx, span := tracer.Start(ctx, "collection.open")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("appointment.id", appointmentID.String()),
	)

	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if actor == "" {
		return nil, ErrMissingActor
	}
	if amountDue < 0 {
		return nil, ErrInvalidAmount
	}

	c, err := l.repo.Insert(ctx, Collection{
		ID:            uuid.New(),
		TenantID:      tenantID,
		AppointmentID: appointmentID,
		AmountDue:     amountDue,
		DueDate:       DueDateFor(appointmentStart, l.dueAfter).UTC(),
		Status:        StatusPending,
		UpdatedBy:     actor,
	})
	if err != nil {
		if errors.Is(err, ErrCollectionExists) || errors.Is(err, ErrUnknownAppointment) {
			return nil, err
		}
		return nil, fmt.Errorf("open collection: %w", err)
	}

	l.metrics.ObserveCollectionTransition(string(StatusPending))
	return c, nil
}

// reconcile moves the tenant's past-due PENDING rows to OVERDUE. Failures are
// logged; the read that triggered it proceeds with whatever is stored.
func (l *Ledger) reconcile(ctx context.Context, tenantID string) {
	n, err := l.repo.ReconcileOverdue(ctx, tenantID, l.now())
	if err != nil {
		l.logger.Warn().Err(err).Str("tenant_id", tenantID).Msg("overdue reconciliation failed")
		return
	}
	if n > 0 {
		l.metrics.ObserveReconciled("read", n)
		l.logger.Debug().Str("tenant_id", tenantID).Int64("rows", n).Msg("collections marked overdue")
	}
}

// ListAndReconcile reconciles overdue collections of the tenant, then lists
// them newest due date first.
func (l *Ledger) ListAndReconcile(ctx context.Context, tenantID string, f Filter) ([]Collection, error) {
	ctx, span := tracer.Start(ctx, "collection.list")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	l.reconcile(ctx, tenantID)

	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	items, err := l.repo.List(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	span.SetAttributes(attribute.Int("collections.count", len(items)))
	return items, nil
}

// Get returns the collection of one appointment after reconciling that row.
func (l *Ledger) Get(ctx context.Context, tenantID string, appointmentID uuid.UUID) (*Collection, error) {
	ctx, span := tracer.Start(ctx, "collection.get")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	if n, err := l.repo.ReconcileOne(ctx, tenantID, appointmentID, l.now()); err != nil {
		l.logger.Warn().Err(err).Str("tenant_id", tenantID).Str("appointment_id", appointmentID.String()).Msg("overdue reconciliation failed")
	} else {
		l.metrics.ObserveReconciled("read", n)
	}

	c, err := l.repo.GetByAppointment(ctx, tenantID, appointmentID)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return c, nil
}

// MarkAsPaid overwrites the collection to PAID regardless of its current
// status. A zero paidAt means now; nil notes keep the stored notes.
func (l *Ledger) MarkAsPaid(ctx context.Context, tenantID string, appointmentID uuid.UUID, paidAt time.Time, notes *string, userID string) (*Collection, error) {
	ctx, span := tracer.Start(ctx, "collection.mark_paid")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("appointment.id", appointmentID.String()),
	)

	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if userID == "" {
		return nil, ErrMissingActor
	}
	if paidAt.IsZero() {
		paidAt = l.now()
	}

	c, err := l.repo.MarkPaid(ctx, tenantID, appointmentID, paidAt.UTC(), notes, userID)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("mark collection paid: %w", err)
	}

	l.metrics.ObserveCollectionTransition(string(StatusPaid))
	l.events.Record(ctx, tenantID, appointmentID, eventlog.CollectionPaid, map[string]any{
		"paid_at":    c.PaidAt,
		"amount_due": c.AmountDue,
		"updated_by": userID,
	})

	return c, nil
}

// UpdateDueDate moves the due date and re-derives the status with
// StatusForDueDate.
func (l *Ledger) UpdateDueDate(ctx context.Context, tenantID string, appointmentID uuid.UUID, newDueDate time.Time, userID string) (*Collection, error) {
	ctx, span := tracer.Start(ctx, "collection.update_due_date")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("appointment.id", appointmentID.String()),
	)

	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if userID == "" {
		return nil, ErrMissingActor
	}

	status := StatusForDueDate(newDueDate, l.now())

	c, err := l.repo.SetDueDate(ctx, tenantID, appointmentID, newDueDate.UTC(), status, userID)
	if err != nil {
		if errors.Is(err, ErrCollectionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update collection due date: %w", err)
	}

	l.metrics.ObserveCollectionTransition(string(status))
	l.events.Record(ctx, tenantID, appointmentID, eventlog.CollectionDueDateChanged, map[string]any{
		"due_date":   c.DueDate,
		"status":     c.Status,
		"updated_by": userID,
	})

	return c, nil
}

// GetKPIs reports pending, overdue and paid totals. Only the paid bucket is
// windowed, on paid_at, when r is given.
func (l *Ledger) GetKPIs(ctx context.Context, tenantID string, r *DateRange) (KPIs, error) {
	ctx, span := tracer.Start(ctx, "collection.kpis")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if tenantID == "" {
		return KPIs{}, ErrMissingTenant
	}
	if r != nil && r.From.After(r.To) {
		return KPIs{}, ErrInvalidRange
	}

	l.reconcile(ctx, tenantID)

	rows, err := l.repo.StatusTotals(ctx, tenantID, r)
	if err != nil {
		return KPIs{}, fmt.Errorf("collection kpis: %w", err)
	}
	return Aggregate(rows), nil
}

// SweepOverdue reconciles every tenant holding past-due PENDING collections.
// A failing tenant does not stop the sweep.
func (l *Ledger) SweepOverdue(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "collection.sweep_overdue")
	defer span.End()

	now := l.now()
	tenants, err := l.repo.TenantsWithOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find tenants with overdue collections: %w", err)
	}

	var total int64
	var errs []error
	for _, tenantID := range tenants {
		n, err := l.repo.ReconcileOverdue(ctx, tenantID, now)
		if err != nil {
			l.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("overdue sweep failed for tenant")
			errs = append(errs, fmt.Errorf("tenant %s: %w", tenantID, err))
			continue
		}
		total += n
	}

	l.metrics.ObserveReconciled("sweep", total)
	span.SetAttributes(
		attribute.Int("tenants", len(tenants)),
		attribute.Int64("reconciled", total),
	)

	return total, errors.Join(errs...)
}
