package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/eventlog"
	"github.com/hackgods/clinic-scheduling/internal/observability/metrics"
	"github.com/hackgods/clinic-scheduling/internal/pricing"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

var tracer = otel.Tracer("clinic-scheduling/appointment")

var (
	ErrInvalidInterval = errors.New("start time must be before end time")
	ErrInvalidType     = errors.New("invalid appointment type")
	ErrInvalidStatus   = errors.New("invalid appointment status")
	ErrMissingSubject  = errors.New("patient, professional and site are required")
	ErrMissingTenant   = errors.New("tenant id is required")
	ErrMissingActor    = errors.New("booking user is required")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// TxRunner runs fn in one storage transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PriceResolver interface {
	EnsureInitialPrice(ctx context.Context, tenantID, createdBy string, defaultAmount int64) (*pricing.PriceVersion, error)
}

type CollectionOpener interface {
	Open(ctx context.Context, tenantID string, appointmentID uuid.UUID, amountDue int64, appointmentStart time.Time, actor string) (*collection.Collection, error)
}

type Deps struct {
	Repo        Repository
	Locker      redisclient.Locker
	Tx          TxRunner
	Prices      PriceResolver
	Collections CollectionOpener
	Events      *eventlog.Recorder
	Metrics     *metrics.SchedulingMetrics
	Logger      *logging.Logger
}

type Service struct {
	repo        Repository
	detector    *ConflictDetector
	locker      redisclient.Locker
	tx          TxRunner
	prices      PriceResolver
	collections CollectionOpener
	events      *eventlog.Recorder
	metrics     *metrics.SchedulingMetrics
	logger      *logging.Logger
	cfg         config.Config
	now         func() time.Time
}

func NewService(d Deps, cfg config.Config) *Service {
	logger := d.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:        d.Repo,
		detector:    NewConflictDetector(d.Repo),
		locker:      d.Locker,
		tx:          d.Tx,
		prices:      d.Prices,
		collections: d.Collections,
		events:      d.Events,
		metrics:     d.Metrics,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Detector exposes the conflict detector the service books through.
func (s *Service) Detector() *ConflictDetector {
	return s.detector
}

func lockKey(tenantID string, subject SubjectKind, id uuid.UUID) string {
	return fmt.Sprintf("lock:booking:%s:%s:%s", tenantID, strings.ToLower(string(subject)), id)
}

// Create books an appointment. The professional and patient locks are held
// while one transaction checks both calendars, resolves the price, inserts the
// CONFIRMED appointment and opens its collection.
func (s *Service) Create(ctx context.Context, tenantID, bookingUserID string, in CreateInput) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("professional.id", in.ProfessionalID.String()),
		attribute.String("patient.id", in.PatientID.String()),
	)

	started := time.Now()
	result := "error"
	defer func() {
		s.metrics.ObserveBooking(result, time.Since(started).Seconds())
	}()

	if err := validateCreate(tenantID, bookingUserID, &in); err != nil {
		result = "invalid"
		return nil, err
	}
	iv := Interval{Start: in.StartTime.UTC(), End: in.EndTime.UTC()}

	keys := []string{
		lockKey(tenantID, SubjectProfessional, in.ProfessionalID),
		lockKey(tenantID, SubjectPatient, in.PatientID),
	}

	var created *Appointment
	var opened *collection.Collection

	err := s.locker.WithLocks(ctx, keys, func(lockCtx context.Context) error {
		return s.tx.InTx(lockCtx, func(txCtx context.Context) error {
			if err := s.detector.Check(txCtx, tenantID, in.ProfessionalID, in.PatientID, iv, nil); err != nil {
				return err
			}

			price, err := s.prices.EnsureInitialPrice(txCtx, tenantID, bookingUserID, s.cfg.DefaultPriceAmount)
			if err != nil {
				return fmt.Errorf("resolve price: %w", err)
			}
			amount := price.PriceAmount
			versionID := price.ID

			appt, err := s.repo.Insert(txCtx, Appointment{
				ID:             uuid.New(),
				TenantID:       tenantID,
				PatientID:      in.PatientID,
				ProfessionalID: in.ProfessionalID,
				SiteID:         in.SiteID,
				StartTime:      iv.Start,
				EndTime:        iv.End,
				Type:           in.Type,
				Status:         StatusConfirmed,
				PriceAmount:    &amount,
				PriceVersionID: &versionID,
				Notes:          in.Notes,
				CreatedBy:      bookingUserID,
			})
			if err != nil {
				return fmt.Errorf("insert appointment: %w", err)
			}

			col, err := s.collections.Open(txCtx, tenantID, appt.ID, amount, appt.StartTime, bookingUserID)
			if err != nil {
				return fmt.Errorf("open collection: %w", err)
			}

			created, opened = appt, col
			return nil
		})
	})
	if err != nil {
		result = bookingResult(err)
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}
	result = "created"

	s.events.Record(ctx, tenantID, created.ID, eventlog.AppointmentCreated, map[string]any{
		"professional_id":  created.ProfessionalID.String(),
		"patient_id":       created.PatientID.String(),
		"start_time":       created.StartTime,
		"end_time":         created.EndTime,
		"price_amount":     valueOrZero(created.PriceAmount),
		"price_version_id": created.PriceVersionID,
		"created_by":       bookingUserID,
	})
	s.events.Record(ctx, tenantID, created.ID, eventlog.CollectionOpened, map[string]any{
		"collection_id": opened.ID.String(),
		"amount_due":    opened.AmountDue,
		"due_date":      opened.DueDate,
	})

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("appointment_id", created.ID.String()).
		Str("professional_id", created.ProfessionalID.String()).
		Time("start_time", created.StartTime).
		Msg("appointment booked")

	return created, nil
}

func validateCreate(tenantID, bookingUserID string, in *CreateInput) error {
	if tenantID == "" {
		return ErrMissingTenant
	}
	if bookingUserID == "" {
		return ErrMissingActor
	}
	if in.Type == "" {
		in.Type = TypeRegular
	}
	if !in.Type.Valid() {
		return ErrInvalidType
	}
	if !in.StartTime.Before(in.EndTime) {
		return ErrInvalidInterval
	}
	if in.PatientID == uuid.Nil || in.ProfessionalID == uuid.Nil || in.SiteID == uuid.Nil {
		return ErrMissingSubject
	}
	return nil
}

func bookingResult(err error) string {
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return "slot_being_booked"
	case errors.Is(err, redisclient.ErrLockUnavailable):
		return "lock_unavailable"
	case errors.Is(err, ErrProfessionalBusy):
		return "professional_busy"
	case errors.Is(err, ErrPatientBusy):
		return "patient_busy"
	case errors.Is(err, pricing.ErrPriceUnavailable):
		return "price_unavailable"
	case errors.Is(err, db.ErrPersistence):
		return "retryable"
	}
	return "error"
}

func valueOrZero(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// Update applies a patch. Moving both times re-checks the professional's
// calendar under the professional lock; the collection is never touched.
func (s *Service) Update(ctx context.Context, tenantID string, id uuid.UUID, patch Patch) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.update")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("appointment.id", id.String()),
	)

	result := "error"
	defer func() { s.metrics.ObserveUpdate(result) }()

	if tenantID == "" {
		result = "invalid"
		return nil, ErrMissingTenant
	}
	if patch.Status != nil && !patch.Status.Valid() {
		result = "invalid"
		return nil, ErrInvalidStatus
	}
	rescheduling := patch.StartTime != nil && patch.EndTime != nil
	if rescheduling && !patch.StartTime.Before(*patch.EndTime) {
		result = "invalid"
		return nil, ErrInvalidInterval
	}

	var before, updated *Appointment

	apply := func(ctx context.Context) error {
		return s.tx.InTx(ctx, func(txCtx context.Context) error {
			existing, err := s.repo.GetByID(txCtx, tenantID, id)
			if err != nil {
				return err
			}

			next := *existing
			if patch.Status != nil {
				next.Status = *patch.Status
			}
			if patch.Notes != nil {
				next.Notes = *patch.Notes
			}
			if patch.StartTime != nil {
				next.StartTime = patch.StartTime.UTC()
			}
			if patch.EndTime != nil {
				next.EndTime = patch.EndTime.UTC()
			}
			if !next.Interval().Valid() {
				return ErrInvalidInterval
			}

			if rescheduling {
				if err := s.detector.CheckSubject(txCtx, tenantID, SubjectProfessional, next.ProfessionalID, next.Interval(), &next.ID); err != nil {
					return err
				}
			}

			saved, err := s.repo.Update(txCtx, next)
			if err != nil {
				return err
			}
			before, updated = existing, saved
			return nil
		})
	}

	var err error
	if rescheduling {
		// The professional is only known after the read, so lock on a
		// pre-read outside the transaction.
		current, getErr := s.repo.GetByID(ctx, tenantID, id)
		if getErr != nil {
			if errors.Is(getErr, ErrAppointmentNotFound) {
				result = "not_found"
				return nil, getErr
			}
			return nil, fmt.Errorf("load appointment: %w", getErr)
		}
		err = s.locker.WithLocks(ctx, []string{lockKey(tenantID, SubjectProfessional, current.ProfessionalID)}, apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			result = "not_found"
		case errors.Is(err, ErrInvalidInterval):
			result = "invalid"
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			result = "slot_being_booked"
			return nil, ErrSlotBeingBooked
		default:
			result = bookingResult(err)
		}
		return nil, err
	}
	result = "updated"

	s.events.Record(ctx, tenantID, updated.ID, eventlog.AppointmentUpdated, map[string]any{
		"previous_status": before.Status,
		"status":          updated.Status,
		"start_time":      updated.StartTime,
		"end_time":        updated.EndTime,
	})

	return updated, nil
}

func (s *Service) Get(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.get")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if tenantID == "" {
		return nil, ErrMissingTenant
	}

	appt, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) List(ctx context.Context, tenantID string, f ListFilter) ([]Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.list")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	appointments, err := s.repo.List(ctx, tenantID, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}
