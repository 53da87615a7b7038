package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the lifecycle. Every
// predicate is scoped by tenant id.
type Repository interface {
	GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, tenantID string, f ListFilter) ([]Appointment, error)

	// FindOverlapping returns the earliest non-cancelled appointment of the
	// subject overlapping iv, skipping exclude. Nil when the slot is free.
	FindOverlapping(ctx context.Context, tenantID string, subject SubjectKind, subjectID uuid.UUID, iv Interval, exclude *uuid.UUID) (*Appointment, error)

	Insert(ctx context.Context, a Appointment) (*Appointment, error)
	Update(ctx context.Context, a Appointment) (*Appointment, error)
}
