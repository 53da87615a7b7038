package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrProfessionalBusy = errors.New("professional already has an appointment in this interval")
	ErrPatientBusy      = errors.New("patient already has an appointment in this interval")
)

// ConflictError identifies the subject that is busy and, when known, the
// appointment occupying the interval. It matches ErrProfessionalBusy or
// ErrPatientBusy with errors.Is.
type ConflictError struct {
	Subject    SubjectKind
	SubjectID  uuid.UUID
	ExistingID uuid.UUID // uuid.Nil when only the storage constraint caught it
}

func (e *ConflictError) Error() string {
	if e.ExistingID == uuid.Nil {
		return e.Unwrap().Error()
	}
	return fmt.Sprintf("%s: conflicting appointment %s", e.Unwrap(), e.ExistingID)
}

func (e *ConflictError) Unwrap() error {
	if e.Subject == SubjectPatient {
		return ErrPatientBusy
	}
	return ErrProfessionalBusy
}

// ConflictDetector checks a subject's calendar for overlapping, non-cancelled
// appointments.
type ConflictDetector struct {
	repo Repository
}

func NewConflictDetector(repo Repository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// HasConflict returns the first appointment of the subject overlapping iv, or
// nil when the interval is free. exclude skips one appointment, used when an
// appointment is moved.
func (d *ConflictDetector) HasConflict(ctx context.Context, tenantID string, subject SubjectKind, subjectID uuid.UUID, iv Interval, exclude *uuid.UUID) (*Appointment, error) {
	existing, err := d.repo.FindOverlapping(ctx, tenantID, subject, subjectID, iv, exclude)
	if err != nil {
		return nil, fmt.Errorf("check %s conflicts: %w", subject, err)
	}
	return existing, nil
}

// CheckSubject is HasConflict turned into a *ConflictError.
func (d *ConflictDetector) CheckSubject(ctx context.Context, tenantID string, subject SubjectKind, subjectID uuid.UUID, iv Interval, exclude *uuid.UUID) error {
	existing, err := d.HasConflict(ctx, tenantID, subject, subjectID, iv, exclude)
	if err != nil {
		return err
	}
	if existing != nil {
		return &ConflictError{Subject: subject, SubjectID: subjectID, ExistingID: existing.ID}
	}
	return nil
}

// Check runs the professional check, then the patient check.
func (d *ConflictDetector) Check(ctx context.Context, tenantID string, professionalID, patientID uuid.UUID, iv Interval, exclude *uuid.UUID) error {
	if err := d.CheckSubject(ctx, tenantID, SubjectProfessional, professionalID, iv, exclude); err != nil {
		return err
	}
	return d.CheckSubject(ctx, tenantID, SubjectPatient, patientID, iv, exclude)
}
