package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type AppointmentRepository struct {
	s *Store
}

func subjectOf(a appointment.Appointment, subject appointment.SubjectKind) uuid.UUID {
	if subject == appointment.SubjectPatient {
		return a.PatientID
	}
	return a.ProfessionalID
}

// overlapping is the scan behind FindOverlapping and the exclusion checks.
// Callers hold s.mu.
func (r *AppointmentRepository) overlapping(tenantID string, subject appointment.SubjectKind, subjectID uuid.UUID, iv appointment.Interval, exclude *uuid.UUID) *appointment.Appointment {
	var hit *appointment.Appointment
	for _, a := range r.s.appointments {
		if a.TenantID != tenantID || a.Status == appointment.StatusCancelled {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if subjectOf(a, subject) != subjectID || !a.Interval().Overlaps(iv) {
			continue
		}
		if hit == nil || a.StartTime.Before(hit.StartTime) {
			cp := a
			hit = &cp
		}
	}
	return hit
}

// violation mirrors the two exclusion constraints of the appointments table.
func (r *AppointmentRepository) violation(a appointment.Appointment) error {
	if a.Status == appointment.StatusCancelled {
		return nil
	}
	self := a.ID
	for _, subject := range []appointment.SubjectKind{appointment.SubjectProfessional, appointment.SubjectPatient} {
		if r.overlapping(a.TenantID, subject, subjectOf(a, subject), a.Interval(), &self) != nil {
			return &appointment.ConflictError{Subject: subject, SubjectID: subjectOf(a, subject)}
		}
	}
	return nil
}

func (r *AppointmentRepository) GetByID(_ context.Context, tenantID string, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	var ok bool
	r.s.read(func() { a, ok = r.s.appointments[id] })
	if !ok || a.TenantID != tenantID {
		return nil, appointment.ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *AppointmentRepository) List(_ context.Context, tenantID string, f appointment.ListFilter) ([]appointment.Appointment, error) {
	var result []appointment.Appointment
	r.s.read(func() {
		for _, a := range r.s.appointments {
			if a.TenantID != tenantID {
				continue
			}
			if f.ProfessionalID != nil && a.ProfessionalID != *f.ProfessionalID {
				continue
			}
			if f.PatientID != nil && a.PatientID != *f.PatientID {
				continue
			}
			if f.SiteID != nil && a.SiteID != *f.SiteID {
				continue
			}
			if f.Status != nil && a.Status != *f.Status {
				continue
			}
			if f.From != nil && a.StartTime.Before(*f.From) {
				continue
			}
			if f.To != nil && a.StartTime.After(*f.To) {
				continue
			}
			result = append(result, a)
		}
	})

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].StartTime.Before(result[j].StartTime)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	start, end := clampPage(f.Limit, f.Offset, len(result))
	return result[start:end], nil
}

func (r *AppointmentRepository) FindOverlapping(_ context.Context, tenantID string, subject appointment.SubjectKind, subjectID uuid.UUID, iv appointment.Interval, exclude *uuid.UUID) (*appointment.Appointment, error) {
	if subject != appointment.SubjectProfessional && subject != appointment.SubjectPatient {
		return nil, fmt.Errorf("unknown conflict subject %q", subject)
	}
	var hit *appointment.Appointment
	r.s.read(func() { hit = r.overlapping(tenantID, subject, subjectID, iv, exclude) })
	return hit, nil
}

func (r *AppointmentRepository) Insert(ctx context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	var err error
	r.s.write(ctx, func() {
		if _, exists := r.s.appointments[a.ID]; exists {
			err = fmt.Errorf("appointment %s already exists", a.ID)
			return
		}
		if err = r.violation(a); err != nil {
			return
		}
		now := r.s.now()
		a.CreatedAt, a.UpdatedAt = now, now
		r.s.appointments[a.ID] = a
	})
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AppointmentRepository) Update(ctx context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	var saved appointment.Appointment
	var err error
	r.s.write(ctx, func() {
		existing, ok := r.s.appointments[a.ID]
		if !ok || existing.TenantID != a.TenantID {
			err = appointment.ErrAppointmentNotFound
			return
		}
		existing.Status = a.Status
		existing.Notes = a.Notes
		existing.StartTime = a.StartTime
		existing.EndTime = a.EndTime
		if err = r.violation(existing); err != nil {
			return
		}
		existing.UpdatedAt = r.s.now()
		r.s.appointments[a.ID] = existing
		saved = existing
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
