package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusReserved  AppointmentStatus = "RESERVED"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusAttended  AppointmentStatus = "ATTENDED"
	StatusAbsent    AppointmentStatus = "ABSENT"
	StatusCancelled AppointmentStatus = "CANCELLED"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusReserved, StatusConfirmed, StatusAttended, StatusAbsent, StatusCancelled:
		return true
	}
	return false
}

type AppointmentType string

const (
	TypeRegular    AppointmentType = "REGULAR"
	TypeEvaluation AppointmentType = "EVALUATION"
)

func (t AppointmentType) Valid() bool {
	return t == TypeRegular || t == TypeEvaluation
}

// SubjectKind names the party whose calendar a conflict check scans.
type SubjectKind string

const (
	SubjectProfessional SubjectKind = "PROFESSIONAL"
	SubjectPatient      SubjectKind = "PATIENT"
)

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool {
	return i.Start.Before(i.End)
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

type Appointment struct {
	ID             uuid.UUID
	TenantID       string
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	SiteID         uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Type           AppointmentType
	Status         AppointmentStatus
	PriceAmount    *int64
	PriceVersionID *uuid.UUID
	Notes          string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

type CreateInput struct {
	PatientID      uuid.UUID
	ProfessionalID uuid.UUID
	SiteID         uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Type           AppointmentType
	Notes          string
}

// Patch holds the fields Update may change. Nil fields are left as is.
type Patch struct {
	Status    *AppointmentStatus
	Notes     *string
	StartTime *time.Time
	EndTime   *time.Time
}

type ListFilter struct {
	ProfessionalID *uuid.UUID
	PatientID      *uuid.UUID
	SiteID         *uuid.UUID
	Status         *AppointmentStatus
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
}
