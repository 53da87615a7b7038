package collection

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusOverdue Status = "OVERDUE"
	StatusPaid    Status = "PAID"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOverdue, StatusPaid:
		return true
	}
	return false
}

// Collection is the deferred-payment receivable of one appointment.
type Collection struct {
	ID            uuid.UUID
	TenantID      string
	AppointmentID uuid.UUID
	AmountDue     int64
	DueDate       time.Time
	Status        Status
	PaidAt        *time.Time
	Notes         *string
	UpdatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Filter narrows ListAndReconcile. Nil fields are not applied.
type Filter struct {
	Status          *Status
	DueFrom         *time.Time
	DueTo           *time.Time
	AppointmentFrom *time.Time
	AppointmentTo   *time.Time
	ProfessionalID  *uuid.UUID
	SiteID          *uuid.UUID
	Limit           int
	Offset          int
}

// DateRange bounds are inclusive.
type DateRange struct {
	From time.Time
	To   time.Time
}

// StatusTotal is one row of the per-status aggregate query.
type StatusTotal struct {
	Status Status
	Count  int64
	Total  int64
}

type Bucket struct {
	Count int64 `json:"count"`
	Total int64 `json:"total_amount"`
}

type KPIs struct {
	Pending Bucket `json:"pending"`
	Overdue Bucket `json:"overdue"`
	Paid    Bucket `json:"paid"`
}
