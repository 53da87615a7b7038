package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/internal/pricing"
)

type CreateAppointmentRequest struct {
	PatientID      string    `json:"patient_id" validate:"required,uuid"`
	ProfessionalID string    `json:"professional_id" validate:"required,uuid"`
	SiteID         string    `json:"site_id" validate:"required,uuid"`
	StartTime      time.Time `json:"start_time" validate:"required"`
	EndTime        time.Time `json:"end_time" validate:"required"`
	Type           string    `json:"type"`
	Notes          string    `json:"notes" validate:"max=4000"`
}

type UpdateAppointmentRequest struct {
	Status    *string    `json:"status"`
	Notes     *string    `json:"notes" validate:"omitempty,max=4000"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
}

type MarkPaidRequest struct {
	PaidAt *time.Time `json:"paid_at"`
	Notes  *string    `json:"notes" validate:"omitempty,max=4000"`
}

type UpdateDueDateRequest struct {
	DueDate time.Time `json:"due_date" validate:"required"`
}

type CreatePriceVersionRequest struct {
	PriceAmount   *int64     `json:"price_amount" validate:"required,gte=0"`
	EffectiveFrom *time.Time `json:"effective_from"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	ProfessionalID     uuid.UUID  `json:"professional_id"`
	SiteID             uuid.UUID  `json:"site_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	Type               string     `json:"type"`
	Status             string     `json:"status"`
	PriceAmount        *int64     `json:"price_amount,omitempty"`
	PriceAmountDisplay string     `json:"price_amount_display,omitempty"`
	PriceVersionID     *uuid.UUID `json:"price_version_id,omitempty"`
	Notes              string     `json:"notes"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type CollectionResponse struct {
	ID               uuid.UUID  `json:"id"`
	AppointmentID    uuid.UUID  `json:"appointment_id"`
	AmountDue        int64      `json:"amount_due"`
	AmountDueDisplay string     `json:"amount_due_display"`
	DueDate          time.Time  `json:"due_date"`
	Status           string     `json:"status"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	UpdatedBy        string     `json:"updated_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type KPIBucketResponse struct {
	Count        int64  `json:"count"`
	TotalAmount  int64  `json:"total_amount"`
	TotalDisplay string `json:"total_amount_display"`
}

type KPIResponse struct {
	Pending KPIBucketResponse `json:"pending"`
	Overdue KPIBucketResponse `json:"overdue"`
	Paid    KPIBucketResponse `json:"paid"`
}

type PriceVersionResponse struct {
	ID                 uuid.UUID `json:"id"`
	PriceAmount        int64     `json:"price_amount"`
	PriceAmountDisplay string    `json:"price_amount_display"`
	EffectiveFrom      time.Time `json:"effective_from"`
	CreatedBy          string    `json:"created_by"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}

type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ErrorResponse struct {
	Error                    string     `json:"error"`
	Details                  string     `json:"details,omitempty"`
	Fields                   any        `json:"fields,omitempty"`
	Subject                  string     `json:"subject,omitempty"`
	ConflictingAppointmentID *uuid.UUID `json:"conflicting_appointment_id,omitempty"`
	Retryable                bool       `json:"retryable,omitempty"`
}

// displayAmount renders an amount in minor units as a major-unit string.
func displayAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		ProfessionalID: a.ProfessionalID,
		SiteID:         a.SiteID,
		StartTime:      a.StartTime,
		EndTime:        a.EndTime,
		Type:           string(a.Type),
		Status:         string(a.Status),
		PriceAmount:    a.PriceAmount,
		PriceVersionID: a.PriceVersionID,
		Notes:          a.Notes,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if a.PriceAmount != nil {
		resp.PriceAmountDisplay = displayAmount(*a.PriceAmount)
	}
	return resp
}

func toCollectionResponse(c *collection.Collection) CollectionResponse {
	return CollectionResponse{
		ID:               c.ID,
		AppointmentID:    c.AppointmentID,
		AmountDue:        c.AmountDue,
		AmountDueDisplay: displayAmount(c.AmountDue),
		DueDate:          c.DueDate,
		Status:           string(c.Status),
		PaidAt:           c.PaidAt,
		Notes:            c.Notes,
		UpdatedBy:        c.UpdatedBy,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

func toKPIBucket(b collection.Bucket) KPIBucketResponse {
	return KPIBucketResponse{Count: b.Count, TotalAmount: b.Total, TotalDisplay: displayAmount(b.Total)}
}

func toPriceVersionResponse(v *pricing.PriceVersion) PriceVersionResponse {
	return PriceVersionResponse{
		ID:                 v.ID,
		PriceAmount:        v.PriceAmount,
		PriceAmountDisplay: displayAmount(v.PriceAmount),
		EffectiveFrom:      v.EffectiveFrom,
		CreatedBy:          v.CreatedBy,
		IsActive:           v.IsActive,
		CreatedAt:          v.CreatedAt,
	}
}
