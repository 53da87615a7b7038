package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

const (
	professionalOverlapConstraint = "appointments_professional_no_overlap"
	patientOverlapConstraint      = "appointments_patient_no_overlap"
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentCols = `id, tenant_id, patient_id, professional_id, site_id, start_time, end_time, type, status,
	price_amount, price_version_id, notes, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var priceAmount *int64
	var priceVersionID *uuid.UUID

	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.PatientID,
		&a.ProfessionalID,
		&a.SiteID,
		&a.StartTime,
		&a.EndTime,
		&a.Type,
		&a.Status,
		&priceAmount,
		&priceVersionID,
		&a.Notes,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.PriceAmount = priceAmount
	a.PriceVersionID = priceVersionID
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// writeError maps an exclusion violation back to the subject it protects.
func writeError(err error, a Appointment) error {
	err = db.Classify(err)
	if !errors.Is(err, db.ErrExclusionViolation) {
		return err
	}

	switch db.ConstraintName(err) {
	case professionalOverlapConstraint:
		return &ConflictError{Subject: SubjectProfessional, SubjectID: a.ProfessionalID}
	case patientOverlapConstraint:
		return &ConflictError{Subject: SubjectPatient, SubjectID: a.PatientID}
	}
	return err
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, tenantID string, id uuid.UUID) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE tenant_id = $1
		  AND id = $2
	`, tenantID, id)
	return scanAppointment(row)
}

func (r *PgRepository) List(ctx context.Context, tenantID string, f ListFilter) ([]Appointment, error) {
	where := []string{"tenant_id = $1"}
	args := []any{tenantID}

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.ProfessionalID != nil {
		add("professional_id = $%d", *f.ProfessionalID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.SiteID != nil {
		add("site_id = $%d", *f.SiteID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.From != nil {
		add("start_time >= $%d", *f.From)
	}
	if f.To != nil {
		add("start_time <= $%d", *f.To)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM appointments
		WHERE %s
		ORDER BY start_time, id
		LIMIT $%d OFFSET $%d
	`, appointmentCols, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) FindOverlapping(ctx context.Context, tenantID string, subject SubjectKind, subjectID uuid.UUID, iv Interval, exclude *uuid.UUID) (*Appointment, error) {
	var column string
	switch subject {
	case SubjectProfessional:
		column = "professional_id"
	case SubjectPatient:
		column = "patient_id"
	default:
		return nil, fmt.Errorf("unknown conflict subject %q", subject)
	}

	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+appointmentCols+`
		FROM appointments
		WHERE tenant_id = $1
		  AND `+column+` = $2
		  AND status <> 'CANCELLED'
		  AND start_time < $4
		  AND end_time > $3
		  AND ($5::uuid IS NULL OR id <> $5)
		ORDER BY start_time
		LIMIT 1
	`, tenantID, subjectID, iv.Start, iv.End, exclude)

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil
		}
		return nil, db.Classify(err)
	}
	return a, nil
}

func (r *PgRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (
			id, tenant_id, patient_id, professional_id, site_id, start_time, end_time,
			type, status, price_amount, price_version_id, notes, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		RETURNING `+appointmentCols,
		a.ID, a.TenantID, a.PatientID, a.ProfessionalID, a.SiteID, a.StartTime, a.EndTime,
		string(a.Type), string(a.Status), a.PriceAmount, a.PriceVersionID, a.Notes, a.CreatedBy)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, writeError(err, a)
	}
	return created, nil
}

func (r *PgRepository) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    notes = $4,
		    start_time = $5,
		    end_time = $6,
		    updated_at = now()
		WHERE tenant_id = $1
		  AND id = $2
		RETURNING `+appointmentCols,
		a.TenantID, a.ID, string(a.Status), a.Notes, a.StartTime, a.EndTime)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, writeError(err, a)
	}
	return updated, nil
}
