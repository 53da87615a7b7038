package collection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

type PgRepository struct {
	pool db.Querier
}

func NewPgRepository(pool db.Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

const collectionCols = `id, tenant_id, appointment_id, amount_due, due_date, status, paid_at, notes, updated_by, created_at, updated_at`

func scanCollection(row pgx.Row) (*Collection, error) {
	var c Collection
	var paidAt *time.Time
	var notes *string

	err := row.Scan(
		&c.ID,
		&c.TenantID,
		&c.AppointmentID,
		&c.AmountDue,
		&c.DueDate,
		&c.Status,
		&paidAt,
		&notes,
		&c.UpdatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}

	c.PaidAt = paidAt
	c.Notes = notes
	return &c, nil
}

func (r *PgRepository) Insert(ctx context.Context, c Collection) (*Collection, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO collections (id, tenant_id, appointment_id, amount_due, due_date, status, notes, updated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+collectionCols,
		c.ID, c.TenantID, c.AppointmentID, c.AmountDue, c.DueDate, string(c.Status), c.Notes, c.UpdatedBy)

	created, err := scanCollection(row)
	if err != nil {
		err = db.Classify(err)
		if errors.Is(err, db.ErrUniqueViolation) {
			return nil, ErrCollectionExists
		}
		if errors.Is(err, db.ErrForeignKeyViolation) {
			return nil, ErrUnknownAppointment
		}
		return nil, fmt.Errorf("insert collection: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByAppointment(ctx context.Context, tenantID string, appointmentID uuid.UUID) (*Collection, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+collectionCols+`
		FROM collections
		WHERE tenant_id = $1
		  AND appointment_id = $2
	`, tenantID, appointmentID)
	return scanCollection(row)
}

func (r *PgRepository) List(ctx context.Context, tenantID string, f Filter) ([]Collection, error) {
	where := []string{"c.tenant_id = $1"}
	args := []any{tenantID}

	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Status != nil {
		add("c.status = $%d", string(*f.Status))
	}
	if f.DueFrom != nil {
		add("c.due_date >= $%d", *f.DueFrom)
	}
	if f.DueTo != nil {
		add("c.due_date <= $%d", *f.DueTo)
	}
	if f.AppointmentFrom != nil {
		add("a.start_time >= $%d", *f.AppointmentFrom)
	}
	if f.AppointmentTo != nil {
		add("a.start_time <= $%d", *f.AppointmentTo)
	}
	if f.ProfessionalID != nil {
		add("a.professional_id = $%d", *f.ProfessionalID)
	}
	if f.SiteID != nil {
		add("a.site_id = $%d", *f.SiteID)
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`
		SELECT c.id, c.tenant_id, c.appointment_id, c.amount_due, c.due_date, c.status,
		       c.paid_at, c.notes, c.updated_by, c.created_at, c.updated_at
		FROM collections c
		JOIN appointments a ON a.id = c.appointment_id AND a.tenant_id = c.tenant_id
		WHERE %s
		ORDER BY c.due_date DESC, c.id
		LIMIT $%d OFFSET $%d
	`, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var result []Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ReconcileOverdue(ctx context.Context, tenantID string, now time.Time) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE collections
		SET status = 'OVERDUE',
		    updated_at = now()
		WHERE tenant_id = $1
		  AND status = 'PENDING'
		  AND due_date < $2
	`, tenantID, now)
	if err != nil {
		return 0, fmt.Errorf("reconcile overdue collections: %w", db.Classify(err))
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) ReconcileOne(ctx context.Context, tenantID string, appointmentID uuid.UUID, now time.Time) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE collections
		SET status = 'OVERDUE',
		    updated_at = now()
		WHERE tenant_id = $1
		  AND appointment_id = $2
		  AND status = 'PENDING'
		  AND due_date < $3
	`, tenantID, appointmentID, now)
	if err != nil {
		return 0, fmt.Errorf("reconcile collection: %w", db.Classify(err))
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) TenantsWithOverdue(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT DISTINCT tenant_id
		FROM collections
		WHERE status = 'PENDING'
		  AND due_date < $1
		ORDER BY tenant_id
	`, now)
	if err != nil {
		return nil, fmt.Errorf("find tenants with overdue collections: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		tenants = append(tenants, id)
	}

	return tenants, rows.Err()
}

func (r *PgRepository) MarkPaid(ctx context.Context, tenantID string, appointmentID uuid.UUID, paidAt time.Time, notes *string, userID string) (*Collection, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE collections
		SET status = 'PAID',
		    paid_at = $3,
		    notes = COALESCE($4, notes),
		    updated_by = $5,
		    updated_at = now()
		WHERE tenant_id = $1
		  AND appointment_id = $2
		RETURNING `+collectionCols, tenantID, appointmentID, paidAt, notes, userID)
	return scanCollection(row)
}

func (r *PgRepository) SetDueDate(ctx context.Context, tenantID string, appointmentID uuid.UUID, due time.Time, status Status, userID string) (*Collection, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE collections
		SET due_date = $3,
		    status = $4,
		    updated_by = $5,
		    updated_at = now()
		WHERE tenant_id = $1
		  AND appointment_id = $2
		RETURNING `+collectionCols, tenantID, appointmentID, due, string(status), userID)
	return scanCollection(row)
}

func (r *PgRepository) StatusTotals(ctx context.Context, tenantID string, paidWindow *DateRange) ([]StatusTotal, error) {
	var from, to *time.Time
	if paidWindow != nil {
		from, to = &paidWindow.From, &paidWindow.To
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT status, COUNT(*)::bigint, COALESCE(SUM(amount_due), 0)::bigint
		FROM collections
		WHERE tenant_id = $1
		  AND (status <> 'PAID' OR $2::timestamptz IS NULL OR paid_at >= $2)
		  AND (status <> 'PAID' OR $3::timestamptz IS NULL OR paid_at <= $3)
		GROUP BY status
	`, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("aggregate collections: %w", err)
	}
	defer rows.Close()

	var result []StatusTotal
	for rows.Next() {
		var t StatusTotal
		if err := rows.Scan(&t.Status, &t.Count, &t.Total); err != nil {
			return nil, err
		}
		result = append(result, t)
	}

	return result, rows.Err()
}
