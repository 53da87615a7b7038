package pricing

import (
	"context"
	"errors"
	"fmt"

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

const versionCols = `id, tenant_id, price_amount, effective_from, created_by, is_active, created_at`

func scanVersion(row pgx.Row, notFound error) (*PriceVersion, error) {
	var v PriceVersion

	err := row.Scan(
		&v.ID,
		&v.TenantID,
		&v.PriceAmount,
		&v.EffectiveFrom,
		&v.CreatedBy,
		&v.IsActive,
		&v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}

	return &v, nil
}

func (r *PgRepository) Current(ctx context.Context, tenantID string) (*PriceVersion, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+versionCols+`
		FROM price_versions
		WHERE tenant_id = $1
		  AND is_active
		ORDER BY effective_from DESC, created_at DESC
		LIMIT 1
	`, tenantID)
	return scanVersion(row, ErrNoCurrentPrice)
}

func (r *PgRepository) Insert(ctx context.Context, v PriceVersion) (*PriceVersion, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO price_versions (id, tenant_id, price_amount, effective_from, created_by, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+versionCols, v.ID, v.TenantID, v.PriceAmount, v.EffectiveFrom, v.CreatedBy, v.IsActive)

	created, err := scanVersion(row, ErrVersionNotFound)
	if err != nil {
		return nil, fmt.Errorf("insert price version: %w", db.Classify(err))
	}
	return created, nil
}

func (r *PgRepository) InsertIfNoneActive(ctx context.Context, v PriceVersion) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO price_versions (id, tenant_id, price_amount, effective_from, created_by, is_active, created_at)
		SELECT $1, $2, $3, $4, $5, TRUE, now()
		WHERE NOT EXISTS (
			SELECT 1 FROM price_versions WHERE tenant_id = $2 AND is_active
		)
	`, v.ID, v.TenantID, v.PriceAmount, v.EffectiveFrom, v.CreatedBy)
	if err != nil {
		return false, fmt.Errorf("insert initial price version: %w", db.Classify(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) List(ctx context.Context, tenantID string) ([]PriceVersion, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+versionCols+`
		FROM price_versions
		WHERE tenant_id = $1
		ORDER BY effective_from DESC, created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list price versions: %w", err)
	}
	defer rows.Close()

	var result []PriceVersion
	for rows.Next() {
		v, err := scanVersion(rows, ErrVersionNotFound)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) SetActive(ctx context.Context, tenantID string, id uuid.UUID, active bool) (*PriceVersion, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE price_versions
		SET is_active = $3
		WHERE tenant_id = $1
		  AND id = $2
		RETURNING `+versionCols, tenantID, id, active)
	return scanVersion(row, ErrVersionNotFound)
}
