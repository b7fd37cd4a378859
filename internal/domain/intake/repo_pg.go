package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type formRepoPG struct{ pool *pgxpool.Pool }

func NewFormRepoPG(pool *pgxpool.Pool) FormRepository {
	return &formRepoPG{pool: pool}
}

const formCols = `id, name, version, status, definition, note, created_at, updated_at`

func scanForm(row pgx.Row) (*FormVersion, error) {
	var f FormVersion
	err := row.Scan(&f.ID, &f.Name, &f.Version, &f.Status, &f.Definition, &f.Note, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFormNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *formRepoPG) Create(ctx context.Context, f *FormVersion) error {
	f.ID = uuid.New()
	if f.Status == "" {
		f.Status = FormStatusDraft
	}
	return r.pool.QueryRow(ctx, `
		INSERT INTO intake_form (id, name, version, status, definition, note)
		SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5
		FROM intake_form WHERE name = $2
		RETURNING version, created_at, updated_at`,
		f.ID, f.Name, f.Status, f.Definition, f.Note,
	).Scan(&f.Version, &f.CreatedAt, &f.UpdatedAt)
}

func (r *formRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*FormVersion, error) {
	return scanForm(r.pool.QueryRow(ctx, `SELECT `+formCols+` FROM intake_form WHERE id = $1`, id))
}

func (r *formRepoPG) GetActive(ctx context.Context, name string) (*FormVersion, error) {
	return scanForm(r.pool.QueryRow(ctx,
		`SELECT `+formCols+` FROM intake_form WHERE name = $1 AND status = $2`, name, FormStatusActive))
}

func (r *formRepoPG) List(ctx context.Context, name string, limit, offset int) ([]*FormVersion, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM intake_form WHERE ($1::text = '' OR name = $1)`, name).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+formCols+` FROM intake_form
		WHERE ($1::text = '' OR name = $1)
		ORDER BY name, version DESC LIMIT $2 OFFSET $3`, name, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*FormVersion
	for rows.Next() {
		f, err := scanForm(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, rows.Err()
}

func (r *formRepoPG) Activate(ctx context.Context, id uuid.UUID) (*FormVersion, error) {
	var out *FormVersion
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		f, err := scanForm(tx.QueryRow(ctx, `SELECT `+formCols+` FROM intake_form WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE intake_form SET status = $1, updated_at = NOW()
			WHERE name = $2 AND status = $3 AND id <> $4`,
			FormStatusRetired, f.Name, FormStatusActive, id); err != nil {
			return fmt.Errorf("retire active form: %w", err)
		}
		out, err = scanForm(tx.QueryRow(ctx, `
			UPDATE intake_form SET status = $1, updated_at = NOW()
			WHERE id = $2 RETURNING `+formCols, FormStatusActive, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
