package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/dbx"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
)

const selectColumns = `id, creator_id, content, created_at, modified_at, like_count, hug_count, banned`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, secret *models.Secret) (*models.Secret, error) {
	query :=
		`INSERT INTO secrets (creator_id, content, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query, secret.CreatorID, secret.Content, secret.CreatedAt).Scan(&secret.ID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return secret, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Secret, error) {
	query := `SELECT ` + selectColumns + ` FROM secrets WHERE id = $1`

	secret, err := scanSecret(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return secret, nil
}

func (r *PostgresRepository) List(ctx context.Context, offset, limit int) ([]*models.Secret, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM secrets
		 WHERE NOT banned
		 ORDER BY id DESC
		 OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Secret
	for rows.Next() {
		s, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateContent(ctx context.Context, id int64, content string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE secrets SET content = $1, modified_at = $2 WHERE id = $3`, content, at, id)
	return affectedOne(res, err)
}

// Delete removes the secret row only. Comments reference it, so callers
// delete them first in the same transaction.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSecret(s scanner) (*models.Secret, error) {
	secret := &models.Secret{}
	var modified sql.NullTime
	if err := s.Scan(&secret.ID, &secret.CreatorID, &secret.Content, &secret.CreatedAt, &modified,
		&secret.LikeCount, &secret.HugCount, &secret.Banned); err != nil {
		return nil, err
	}
	if modified.Valid {
		t := modified.Time
		secret.ModifiedAt = &t
	}
	return secret, nil
}
