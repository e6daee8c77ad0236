package comments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/dbx"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgForeignKeyViolation = "23503"

const selectColumns = `id, secret_id, creator_id, content, created_at, modified_at, like_count, banned`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a comment. A secret that vanished between the caller's
// existence check and the insert surfaces as common.ErrNotFound.
func (r *PostgresRepository) Create(ctx context.Context, comment *models.Comment) (*models.Comment, error) {
	query :=
		`INSERT INTO comments (secret_id, creator_id, content, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`

	err := r.db.QueryRowContext(ctx, query, comment.SecretID, comment.CreatorID, comment.Content, comment.CreatedAt).Scan(&comment.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return comment, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (*models.Comment, error) {
	query := `SELECT ` + selectColumns + ` FROM comments WHERE id = $1`

	c, err := scanComment(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListBySecret(ctx context.Context, secretID int64, offset, limit int) ([]*models.Comment, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM comments
		 WHERE secret_id = $1 AND NOT banned
		 ORDER BY id
		 OFFSET $2 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, secretID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) UpdateContent(ctx context.Context, id int64, content string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE comments SET content = $1, modified_at = $2 WHERE id = $3`, content, at, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireRow(res)
}

// DeleteBySecret removes every comment of a secret and reports how many
// were removed. Zero is not an error.
func (r *PostgresRepository) DeleteBySecret(ctx context.Context, secretID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE secret_id = $1`, secretID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func requireRow(res sql.Result) error {
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

func scanComment(s scanner) (*models.Comment, error) {
	c := &models.Comment{}
	var modified sql.NullTime
	if err := s.Scan(&c.ID, &c.SecretID, &c.CreatorID, &c.Content, &c.CreatedAt, &modified,
		&c.LikeCount, &c.Banned); err != nil {
		return nil, err
	}
	if modified.Valid {
		t := modified.Time
		c.ModifiedAt = &t
	}
	return c, nil
}
