package comments

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var commentColumns = []string{"id", "secret_id", "creator_id", "content", "created_at", "modified_at", "like_count", "banned"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

const insertQ = `(?s)^INSERT\s+INTO\s+comments\s*\(secret_id,\s*creator_id,\s*content,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*RETURNING\s+id$`

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(insertQ).
		WithArgs(int64(5), int64(3), "me too", at).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(40)))

	got, err := repo.Create(context.Background(), &models.Comment{SecretID: 5, CreatorID: 3, Content: "me too", CreatedAt: at})
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.ID)
}

func TestCreate_MissingSecret(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "comments_secret_id_fkey"})

	_, err := repo.Create(context.Background(), &models.Comment{SecretID: 404, CreatorID: 3, Content: "x"})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(insertQ).WillReturnError(errors.New("down"))

	_, err := repo.Create(context.Background(), &models.Comment{SecretID: 1, CreatorID: 3, Content: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrNotFound)
}

func TestFindByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+comments\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(40)).
		WillReturnRows(sqlmock.NewRows(commentColumns).AddRow(int64(40), int64(5), int64(3), "c", now, nil, 0, false))

	got, err := repo.FindByID(context.Background(), 40)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.SecretID)
	assert.Nil(t, got.ModifiedAt)

	mock.ExpectQuery(`FROM\s+comments\s+WHERE\s+id`).WithArgs(int64(41)).WillReturnError(sql.ErrNoRows)
	_, err = repo.FindByID(context.Background(), 41)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListBySecret(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)FROM\s+comments\s+WHERE\s+secret_id\s*=\s*\$1\s+AND\s+NOT\s+banned\s+ORDER\s+BY\s+id\s+OFFSET\s+\$2\s+LIMIT\s+\$3$`).
		WithArgs(int64(5), 0, 50).
		WillReturnRows(sqlmock.NewRows(commentColumns).
			AddRow(int64(40), int64(5), int64(3), "a", now, nil, 0, false).
			AddRow(int64(41), int64(5), int64(4), "b", now, now, 1, false))

	got, err := repo.ListBySecret(context.Background(), 5, 0, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotNil(t, got[1].ModifiedAt)

	mock.ExpectQuery(`FROM\s+comments\s+WHERE\s+secret_id`).WillReturnError(errors.New("down"))
	_, err = repo.ListBySecret(context.Background(), 5, 0, 50)
	assert.Regexp(t, `db error: .*down`, err.Error())
}

func TestUpdateAndDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)^UPDATE\s+comments\s+SET\s+content\s*=\s*\$1,\s*modified_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$3$`).
		WithArgs("edited", at, int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateContent(context.Background(), 40, "edited", at))

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+comments\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(40)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 40), common.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteBySecret(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)^DELETE\s+FROM\s+comments\s+WHERE\s+secret_id\s*=\s*\$1$`

	mock.ExpectExec(q).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.DeleteBySecret(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectExec(q).WithArgs(int64(6)).WillReturnResult(sqlmock.NewResult(0, 0))
	n, err = repo.DeleteBySecret(context.Background(), 6)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectExec(q).WithArgs(int64(7)).WillReturnError(errors.New("down"))
	_, err = repo.DeleteBySecret(context.Background(), 7)
	assert.Error(t, err)
}
