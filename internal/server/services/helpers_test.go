package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/dbx"
	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/dmitrijs2005/anoncommunity/internal/server/auth"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/comments"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/users"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/users/userstest"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
)

var (
	errBoom = errors.New("boom")
	epoch   = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
)

type fakeRepoManager struct {
	users    users.Repository
	secrets  secrets.Repository
	comments comments.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *fakeRepoManager) Secrets(dbx.DBTX) secrets.Repository         { return m.secrets }
func (m *fakeRepoManager) Comments(dbx.DBTX) comments.Repository       { return m.comments }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func newTestHasher(t *testing.T) *auth.Argon2Hasher {
	t.Helper()
	h, err := auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}, logging.NopLogger{})
	require.NoError(t, err)
	return h
}

func newTestCodec(t *testing.T) *auth.TokenCodec {
	t.Helper()
	c, err := auth.NewTokenCodec([]byte("test-signing-secret"))
	require.NoError(t, err)
	return c
}

type authFixture struct {
	users   *userstest.MemoryRepository
	rm      *fakeRepoManager
	clock   *abtime.ManualTime
	codec   *auth.TokenCodec
	hasher  *auth.Argon2Hasher
	service *UserService
	guard   *SessionGuard
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		users:  userstest.NewMemoryRepository(),
		clock:  abtime.NewManualAtTime(epoch),
		codec:  newTestCodec(t),
		hasher: newTestHasher(t),
	}
	f.rm = &fakeRepoManager{users: f.users}
	f.service = NewUserService(nil, f.rm, NewRepositoryResolver(nil, f.rm), f.hasher, f.codec, f.clock, time.Hour, logging.NopLogger{})
	f.guard = NewSessionGuard(f.codec, NewRepositoryResolver(nil, f.rm), f.clock, logging.NopLogger{})
	return f
}

func (f *authFixture) register(t *testing.T, username, password string) *models.User {
	t.Helper()
	u, err := f.service.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.NoError(t, err)
	return u
}

// fakeSecrets is a map-backed secrets.Repository with per-method failures.
type fakeSecrets struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*models.Secret
	createErr error
	findErr   error
	updateErr error
	deleteErr error
	deleted   []int64
}

func newFakeSecrets(rows ...*models.Secret) *fakeSecrets {
	f := &fakeSecrets{rows: map[int64]*models.Secret{}}
	for _, r := range rows {
		f.rows[r.ID] = r
		if r.ID > f.nextID {
			f.nextID = r.ID
		}
	}
	return f
}

func (f *fakeSecrets) Create(_ context.Context, s *models.Secret) (*models.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	s.ID = f.nextID
	c := *s
	f.rows[s.ID] = &c
	return s, nil
}

func (f *fakeSecrets) FindByID(_ context.Context, id int64) (*models.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f *fakeSecrets) List(_ context.Context, offset, limit int) ([]*models.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id := range f.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	var out []*models.Secret
	for i, id := range ids {
		if i < offset || len(out) == limit {
			continue
		}
		out = append(out, f.rows[id])
	}
	return out, nil
}

func (f *fakeSecrets) UpdateContent(_ context.Context, id int64, content string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	s, ok := f.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	s.Content = content
	s.ModifiedAt = &at
	return nil
}

func (f *fakeSecrets) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.rows[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.rows, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeComments struct {
	mu                sync.Mutex
	nextID            int64
	rows              map[int64]*models.Comment
	createErr         error
	deleteBySecretErr error
}

func newFakeComments(rows ...*models.Comment) *fakeComments {
	f := &fakeComments{rows: map[int64]*models.Comment{}}
	for _, r := range rows {
		f.rows[r.ID] = r
		if r.ID > f.nextID {
			f.nextID = r.ID
		}
	}
	return f
}

func (f *fakeComments) Create(_ context.Context, c *models.Comment) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	c.ID = f.nextID
	cp := *c
	f.rows[c.ID] = &cp
	return c, nil
}

func (f *fakeComments) FindByID(_ context.Context, id int64) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeComments) ListBySecret(_ context.Context, secretID int64, offset, limit int) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, c := range f.rows {
		if c.SecretID == secretID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []*models.Comment
	for i, id := range ids {
		if i < offset || len(out) == limit {
			continue
		}
		out = append(out, f.rows[id])
	}
	return out, nil
}

func (f *fakeComments) UpdateContent(_ context.Context, id int64, content string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return common.ErrNotFound
	}
	c.Content = content
	c.ModifiedAt = &at
	return nil
}

func (f *fakeComments) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return common.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeComments) DeleteBySecret(_ context.Context, secretID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteBySecretErr != nil {
		return 0, f.deleteBySecretErr
	}
	var n int64
	for id, c := range f.rows {
		if c.SecretID == secretID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}
