package rest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/dbx"
	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/dmitrijs2005/anoncommunity/internal/server/auth"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/comments"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/users"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/users/userstest"
	"github.com/dmitrijs2005/anoncommunity/internal/server/services"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/abtime"
)

var epoch = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

type usersOnlyManager struct {
	users users.Repository
}

func (m *usersOnlyManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *usersOnlyManager) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *usersOnlyManager) Secrets(dbx.DBTX) secrets.Repository         { return nil }
func (m *usersOnlyManager) Comments(dbx.DBTX) comments.Repository       { return nil }

// fakeSecrets keeps secrets in a map and applies the same ownership rule as
// the real service.
type fakeSecrets struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.Secret
	err    error
}

func newFakeSecrets() *fakeSecrets {
	return &fakeSecrets{rows: map[int64]*models.Secret{}}
}

func (f *fakeSecrets) Create(_ context.Context, current *models.User, content string) (*models.Secret, error) {
	if current == nil {
		return nil, common.ErrUnauthenticated
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	s := &models.Secret{ID: f.nextID, CreatorID: current.ID, Content: content, CreatedAt: epoch}
	f.rows[s.ID] = s
	return s, nil
}

func (f *fakeSecrets) Get(_ context.Context, id int64) (*models.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return s, nil
}

func (f *fakeSecrets) List(_ context.Context, _, _ int) ([]*models.Secret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*models.Secret, 0, len(f.rows))
	for id := f.nextID; id > 0; id-- {
		if s, ok := f.rows[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSecrets) UpdateContent(ctx context.Context, current *models.User, id int64, content string) (*models.Secret, error) {
	s, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := services.AuthorizeMutation(current, s.CreatorID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s.Content = content
	return s, nil
}

func (f *fakeSecrets) Delete(ctx context.Context, current *models.User, id int64) error {
	s, err := f.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := services.AuthorizeMutation(current, s.CreatorID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

type fakeComments struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[int64]*models.Comment
	secrets *fakeSecrets
}

func newFakeComments(s *fakeSecrets) *fakeComments {
	return &fakeComments{rows: map[int64]*models.Comment{}, secrets: s}
}

func (f *fakeComments) Create(ctx context.Context, current *models.User, secretID int64, content string) (*models.Comment, error) {
	if current == nil {
		return nil, common.ErrUnauthenticated
	}
	if _, err := f.secrets.Get(ctx, secretID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c := &models.Comment{ID: f.nextID, SecretID: secretID, CreatorID: current.ID, Content: content, CreatedAt: epoch}
	f.rows[c.ID] = c
	return c, nil
}

func (f *fakeComments) Get(_ context.Context, id int64) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return c, nil
}

func (f *fakeComments) ListBySecret(ctx context.Context, secretID int64, _, _ int) ([]*models.Comment, error) {
	if _, err := f.secrets.Get(ctx, secretID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Comment
	for id := int64(1); id <= f.nextID; id++ {
		if c, ok := f.rows[id]; ok && c.SecretID == secretID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeComments) UpdateContent(ctx context.Context, current *models.User, id int64, content string) (*models.Comment, error) {
	c, err := f.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := services.AuthorizeMutation(current, c.CreatorID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	c.Content = content
	return c, nil
}

func (f *fakeComments) Delete(ctx context.Context, current *models.User, id int64) error {
	c, err := f.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := services.AuthorizeMutation(current, c.CreatorID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

type fakeAvatars struct {
	upload *services.AvatarUpload
	err    error
	calls  []int64
}

func (f *fakeAvatars) PresignUpload(_ context.Context, current *models.User) (*services.AvatarUpload, error) {
	f.calls = append(f.calls, current.ID)
	return f.upload, f.err
}

type testServer struct {
	server   *HTTPServer
	handler  http.Handler
	users    *userstest.MemoryRepository
	clock    *abtime.ManualTime
	secrets  *fakeSecrets
	comments *fakeComments
	avatars  *fakeAvatars
	metrics  *Metrics
}

func newTestServer(t *testing.T, limiter RateLimiter, loginLimit int) *testServer {
	t.Helper()

	hasher, err := auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}, logging.NopLogger{})
	require.NoError(t, err)
	codec, err := auth.NewTokenCodec([]byte("rest-test-secret"))
	require.NoError(t, err)

	ts := &testServer{
		users:   userstest.NewMemoryRepository(),
		clock:   abtime.NewManualAtTime(epoch),
		secrets: newFakeSecrets(),
		avatars: &fakeAvatars{},
		metrics: NewMetrics(),
	}
	ts.comments = newFakeComments(ts.secrets)
	rm := &usersOnlyManager{users: ts.users}

	ts.server = NewHTTPServer(":0", logging.NopLogger{}, Deps{
		Users:           services.NewUserService(nil, rm, services.NewRepositoryResolver(nil, rm), hasher, codec, ts.clock, time.Hour, logging.NopLogger{}),
		Guard:           services.NewSessionGuard(codec, services.NewRepositoryResolver(nil, rm), ts.clock, logging.NopLogger{}),
		Secrets:         ts.secrets,
		Comments:        ts.comments,
		Avatars:         ts.avatars,
		Limiter:         limiter,
		LoginRateLimit:  loginLimit,
		LoginRateWindow: time.Minute,
		Metrics:         ts.metrics,
	})
	ts.handler = ts.server.Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) register(t *testing.T, username, password string) userOut {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/users", "", registerRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out userOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/token", "", loginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.AccessToken
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
