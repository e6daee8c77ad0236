// Package userstest provides an in-memory users.Repository for tests of the
// packages built on top of it.
package userstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/users"
)

var _ users.Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps users in process memory. Uniqueness is enforced
// under one lock, so concurrent duplicate registrations resolve to exactly
// one winner as they would against the database constraints.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*models.User
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[int64]*models.User{}, now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.byID {
		if u.Username == user.Username {
			return nil, common.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return nil, common.ErrDuplicateEmail
		}
	}

	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = r.now()
	r.byID[user.ID] = clone(user)
	return user, nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.byID[id]; ok {
		return clone(u), nil
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *MemoryRepository) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *MemoryRepository) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	return r.update(id, func(u *models.User) { u.LastLogin = &at })
}

func (r *MemoryRepository) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	return r.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (r *MemoryRepository) UpdateAvatarURL(_ context.Context, id int64, url string) error {
	return r.update(id, func(u *models.User) { u.AvatarURL = url })
}

// SetBanned flips the banned flag. There is no public API for moderation,
// the method exists for tooling and tests.
func (r *MemoryRepository) SetBanned(id int64, banned bool) error {
	return r.update(id, func(u *models.User) { u.Banned = banned })
}

func (r *MemoryRepository) update(id int64, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	fn(u)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, offset, limit int) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int64, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(ids) {
		return nil, nil
	}
	ids = ids[offset:]
	if limit < len(ids) {
		ids = ids[:limit]
	}

	result := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		result = append(result, clone(r.byID[id]))
	}
	return result, nil
}

func clone(u *models.User) *models.User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	return &c
}
