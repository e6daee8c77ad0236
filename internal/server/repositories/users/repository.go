package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
)

// Repository persists user accounts. Lookups return common.ErrNotFound when
// no row matches; Create returns common.ErrDuplicateUsername or
// common.ErrDuplicateEmail when a uniqueness constraint is hit.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdateAvatarURL(ctx context.Context, id int64, url string) error
	List(ctx context.Context, offset, limit int) ([]*models.User, error)
}
