package secrets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, secret *models.Secret) (*models.Secret, error)
	FindByID(ctx context.Context, id int64) (*models.Secret, error)
	List(ctx context.Context, offset, limit int) ([]*models.Secret, error)
	UpdateContent(ctx context.Context, id int64, content string, at time.Time) error
	Delete(ctx context.Context, id int64) error
}
