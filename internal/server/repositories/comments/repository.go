package comments

import (
	"context"
	"time"

	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	FindByID(ctx context.Context, id int64) (*models.Comment, error)
	ListBySecret(ctx context.Context, secretID int64, offset, limit int) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, id int64, content string, at time.Time) error
	Delete(ctx context.Context, id int64) error
	DeleteBySecret(ctx context.Context, secretID int64) (int64, error)
}
