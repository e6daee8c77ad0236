package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/repomanager"
	"github.com/thejerf/abtime"
)

type CommentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       abtime.AbstractTime
}

func NewCommentService(db *sql.DB, m repomanager.RepositoryManager, clock abtime.AbstractTime) *CommentService {
	return &CommentService{db: db, repomanager: m, clock: clock}
}

// Create attaches a comment to an existing secret.
func (s *CommentService) Create(ctx context.Context, current *models.User, secretID int64, content string) (*models.Comment, error) {
	if current == nil {
		return nil, common.ErrUnauthenticated
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Secrets(s.db).FindByID(ctx, secretID); err != nil {
		return nil, err
	}

	comment, err := s.repomanager.Comments(s.db).Create(ctx, &models.Comment{
		SecretID:  secretID,
		CreatorID: current.ID,
		Content:   content,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return comment, nil
}

func (s *CommentService) Get(ctx context.Context, id int64) (*models.Comment, error) {
	return s.repomanager.Comments(s.db).FindByID(ctx, id)
}

func (s *CommentService) ListBySecret(ctx context.Context, secretID int64, skip, limit int) ([]*models.Comment, error) {
	skip, limit, err := page(skip, limit)
	if err != nil {
		return nil, err
	}
	if _, err := s.repomanager.Secrets(s.db).FindByID(ctx, secretID); err != nil {
		return nil, err
	}
	return s.repomanager.Comments(s.db).ListBySecret(ctx, secretID, skip, limit)
}

func (s *CommentService) UpdateContent(ctx context.Context, current *models.User, id int64, content string) (*models.Comment, error) {
	repo := s.repomanager.Comments(s.db)

	comment, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeMutation(current, comment.CreatorID); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := repo.UpdateContent(ctx, id, content, now); err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	comment.Content = content
	comment.ModifiedAt = &now
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, current *models.User, id int64) error {
	repo := s.repomanager.Comments(s.db)

	comment, err := repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := AuthorizeMutation(current, comment.CreatorID); err != nil {
		return err
	}
	if err := repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
