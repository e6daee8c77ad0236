package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/dbx"
	"github.com/dmitrijs2005/anoncommunity/internal/logging"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/repomanager"
	"github.com/thejerf/abtime"
)

// SecretService manages secrets. Reads are anonymous; every mutation needs
// an authenticated user and, past creation, ownership.
type SecretService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       abtime.AbstractTime
	logger      logging.Logger
}

func NewSecretService(db *sql.DB, m repomanager.RepositoryManager, clock abtime.AbstractTime, logger logging.Logger) *SecretService {
	return &SecretService{db: db, repomanager: m, clock: clock, logger: logger.With("module", "secret_service")}
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", common.ErrValidation)
	}
	return nil
}

func (s *SecretService) Create(ctx context.Context, current *models.User, content string) (*models.Secret, error) {
	if current == nil {
		return nil, common.ErrUnauthenticated
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	secret, err := s.repomanager.Secrets(s.db).Create(ctx, &models.Secret{
		CreatorID: current.ID,
		Content:   content,
		CreatedAt: s.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create secret: %w", err)
	}
	return secret, nil
}

func (s *SecretService) Get(ctx context.Context, id int64) (*models.Secret, error) {
	return s.repomanager.Secrets(s.db).FindByID(ctx, id)
}

func (s *SecretService) List(ctx context.Context, skip, limit int) ([]*models.Secret, error) {
	skip, limit, err := page(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.repomanager.Secrets(s.db).List(ctx, skip, limit)
}

// UpdateContent replaces the text of a secret owned by current and stamps
// its modification time.
func (s *SecretService) UpdateContent(ctx context.Context, current *models.User, id int64, content string) (*models.Secret, error) {
	repo := s.repomanager.Secrets(s.db)

	secret, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := AuthorizeMutation(current, secret.CreatorID); err != nil {
		return nil, err
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := repo.UpdateContent(ctx, id, content, now); err != nil {
		return nil, fmt.Errorf("update secret: %w", err)
	}
	secret.Content = content
	secret.ModifiedAt = &now
	return secret, nil
}

// Delete removes a secret owned by current together with all its comments.
func (s *SecretService) Delete(ctx context.Context, current *models.User, id int64) error {
	secret, err := s.repomanager.Secrets(s.db).FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := AuthorizeMutation(current, secret.CreatorID); err != nil {
		return err
	}

	var removed int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repomanager.Comments(tx).DeleteBySecret(ctx, id)
		if err != nil {
			return fmt.Errorf("delete comments: %w", err)
		}
		removed = n
		if err := s.repomanager.Secrets(tx).Delete(ctx, id); err != nil {
			return fmt.Errorf("delete secret: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "secret deleted", "secret_id", id, "comments_removed", removed)
	return nil
}
