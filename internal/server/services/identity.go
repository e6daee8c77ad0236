package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/repomanager"
)

// IdentityResolver maps a stable identifier to the current user record.
// Every method returns common.ErrNotFound when no user matches.
type IdentityResolver interface {
	ByUsername(ctx context.Context, username string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id int64) (*models.User, error)
}

// RepositoryResolver reads through to the users repository on every call.
// Nothing is cached, so a ban or deletion is visible to the next request.
type RepositoryResolver struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewRepositoryResolver(db *sql.DB, m repomanager.RepositoryManager) *RepositoryResolver {
	return &RepositoryResolver{db: db, repomanager: m}
}

func (r *RepositoryResolver) ByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.repomanager.Users(r.db).FindByUsername(ctx, username)
}

func (r *RepositoryResolver) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.repomanager.Users(r.db).FindByEmail(ctx, email)
}

func (r *RepositoryResolver) ByID(ctx context.Context, id int64) (*models.User, error) {
	return r.repomanager.Users(r.db).FindByID(ctx, id)
}
