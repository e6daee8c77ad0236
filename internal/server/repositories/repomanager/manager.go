package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/anoncommunity/internal/dbx"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/comments"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/secrets"
	"github.com/dmitrijs2005/anoncommunity/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either a *sql.DB or a
// transaction, so services can choose per call.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Secrets(db dbx.DBTX) secrets.Repository
	Comments(db dbx.DBTX) comments.Repository
}
