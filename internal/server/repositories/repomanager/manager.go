package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/enrollportal/internal/dbx"
	"github.com/dmitrijs2005/enrollportal/internal/server/repositories/projectfiles"
	"github.com/dmitrijs2005/enrollportal/internal/server/repositories/projects"
	"github.com/dmitrijs2005/enrollportal/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so a service can use
// the same repos against the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Projects(db dbx.DBTX) projects.Repository
	ProjectFiles(db dbx.DBTX) projectfiles.Repository
}
