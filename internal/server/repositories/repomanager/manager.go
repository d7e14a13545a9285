package repomanager

import (
	"context"
	"database/sql"

	"github.com/avolkovs/taskkeeper/internal/dbx"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/files"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/refreshtokens"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/tasks"
	"github.com/avolkovs/taskkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, which
// lets services run several repository calls inside one transaction by
// passing the same *sql.Tx to each.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Tasks(db dbx.DBTX) tasks.Repository
	Files(db dbx.DBTX) files.Repository
}
