package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/miloc/internal/dbx"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/media"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/miloc/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same constructors on a pool and inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Media(db dbx.DBTX) media.Repository
}
