package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/encounterscribe/internal/dbx"
	"github.com/dmitrijs2005/encounterscribe/internal/server/repositories/encounters"
	"github.com/dmitrijs2005/encounterscribe/internal/server/repositories/jobs"
	"github.com/dmitrijs2005/encounterscribe/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/encounterscribe/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can
// use the same repository inside and outside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Jobs(db dbx.DBTX) jobs.Repository
	Encounters(db dbx.DBTX) encounters.Repository
}
