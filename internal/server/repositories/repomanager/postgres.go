package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cinecritic/internal/dbx"
	"github.com/dmitrijs2005/cinecritic/internal/server/migrations"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct{}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// RunMigrations applies the embedded PostgreSQL migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, migrations.Postgres(), "pgx")
}
