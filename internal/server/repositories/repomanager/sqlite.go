package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/cinecritic/internal/dbx"
	"github.com/dmitrijs2005/cinecritic/internal/server/migrations"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/users"
	_ "modernc.org/sqlite"
)

// SQLiteRepositoryManager vends SQLite-backed repositories. With an
// in-memory DSN it doubles as the zero-dependency local store.
type SQLiteRepositoryManager struct{}

func (m *SQLiteRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLiteRepository(db)
}

func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate(ctx, db, migrations.SQLite(), "sqlite3")
}
