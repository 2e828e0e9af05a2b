// Package repomanager hands out repository implementations for the configured
// database and applies its schema migrations with goose.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/dmitrijs2005/cinecritic/internal/dbx"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

var gooseSetDialect = goose.SetDialect

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

func migrate(ctx context.Context, db *sql.DB, fsys fs.FS, dialect string) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := gooseSetDialect(dialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// Open connects to the database named by driver and dsn, verifies the
// connection and returns the matching RepositoryManager.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, RepositoryManager, error) {
	var (
		db  *sql.DB
		m   RepositoryManager
		err error
	)

	switch driver {
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		m = &PostgresRepositoryManager{}
	case DriverSQLite:
		db, err = sql.Open("sqlite", dsn)
		// one connection serializes writers and keeps a shared in-memory
		// database alive for the life of the pool
		if db != nil {
			db.SetMaxOpenConns(1)
		}
		m = &SQLiteRepositoryManager{}
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	return db, m, nil
}
