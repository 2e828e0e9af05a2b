package users

import (
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// NewSQLiteRepository returns a Repository backed by SQLite (modernc.org/sqlite).
func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, uniqueField: sqliteUniqueField, now: time.Now}
}

// sqliteUniqueField decodes messages of the form
// "UNIQUE constraint failed: users.username".
func sqliteUniqueField(err error) (string, bool) {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return "", false
	}
	msg := sqliteErr.Error()
	for _, field := range []string{"username", "email", "bootstrap"} {
		if strings.Contains(msg, "users."+field) {
			return field, true
		}
	}
	return "", false
}
