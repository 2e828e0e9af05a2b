package users

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

var pgConstraintFields = map[string]string{
	"users_username_key":  "username",
	"users_email_key":     "email",
	"users_bootstrap_key": "bootstrap",
}

// NewPostgresRepository returns a Repository backed by PostgreSQL through
// the pgx database/sql driver.
func NewPostgresRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, uniqueField: pgUniqueField, now: time.Now}
}

func pgUniqueField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return "", false
	}
	field, ok := pgConstraintFields[pgErr.ConstraintName]
	return field, ok
}
