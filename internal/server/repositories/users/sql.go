package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/dbx"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
)

// uniqueFieldFunc reports which unique column a driver error violated:
// "username", "email" or "bootstrap". ok is false for any other error.
type uniqueFieldFunc func(err error) (field string, ok bool)

// SQLRepository implements Repository over database/sql. The queries are
// shared by PostgreSQL and SQLite; only constraint-error decoding differs.
type SQLRepository struct {
	db          dbx.DBTX
	uniqueField uniqueFieldFunc
	now         func() time.Time
}

const userColumns = `id, username, email, password_hash, role, created_at, updated_at`

func (r *SQLRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Role != "" {
		return r.insert(ctx, user)
	}

	// Two concurrent first registrations can both see an empty table. The
	// loser trips users_bootstrap_key and retries, by which time the table
	// is no longer empty.
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		var created *models.User
		created, err = r.insertBootstrap(ctx, user)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, errBootstrapTaken) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("db error: %w", err)
}

var errBootstrapTaken = errors.New("bootstrap account already created")

func (r *SQLRepository) insert(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, role
		 `

	now := r.now().UTC()
	var role string
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, string(user.Role), now, now).Scan(&user.ID, &role)
	if err != nil {
		return nil, r.mapError(err)
	}

	user.Role = models.Role(role)
	user.CreatedAt, user.UpdatedAt = now, now
	return user, nil
}

func (r *SQLRepository) insertBootstrap(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (username, email, password_hash, role, bootstrap, created_at, updated_at)
		 VALUES ($1, $2, $3,
		         CASE WHEN EXISTS (SELECT 1 FROM users) THEN 'user' ELSE 'admin' END,
		         CASE WHEN EXISTS (SELECT 1 FROM users) THEN NULL ELSE TRUE END,
		         $4, $5)
		 RETURNING id, role
		 `

	now := r.now().UTC()
	var role string
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, now, now).Scan(&user.ID, &role)
	if err != nil {
		return nil, r.mapError(err)
	}

	user.Role = models.Role(role)
	user.CreatedAt, user.UpdatedAt = now, now
	return user, nil
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByUsername matches the username exactly; lookups are case-sensitive.
func (r *SQLRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *SQLRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) List(ctx context.Context) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`UPDATE users
		 SET username = $1, email = $2, password_hash = $3, role = $4, updated_at = $5
		 WHERE id = $6
		 `

	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, string(user.Role), now, user.ID)
	if err != nil {
		return nil, r.mapError(err)
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}

	user.UpdatedAt = now
	return user, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (r *SQLRepository) mapError(err error) error {
	if field, ok := r.uniqueField(err); ok {
		switch field {
		case "username":
			return common.ErrUsernameTaken
		case "email":
			return common.ErrEmailTaken
		case "bootstrap":
			return errBootstrapTaken
		}
	}
	return fmt.Errorf("db error: %w", err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return u, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
