package users

import (
	"context"

	"github.com/dmitrijs2005/cinecritic/internal/server/models"
)

// Repository is the credential store.
//
// Lookups return common.ErrorNotFound for missing rows. Uniqueness violations
// surface as common.ErrUsernameTaken or common.ErrEmailTaken. Other driver
// failures are wrapped as "db error: ...".
type Repository interface {
	// Create inserts user. When user.Role is empty the store assigns the
	// role itself: admin if the store was empty, user otherwise. That
	// check and the insert happen atomically.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	Count(ctx context.Context) (int64, error)
	List(ctx context.Context) ([]*models.User, error)
	// Update persists username, email, password hash and role of user.
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}
