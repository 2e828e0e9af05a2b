package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/dbx"
	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/dmitrijs2005/cinecritic/internal/server/auth"
	"github.com/dmitrijs2005/cinecritic/internal/server/events"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/repomanager"
)

// UserService is the admin-side account management used by the admin pages,
// the admin API and the useradmin CLI.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      auth.PasswordHasher
	events      events.Publisher
	logger      logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.PasswordHasher, publisher events.Publisher, logger logging.Logger) *UserService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &UserService{db: db, repomanager: m, hasher: hasher, events: publisher, logger: logger}
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	list, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		s.logger.Error(ctx, "user list failed", "error", err)
		return nil, storeError(err)
	}
	return list, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return u, nil
}

// Create adds an account with an explicit role. It never takes the
// first-user bootstrap path.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := auth.EnsureHashed(s.hasher, in.Password)
	if err != nil {
		return nil, hashError(err)
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error(ctx, "user create failed", "error", err)
		}
		return nil, storeError(err)
	}

	s.logger.Info(ctx, "user created", "user_id", u.ID, "role", u.Role)
	s.events.Publish(ctx, events.Event{Type: events.UserCreated, UserID: u.ID, Username: u.Username})
	return u, nil
}

// Update applies in to the account id inside a transaction. Role changes do
// not reach sessions or tokens issued before the change.
func (s *UserService) Update(ctx context.Context, id int64, in UpdateUserInput) (*models.User, error) {
	// hash outside the transaction; bcrypt is slow
	var hash string
	if in.Password != nil {
		if !auth.IsPasswordHash(*in.Password) {
			if err := validatePassword(*in.Password); err != nil {
				return nil, err
			}
		}
		h, err := auth.EnsureHashed(s.hasher, *in.Password)
		if err != nil {
			return nil, hashError(err)
		}
		hash = h
	}

	u, err := dbx.WithTxResult(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		repo := s.repomanager.Users(tx)

		u, err := repo.GetUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := in.apply(u); err != nil {
			return nil, err
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		return repo.Update(ctx, u)
	})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error(ctx, "user update failed", "user_id", id, "error", err)
		}
		return nil, storeError(err)
	}

	s.logger.Info(ctx, "user updated", "user_id", u.ID, "role", u.Role)
	s.events.Publish(ctx, events.Event{Type: events.UserUpdated, UserID: u.ID, Username: u.Username})
	return u, nil
}

// Delete removes account id on behalf of actor. An account can never delete
// itself.
func (s *UserService) Delete(ctx context.Context, actor models.Identity, id int64) error {
	if actor.ID == id {
		return common.ErrSelfDelete
	}

	if err := s.repomanager.Users(s.db).Delete(ctx, id); err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "user delete failed", "user_id", id, "error", err)
		}
		return storeError(err)
	}

	s.logger.Info(ctx, "user deleted", "user_id", id, "actor_id", actor.ID)
	s.events.Publish(ctx, events.Event{Type: events.UserDeleted, UserID: id, ActorID: actor.ID})
	return nil
}
