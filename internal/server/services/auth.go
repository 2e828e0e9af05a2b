// Package services contains server-side business logic. This file implements
// AuthService: login, registration and logout, and the issuing of the two
// identity carriers (server-side session and signed token).
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/dmitrijs2005/cinecritic/internal/server/auth"
	"github.com/dmitrijs2005/cinecritic/internal/server/config"
	"github.com/dmitrijs2005/cinecritic/internal/server/events"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/users"
	"github.com/dmitrijs2005/cinecritic/internal/server/sessions"
)

// Issued is the result of a successful login or registration. Session and
// Token carry the same identity.
type Issued struct {
	User    *models.User
	Session *sessions.Session
	Token   string
}

// Identity returns the claims both carriers hold.
func (i *Issued) Identity() models.Identity {
	return *i.Session.Identity
}

type AuthService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	sessions        sessions.Store
	hasher          auth.PasswordHasher
	events          events.Publisher
	logger          logging.Logger
	jwtSecret       []byte
	tokenValidity   time.Duration
	sessionValidity time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService. A nil publisher disables events.
func NewAuthService(
	db *sql.DB,
	m repomanager.RepositoryManager,
	store sessions.Store,
	hasher auth.PasswordHasher,
	publisher events.Publisher,
	logger logging.Logger,
	cfg *config.Config,
) *AuthService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AuthService{
		db:              db,
		repomanager:     m,
		sessions:        store,
		hasher:          hasher,
		events:          publisher,
		logger:          logger,
		jwtSecret:       []byte(cfg.SecretKey),
		tokenValidity:   cfg.TokenValidityDuration,
		sessionValidity: cfg.SessionValidityDuration,
	}
}

// Login verifies username and password and issues a session and a token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, username, password string) (*Issued, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, common.NewValidationError("username and password are required")
	}

	user, err := s.repomanager.Users(s.db).GetUserByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Error(ctx, "user lookup failed", "error", err)
			return nil, storeError(err)
		}
		// keep the response time of unknown users close to a real check
		s.hasher.Verify(password, s.placeholderHash())
		s.loginFailed(ctx, username, "unknown user")
		return nil, common.ErrInvalidCredentials
	}

	if !auth.VerifyUser(s.hasher, user, password) {
		s.loginFailed(ctx, username, "bad password")
		return nil, common.ErrInvalidCredentials
	}

	issued, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID, "role", user.Role)
	s.events.Publish(ctx, events.Event{Type: events.LoginSucceeded, UserID: user.ID, Username: user.Username})
	return issued, nil
}

// Register validates in, creates the account and issues a session and a
// token. The first account ever created becomes admin.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Issued, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.db)

	if err := ensureAvailable(ctx, repo, in.Username, in.Email); err != nil {
		if !isDomainError(err) {
			s.logger.Error(ctx, "availability check failed", "error", err)
		}
		return nil, storeError(err)
	}

	hash, err := auth.EnsureHashed(s.hasher, in.Password)
	if err != nil {
		return nil, hashError(err)
	}

	// Role is left empty so the store assigns it atomically.
	user, err := repo.Create(ctx, &models.User{Username: in.Username, Email: in.Email, PasswordHash: hash})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error(ctx, "user create failed", "error", err)
		}
		return nil, storeError(err)
	}

	issued, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	s.events.Publish(ctx, events.Event{Type: events.UserRegistered, UserID: user.ID, Username: user.Username})
	return issued, nil
}

// Logout destroys the session. An unknown or empty id is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Warn(ctx, "session lookup failed during logout", "error", err)
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.logger.Error(ctx, "session delete failed", "error", err)
		return common.ErrStoreUnavailable
	}

	if sess.Authenticated() {
		s.events.Publish(ctx, events.Event{Type: events.UserLoggedOut, UserID: sess.Identity.ID, Username: sess.Identity.Username})
	}
	return nil
}

// VerifyToken checks a bearer or cookie token.
func (s *AuthService) VerifyToken(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, s.jwtSecret)
}

// MirrorSession stores a fresh session holding the claims of an already
// verified token. The session never outlives the token, and no new token is
// signed.
func (s *AuthService) MirrorSession(ctx context.Context, claims *auth.Claims) (*sessions.Session, error) {
	identity := claims.Identity()

	sess, err := sessions.New(&identity, s.sessionValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(sess.ExpiresAt) {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, storeError(err)
	}
	return sess, nil
}

// issue is the only place that creates both carriers, so they always carry
// the same identity.
func (s *AuthService) issue(ctx context.Context, user *models.User) (*Issued, error) {
	identity := user.Identity()

	token, err := auth.GenerateToken(identity, s.jwtSecret, s.tokenValidity)
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		return nil, common.ErrorInternal
	}

	sess, err := sessions.New(&identity, s.sessionValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.logger.Error(ctx, "session save failed", "error", err)
		return nil, storeError(err)
	}

	return &Issued{User: user, Session: sess, Token: token}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, username, reason string) {
	s.logger.Info(ctx, "login failed", "username", username, "reason", reason)
	s.events.Publish(ctx, events.Event{Type: events.LoginFailed, Username: username, Reason: reason})
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("placeholder-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// ensureAvailable reports ErrUsernameTaken or ErrEmailTaken before any
// hashing work is done. The store still enforces uniqueness on insert.
func ensureAvailable(ctx context.Context, repo users.Repository, username, email string) error {
	if _, err := repo.GetUserByUsername(ctx, username); err == nil {
		return common.ErrUsernameTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	if _, err := repo.GetUserByEmail(ctx, email); err == nil {
		return common.ErrEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}

var domainErrors = []error{
	common.ErrorNotFound,
	common.ErrUsernameTaken,
	common.ErrEmailTaken,
	common.ErrValidation,
	common.ErrForbidden,
	common.ErrStoreUnavailable,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// storeError passes domain errors through and reduces everything else to
// ErrStoreUnavailable.
func storeError(err error) error {
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

func hashError(err error) error {
	if errors.Is(err, common.ErrValidation) {
		return err
	}
	return common.ErrorInternal
}
