// Package sessions stores server-side browser sessions. A session either
// carries an authenticated identity or, for an anonymous visitor, only the
// path they should be sent back to after logging in.
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
)

// idBytes is the amount of randomness in a session id.
const idBytes = 32

// Session is a server-side session record. Expiry is absolute.
type Session struct {
	ID        string           `json:"id"`
	Identity  *models.Identity `json:"identity,omitempty"`
	ReturnTo  string           `json:"return_to,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// New returns a session with a fresh id that expires ttl from now.
func New(identity *models.Identity, ttl time.Duration) (*Session, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Session{ID: id, Identity: identity, CreatedAt: now, ExpiresAt: now.Add(ttl)}, nil
}

// NewID returns a random hex session id.
func NewID() (string, error) {
	return common.MakeRandHexString(idBytes)
}

// Authenticated reports whether the session carries an identity.
func (s *Session) Authenticated() bool {
	return s != nil && s.Identity != nil
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

var (
	ErrMissingID = errors.New("session: missing id")
	ErrExpired   = errors.New("session: expires_at must be in the future")
)

// Store persists sessions. Get returns common.ErrorNotFound for unknown or
// expired ids; Delete of an unknown id is not an error.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

func validate(s *Session, now time.Time) error {
	if s == nil || s.ID == "" {
		return ErrMissingID
	}
	if s.Expired(now) {
		return ErrExpired
	}
	return nil
}
