package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/dmitrijs2005/cinecritic/internal/server/auth"
	"github.com/dmitrijs2005/cinecritic/internal/server/config"
	"github.com/dmitrijs2005/cinecritic/internal/server/events"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cinecritic/internal/server/sessions"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func (p *recordingPublisher) last() events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// failingStore is a session store whose backend is down.
type failingStore struct{ err error }

func (f failingStore) Save(context.Context, *sessions.Session) error { return f.err }
func (f failingStore) Get(context.Context, string) (*sessions.Session, error) {
	return nil, f.err
}
func (f failingStore) Delete(context.Context, string) error { return f.err }

type testEnv struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	store  *sessions.MemoryStore
	events *recordingPublisher
	hasher *auth.BcryptHasher
	auth   *AuthService
	users  *UserService
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:               testSecret,
		TokenValidityDuration:   24 * time.Hour,
		SessionValidityDuration: 24 * time.Hour,
	}
}

// newTestEnv wires both services to a private in-memory SQLite database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())

	db, rm, err := repomanager.Open(ctx, repomanager.DriverSQLite, fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, rm.RunMigrations(ctx, db))

	env := &testEnv{
		db:     db,
		rm:     rm,
		store:  sessions.NewMemoryStore(),
		events: &recordingPublisher{},
		hasher: &auth.BcryptHasher{Cost: bcrypt.MinCost},
	}
	env.auth = NewAuthService(db, rm, env.store, env.hasher, env.events, logging.Discard(), testConfig())
	env.users = NewUserService(db, rm, env.hasher, env.events, logging.Discard())
	return env
}

func (e *testEnv) register(t *testing.T, username string) *Issued {
	t.Helper()
	issued, err := e.auth.Register(context.Background(), RegisterInput{
		Username:        username,
		Email:           username + "@example.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	return issued
}
