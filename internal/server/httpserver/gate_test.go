package httpserver

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/dmitrijs2005/cinecritic/internal/server/auth"
	"github.com/dmitrijs2005/cinecritic/internal/server/config"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/sessions"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_SessionIdentity(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")

	rec := ts.get("/api/users/me", withCookie("sid", alice.Session))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "admin", body["role"])
	assert.Equal(t, float64(alice.ID), body["id"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestGate_BearerIdentity(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")

	rec := ts.get("/api/users/me", withBearer(alice.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode(t, rec)["username"])
	assert.Nil(t, findCookie(rec, "sid"), "bearer callers are not given a session")
}

func TestGate_CarriersAgree(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")
	bob := ts.register(t, "bob")

	viaSession := decode(t, ts.get("/api/users/me", withCookie("sid", bob.Session)))
	viaToken := decode(t, ts.get("/api/users/me", withBearer(bob.Token)))
	assert.Equal(t, viaSession, viaToken)
}

func TestGate_StaleTokenCookieIsCleared(t *testing.T) {
	ts := newTestServer(t)

	for name, token := range map[string]string{
		"garbage": "not-a-jwt",
		"expired": expiredToken(t, 42),
	} {
		t.Run(name, func(t *testing.T) {
			rec := ts.get("/", withCookie("token", token))
			require.Equal(t, http.StatusOK, rec.Code)

			cleared := findCookie(rec, "token")
			require.NotNil(t, cleared, "token cookie must be cleared")
			assert.Equal(t, -1, cleared.MaxAge)
			assert.Empty(t, cleared.Value)
			assert.Nil(t, findCookie(rec, "sid"))
		})
	}
}

func TestGate_StaleBearerIsNotACookie(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/api/users/me", withBearer("not-a-jwt"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decode(t, rec)["error"])
	assert.Nil(t, findCookie(rec, "token"))
}

func TestGate_StaleCookieOnProtectedPage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/user/dashboard", withCookie("token", expiredToken(t, 1)))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	cleared := findCookie(rec, "token")
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestGate_CookieTokenIsMirroredIntoSession(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")
	bob := ts.register(t, "bob")

	rec := ts.get("/user/dashboard", withCookie("token", bob.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec, "token"), "mirroring never re-issues the token")

	sid := findCookie(rec, "sid")
	require.NotNil(t, sid)
	assert.NotEqual(t, bob.Session, sid.Value)

	sess, err := ts.store.Get(context.Background(), sid.Value)
	require.NoError(t, err)
	assert.Equal(t, "bob", sess.Identity.Username)

	rec = ts.get("/user/dashboard", withCookie("sid", sid.Value))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bob@example.com")
}

func TestGate_MirroringDisabled(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) { c.MirrorTokenSessions = false })
	alice := ts.register(t, "alice")

	rec := ts.get("/user/dashboard", withCookie("token", alice.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, findCookie(rec, "sid"))
}

func TestRequireAuth_APIvsPage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/api/users/me")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "authentication required", decode(t, rec)["error"])

	rec = ts.get("/user/dashboard", withHeader("Accept", "application/json"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.get("/user/dashboard")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.NotNil(t, findCookie(rec, "sid"), "anonymous session remembers the page")
}

func TestRequireAuth_ReturnToAfterLogin(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "alice")
	ts.register(t, "bob")

	rec := ts.get("/user/dashboard?tab=reviews")
	require.Equal(t, http.StatusFound, rec.Code)
	anon := findCookie(rec, "sid")
	require.NotNil(t, anon)

	rec = ts.postForm("/login", url.Values{"username": {"bob"}, "password": {"secret1"}}, withCookie("sid", anon.Value))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/user/dashboard?tab=reviews", rec.Header().Get("Location"))

	sid := findCookie(rec, "sid")
	require.NotNil(t, sid)
	assert.NotEqual(t, anon.Value, sid.Value, "login starts a fresh session")
	assert.NotNil(t, findCookie(rec, "token"))

	_, err := ts.store.Get(context.Background(), anon.Value)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRequireAuth_AnonymousSessionIsShortLived(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.get("/user/dashboard")
	require.Equal(t, http.StatusFound, rec.Code)
	anon := findCookie(rec, "sid")
	require.NotNil(t, anon)
	assert.LessOrEqual(t, anon.MaxAge, int(returnToTTL/time.Second))

	sess, err := ts.store.Get(context.Background(), anon.Value)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.WithinDuration(t, time.Now().Add(returnToTTL), sess.ExpiresAt, 5*time.Second)

	// a second guarded hit with the same cookie reuses the session
	rec = ts.get("/admin", withCookie("sid", anon.Value))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 1, ts.store.Len())
	sess, err = ts.store.Get(context.Background(), anon.Value)
	require.NoError(t, err)
	assert.Equal(t, "/admin", sess.ReturnTo)
}

func TestLogin_SessionCookieFollowsSessionValidity(t *testing.T) {
	ts := newTestServer(t, func(c *config.Config) {
		c.TokenValidityDuration = time.Hour
		c.SessionValidityDuration = 48 * time.Hour
	})
	ts.register(t, "alice")

	rec := ts.postForm("/login", url.Values{"username": {"alice"}, "password": {"secret1"}})
	require.Equal(t, http.StatusFound, rec.Code)

	sid := findCookie(rec, "sid")
	require.NotNil(t, sid)
	assert.Greater(t, sid.MaxAge, int(time.Hour/time.Second), "sid must outlive the shorter token")
	assert.LessOrEqual(t, sid.MaxAge, int(48*time.Hour/time.Second))

	token := findCookie(rec, "token")
	require.NotNil(t, token)
	assert.Equal(t, int(time.Hour/time.Second), token.MaxAge)
}

func TestRequireAdmin_DistinguishesForbiddenFromAnonymous(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.register(t, "alice")
	bob := ts.register(t, "bob")

	t.Run("anonymous page", func(t *testing.T) {
		rec := ts.get("/admin")
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("anonymous api", func(t *testing.T) {
		rec := ts.get("/api/admin/users")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("user page", func(t *testing.T) {
		rec := ts.get("/admin", withCookie("sid", bob.Session))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
		assert.Contains(t, rec.Body.String(), "Access denied")
	})

	t.Run("user api", func(t *testing.T) {
		rec := ts.get("/api/admin/users", withBearer(bob.Token))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "forbidden", decode(t, rec)["error"])
	})

	t.Run("admin", func(t *testing.T) {
		rec := ts.get("/admin", withCookie("sid", alice.Session))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "bob@example.com")

		rec = ts.get("/api/admin/users", withBearer(alice.Token))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

type fakeVerifier struct {
	mirrored int
}

func (f *fakeVerifier) VerifyToken(token string) (*auth.Claims, error) {
	return auth.ParseToken(token, []byte(testSecret))
}

func (f *fakeVerifier) MirrorSession(_ context.Context, claims *auth.Claims) (*sessions.Session, error) {
	f.mirrored++
	identity := claims.Identity()
	return sessions.New(&identity, time.Hour)
}

type brokenStore struct{}

func (brokenStore) Save(context.Context, *sessions.Session) error { return common.ErrStoreUnavailable }
func (brokenStore) Get(context.Context, string) (*sessions.Session, error) {
	return nil, common.ErrStoreUnavailable
}
func (brokenStore) Delete(context.Context, string) error { return common.ErrStoreUnavailable }

func gateEngine(g *Gate) *gin.Engine {
	r := gin.New()
	r.Use(g.Identify())
	r.GET("/whoami", func(c *gin.Context) {
		identity, ok := IdentityFromContext(c.Request.Context())
		if !ok {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, strconv.FormatInt(identity.ID, 10))
	})
	return r
}

func TestGate_StoreFailureFallsBackToToken(t *testing.T) {
	verifier := &fakeVerifier{}
	g := NewGate(brokenStore{}, verifier, CookieOptions{SessionMaxAge: time.Hour, TokenMaxAge: time.Hour}, time.Hour, true, logging.Discard())
	r := gateEngine(g)

	token, err := auth.GenerateToken(models.Identity{ID: 9, Username: "zed", Role: models.RoleUser}, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	ts := &testServer{srv: &Server{engine: r}}

	rec := ts.get("/whoami", withCookie("sid", "whatever"), withBearer(token))
	assert.Equal(t, "9", rec.Body.String())

	rec = ts.get("/whoami", withCookie("sid", "whatever"))
	assert.Equal(t, "anonymous", rec.Body.String())
	assert.Zero(t, verifier.mirrored)
}

func TestGate_BearerWinsOverCookie(t *testing.T) {
	verifier := &fakeVerifier{}
	g := NewGate(sessions.NewMemoryStore(), verifier, CookieOptions{SessionMaxAge: time.Hour, TokenMaxAge: time.Hour}, time.Hour, true, logging.Discard())
	ts := &testServer{srv: &Server{engine: gateEngine(g)}}

	header, err := auth.GenerateToken(models.Identity{ID: 1, Role: models.RoleUser}, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	cookie, err := auth.GenerateToken(models.Identity{ID: 2, Role: models.RoleUser}, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	rec := ts.get("/whoami", withBearer(header), withCookie("token", cookie))
	assert.Equal(t, "1", rec.Body.String())
	assert.Zero(t, verifier.mirrored, "bearer tokens are never mirrored")

	rec = ts.get("/whoami", withCookie("token", cookie))
	assert.Equal(t, "2", rec.Body.String())
	assert.Equal(t, 1, verifier.mirrored)
}

func TestIdentityFromContext_Empty(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), models.Identity{ID: 5})
	identity, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(5), identity.ID)
}

func TestSafeReturnTo(t *testing.T) {
	assert.Equal(t, "/user/dashboard?x=1", safeReturnTo("/user/dashboard?x=1"))
	assert.Empty(t, safeReturnTo("//evil.example"))
	assert.Empty(t, safeReturnTo("/\\evil.example"))
	assert.Empty(t, safeReturnTo("https://evil.example"))
	assert.Empty(t, safeReturnTo(""))
}
