package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/dmitrijs2005/cinecritic/internal/server/auth"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/sessions"
	"github.com/gin-gonic/gin"
)

// Source names the carrier an identity was resolved from.
type Source string

const (
	SourceNone    Source = ""
	SourceSession Source = "session"
	SourceBearer  Source = "bearer"
	SourceCookie  Source = "cookie"
)

// Resolution is the outcome of resolving a request's identity.
type Resolution struct {
	Identity *models.Identity
	Source   Source
	// Session is the caller's live session, authenticated or not.
	Session *sessions.Session
	// TokenErr is set when a presented token failed verification.
	TokenErr error
}

// TokenVerifier is the part of the auth service the gate depends on.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.Claims, error)
	MirrorSession(ctx context.Context, claims *auth.Claims) (*sessions.Session, error)
}

// returnToTTL bounds the anonymous sessions that only remember a login
// redirect target.
const returnToTTL = 15 * time.Minute

// Gate resolves who is calling and enforces the auth and admin guards.
type Gate struct {
	sessions   sessions.Store
	tokens     TokenVerifier
	cookies    CookieOptions
	sessionTTL time.Duration
	mirror     bool
	logger     logging.Logger
}

func NewGate(store sessions.Store, tokens TokenVerifier, cookies CookieOptions, sessionTTL time.Duration, mirror bool, logger logging.Logger) *Gate {
	return &Gate{
		sessions:   store,
		tokens:     tokens,
		cookies:    cookies,
		sessionTTL: sessionTTL,
		mirror:     mirror,
		logger:     logger,
	}
}

type identityCtxKey struct{}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, identity)
}

// IdentityFromContext returns the identity resolved for the request, if any.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey{}).(models.Identity)
	return identity, ok
}

const resolutionKey = "auth.resolution"

// Resolve tries the session first, then a bearer header or token cookie, and
// otherwise treats the caller as anonymous. Store failures degrade to "no
// session" and a failed cookie token is cleared from the browser.
func (g *Gate) Resolve(c *gin.Context) Resolution {
	ctx := c.Request.Context()
	log := requestLogger(c, g.logger)

	var res Resolution

	if sid := cookieValue(c, common.SessionCookieName); sid != "" {
		sess, err := g.sessions.Get(ctx, sid)
		switch {
		case err == nil:
			res.Session = sess
			if sess.Authenticated() {
				identity := *sess.Identity
				res.Identity, res.Source = &identity, SourceSession
				return res
			}
		case errors.Is(err, common.ErrorNotFound):
		default:
			log.Warn(ctx, "session lookup failed", "error", err)
		}
	}

	token, source := bearerToken(c), SourceBearer
	if token == "" {
		token, source = cookieValue(c, common.TokenCookieName), SourceCookie
	}
	if token == "" {
		return res
	}

	claims, err := g.tokens.VerifyToken(token)
	if err != nil {
		log.Debug(ctx, "token rejected", "source", source, "error", err)
		res.TokenErr = err
		if source == SourceCookie {
			g.cookies.clear(c, common.TokenCookieName)
		}
		return res
	}

	identity := claims.Identity()
	res.Identity, res.Source = &identity, source

	if source == SourceCookie && g.mirror {
		sess, err := g.tokens.MirrorSession(ctx, claims)
		if err != nil {
			log.Warn(ctx, "session mirroring failed", "error", err)
			return res
		}
		res.Session = sess
		g.cookies.setSession(c, sess.ID, sess.ExpiresAt)
	}

	return res
}

// Identify resolves the caller on every request and makes the result
// available to handlers and to IdentityFromContext.
func (g *Gate) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := g.Resolve(c)
		c.Set(resolutionKey, res)
		if res.Identity != nil {
			c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), *res.Identity))
		}
		c.Next()
	}
}

// resolution returns the result stored by Identify, resolving on demand for
// routes mounted without it.
func (g *Gate) resolution(c *gin.Context) Resolution {
	if v, ok := c.Get(resolutionKey); ok {
		if res, ok := v.(Resolution); ok {
			return res
		}
	}
	res := g.Resolve(c)
	c.Set(resolutionKey, res)
	return res
}

// RequireAuth lets identified callers through. Anonymous API callers get 401;
// anonymous page visitors are sent to the login page and brought back after
// signing in.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := g.resolution(c)
		if res.Identity != nil {
			c.Next()
			return
		}
		g.deny(c, res)
	}
}

// RequireAdmin is RequireAuth plus a role check. An identified non-admin gets
// 403, never the login redirect.
func (g *Gate) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := g.resolution(c)
		if res.Identity == nil {
			g.deny(c, res)
			return
		}
		if !res.Identity.IsAdmin() {
			requestLogger(c, g.logger).Info(c.Request.Context(), "admin access denied",
				"user_id", res.Identity.ID, "path", c.Request.URL.Path)
			if wantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
				return
			}
			c.HTML(http.StatusForbidden, "forbidden.html", pageData(c, gin.H{"Title": "Access denied"}))
			c.Abort()
			return
		}
		c.Next()
	}
}

func (g *Gate) deny(c *gin.Context, res Resolution) {
	if wantsJSON(c) {
		msg := "authentication required"
		if res.TokenErr != nil {
			msg = "invalid token"
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
		return
	}

	g.rememberReturnTo(c, res)
	c.Redirect(http.StatusFound, "/login")
	c.Abort()
}

// rememberReturnTo stores the requested page in the caller's session,
// creating an anonymous one when needed.
func (g *Gate) rememberReturnTo(c *gin.Context, res Resolution) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return
	}
	ctx := c.Request.Context()

	sess := res.Session
	if sess == nil {
		var err error
		if sess, err = sessions.New(nil, min(returnToTTL, g.sessionTTL)); err != nil {
			return
		}
	}
	sess.ReturnTo = c.Request.URL.RequestURI()

	if err := g.sessions.Save(ctx, sess); err != nil {
		requestLogger(c, g.logger).Warn(ctx, "could not remember return path", "error", err)
		return
	}
	g.cookies.setSession(c, sess.ID, sess.ExpiresAt)
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader(common.AuthorizationHeaderName)
	if len(h) < len(common.BearerPrefix) || !strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
		return ""
	}
	return strings.TrimSpace(h[len(common.BearerPrefix):])
}

// wantsJSON reports whether the caller is an API client rather than a
// browser page.
func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}

// safeReturnTo accepts only local absolute paths.
func safeReturnTo(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	return p
}
