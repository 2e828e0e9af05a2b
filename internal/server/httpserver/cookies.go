package httpserver

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/common"
	"github.com/gin-gonic/gin"
)

// CookieOptions controls how the auth cookies are issued. The sid cookie
// lives no longer than SessionMaxAge and the token cookie for TokenMaxAge.
type CookieOptions struct {
	Secure        bool
	SessionMaxAge time.Duration
	TokenMaxAge   time.Duration
}

func (o CookieOptions) set(c *gin.Context, name, value string, maxAge time.Duration) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (o CookieOptions) clear(c *gin.Context, name string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (o CookieOptions) setSession(c *gin.Context, id string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl > o.SessionMaxAge {
		ttl = o.SessionMaxAge
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	o.set(c, common.SessionCookieName, id, ttl)
}

func (o CookieOptions) setToken(c *gin.Context, token string) {
	o.set(c, common.TokenCookieName, token, o.TokenMaxAge)
}

func (o CookieOptions) clearAll(c *gin.Context) {
	o.clear(c, common.SessionCookieName)
	o.clear(c, common.TokenCookieName)
}

func cookieValue(c *gin.Context, name string) string {
	v, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}
