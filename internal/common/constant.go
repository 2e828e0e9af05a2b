package common

// Cookie and header names shared by the HTTP layer and its tests.
const (
	SessionCookieName = "sid"
	TokenCookieName   = "token"

	AuthorizationHeaderName = "Authorization"
	BearerPrefix            = "Bearer "
	RequestIDHeaderName     = "X-Request-ID"
)
