// Package httpserver exposes the auth flow over HTTP with gin: login,
// registration and logout pages plus a JSON API, the identity gate, and the
// admin user management screens.
package httpserver

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/dmitrijs2005/cinecritic/internal/server/config"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/services"
	"github.com/dmitrijs2005/cinecritic/internal/server/sessions"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Authenticator is the auth service as seen by the HTTP layer.
type Authenticator interface {
	TokenVerifier
	Login(ctx context.Context, username, password string) (*services.Issued, error)
	Register(ctx context.Context, in services.RegisterInput) (*services.Issued, error)
	Logout(ctx context.Context, sessionID string) error
}

// UserManager is the admin user service as seen by the HTTP layer.
type UserManager interface {
	List(ctx context.Context) ([]*models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, in services.CreateUserInput) (*models.User, error)
	Update(ctx context.Context, id int64, in services.UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, actor models.Identity, id int64) error
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Auth     Authenticator
	Users    UserManager
	Sessions sessions.Store
	DB       Pinger
	Logger   logging.Logger
	Config   *config.Config
}

type Server struct {
	address string
	engine  *gin.Engine
	auth    Authenticator
	users   UserManager
	gate    *Gate
	cookies CookieOptions
	db      Pinger
	logger  logging.Logger
}

var (
	_ Authenticator = (*services.AuthService)(nil)
	_ UserManager   = (*services.UserService)(nil)
)

func New(d Deps) *Server {
	cfg := d.Config
	logger := d.Logger.With("module", "http_server")

	cookies := CookieOptions{
		Secure:        cfg.CookieSecure,
		SessionMaxAge: cfg.SessionValidityDuration,
		TokenMaxAge:   cfg.TokenValidityDuration,
	}

	s := &Server{
		address: cfg.HTTPAddr,
		engine:  gin.New(),
		auth:    d.Auth,
		users:   d.Users,
		gate:    NewGate(d.Sessions, d.Auth, cookies, cfg.SessionValidityDuration, cfg.MirrorTokenSessions, logger),
		cookies: cookies,
		db:      d.DB,
		logger:  logger,
	}
	s.routes(cfg.CORSOrigins)
	return s
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes(corsOrigins []string) {
	r := s.engine
	r.Use(gin.Recovery())
	r.Use(requestContext(s.logger))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	// engine-wide so preflights for unregistered OPTIONS routes are answered
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     corsOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", s.handleHealth)

	r.Use(s.gate.Identify())

	// Pages
	r.GET("/", s.handleHome)
	r.GET("/login", s.handleLoginPage)
	r.POST("/login", s.handleLoginForm)
	r.GET("/register", s.handleRegisterPage)
	r.POST("/register", s.handleRegisterForm)
	r.GET("/logout", s.handleLogout)
	r.POST("/logout", s.handleLogout)
	r.GET("/user/dashboard", s.gate.RequireAuth(), s.handleDashboard)

	admin := r.Group("/admin", s.gate.RequireAdmin())
	{
		admin.GET("", s.handleAdminPage)
		admin.POST("/users", s.handleAdminCreate)
		admin.POST("/users/:id", s.handleAdminUpdate)
		admin.POST("/users/:id/delete", s.handleAdminDelete)
	}

	// API
	api := r.Group("/api")
	{
		api.POST("/auth/login", s.handleAPILogin)
		api.POST("/auth/register", s.handleAPIRegister)
		api.POST("/auth/logout", s.handleLogout)

		api.GET("/users/me", s.gate.RequireAuth(), s.handleAPIMe)

		users := api.Group("/admin/users", s.gate.RequireAdmin())
		users.GET("", s.handleAPIListUsers)
		users.POST("", s.handleAPICreateUser)
		users.PATCH("/:id", s.handleAPIUpdateUser)
		users.DELETE("/:id", s.handleAPIDeleteUser)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "HTTP server shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			requestLogger(c, s.logger).Error(ctx, "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
