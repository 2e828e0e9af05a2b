// Package server wires the CineCritic auth server together: storage,
// sessions, audit events, services and the HTTP front end. It also handles
// graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/dmitrijs2005/cinecritic/internal/server/auth"
	"github.com/dmitrijs2005/cinecritic/internal/server/config"
	"github.com/dmitrijs2005/cinecritic/internal/server/events"
	"github.com/dmitrijs2005/cinecritic/internal/server/httpserver"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cinecritic/internal/server/services"
	"github.com/dmitrijs2005/cinecritic/internal/server/sessions"
)

const janitorInterval = 5 * time.Minute

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	sessions sessions.Store
	closers  []io.Closer
	http     *httpserver.Server
}

// NewApp opens the database, applies migrations and builds every component
// named by c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(c.LogLevel, os.Stdout)

	db, rm, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []io.Closer{db}}

	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := app.sessionStore(ctx)
	if err != nil {
		app.close()
		return nil, err
	}
	app.sessions = store

	publisher, err := app.publisher()
	if err != nil {
		app.close()
		return nil, err
	}

	hasher := auth.NewBcryptHasher()
	authService := services.NewAuthService(db, rm, store, hasher, publisher, logger.With("module", "auth"), c)
	userService := services.NewUserService(db, rm, hasher, publisher, logger.With("module", "users"))

	app.http = httpserver.New(httpserver.Deps{
		Auth:     authService,
		Users:    userService,
		Sessions: store,
		DB:       db,
		Logger:   logger,
		Config:   c,
	})

	return app, nil
}

func (app *App) sessionStore(ctx context.Context) (sessions.Store, error) {
	if app.config.SessionStore != config.SessionStoreRedis {
		return sessions.NewMemoryStore(), nil
	}

	client, err := sessions.NewRedisClient(ctx, app.config.RedisAddr, app.config.RedisPassword)
	if err != nil {
		return nil, fmt.Errorf("redis init error: %w", err)
	}
	app.closers = append(app.closers, client)
	return sessions.NewRedisStore(client), nil
}

func (app *App) publisher() (events.Publisher, error) {
	if app.config.NATSURL == "" {
		return events.NopPublisher{}, nil
	}

	p, err := events.NewNATSPublisher(app.config.NATSURL, app.config.NATSSubjectPrefix, app.logger.With("module", "events"))
	if err != nil {
		return nil, fmt.Errorf("nats init error: %w", err)
	}
	app.closers = append(app.closers, p)
	return p, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.http.Run(ctx); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until a shutdown signal arrives or ctx is cancelled, then
// releases every resource.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...",
		"driver", app.config.DatabaseDriver,
		"session_store", app.config.SessionStore,
		"events", app.config.NATSURL != "")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	if mem, ok := app.sessions.(*sessions.MemoryStore); ok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mem.RunJanitor(ctx, janitorInterval)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

// close releases resources in reverse order of acquisition.
func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
