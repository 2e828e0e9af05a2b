// Package useradmin implements the operator CLI for managing accounts
// directly against the server's database: create, list and delete.
package useradmin

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dmitrijs2005/cinecritic/internal/logging"
	"github.com/dmitrijs2005/cinecritic/internal/server/auth"
	"github.com/dmitrijs2005/cinecritic/internal/server/config"
	"github.com/dmitrijs2005/cinecritic/internal/server/models"
	"github.com/dmitrijs2005/cinecritic/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cinecritic/internal/server/services"
)

// Users is the account management the CLI needs.
type Users interface {
	List(ctx context.Context) ([]*models.User, error)
	Create(ctx context.Context, in services.CreateUserInput) (*models.User, error)
	Delete(ctx context.Context, actor models.Identity, id int64) error
}

type App struct {
	users   Users
	in      *bufio.Reader
	out     io.Writer
	stdinFd int
}

// NewApp wires the CLI to the same database as the server. The returned
// *sql.DB must be closed by the caller.
func NewApp(ctx context.Context, c *config.Config) (*App, *sql.DB, error) {
	db, rm, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}

	us := services.NewUserService(db, rm, auth.NewBcryptHasher(), nil, logging.Discard())
	return &App{users: us, in: bufio.NewReader(os.Stdin), out: os.Stdout, stdinFd: int(os.Stdin.Fd())}, db, nil
}

// ErrUsage is returned for an unknown command or bad flags.
var ErrUsage = errors.New("usage: useradmin [-c config.json] [-b driver -d dsn] create|list|delete [flags]")

// Commands lists the subcommands Run accepts.
var Commands = []string{"create", "list", "delete"}

// Run executes the command named by args[0] with the remaining args as its
// flags.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return ErrUsage
	}

	switch args[0] {
	case "create":
		return a.create(ctx, args[1:])
	case "list":
		return a.list(ctx)
	case "delete":
		return a.delete(ctx, args[1:])
	default:
		return ErrUsage
	}
}

func (a *App) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(a.out)
	username := fs.String("username", "", "account name")
	email := fs.String("email", "", "email address")
	role := fs.String("role", string(models.RoleUser), "user or admin")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	password, err := a.getPassword("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	confirm, err := a.getPassword("Repeat password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	u, err := a.users.Create(ctx, services.CreateUserInput{
		Username: *username,
		Email:    *email,
		Password: password,
		Role:     models.Role(*role),
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(a.out, "created user %d (%s, %s)\n", u.ID, u.Username, u.Role)
	return err
}

func (a *App) list(ctx context.Context) error {
	list, err := a.users.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE\tCREATED")
	for _, u := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Role, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (a *App) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.SetOutput(a.out)
	id := fs.Int64("id", 0, "account id")
	if err := fs.Parse(args); err != nil || *id <= 0 {
		return ErrUsage
	}

	// the operator has no account of their own, so the self-delete guard
	// never triggers here
	if err := a.users.Delete(ctx, models.Identity{}, *id); err != nil {
		return err
	}

	_, err := fmt.Fprintln(a.out, "deleted user "+strconv.FormatInt(*id, 10))
	return err
}
