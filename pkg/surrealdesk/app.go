package surrealdesk

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/auth"
	"github.com/surrealdb/surrealdesk/pkg/auth/localauth"
	"github.com/surrealdb/surrealdesk/pkg/auth/surrealauth"
	"github.com/surrealdb/surrealdesk/pkg/services"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"github.com/surrealdb/surrealdesk/pkg/store/memstore"
	"github.com/surrealdb/surrealdesk/pkg/store/postgres"
	surrealstore "github.com/surrealdb/surrealdesk/pkg/store/surrealdb"
	"github.com/surrealdb/surrealdesk/pkg/workspace"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// App is a configured surrealdesk process: the remote store, the identity
// backend and the registry of signed-in sessions.
type App struct {
	config   Config
	log      zerolog.Logger
	now      func() time.Time
	backend  Backend
	base     store.Store
	store    *store.ReadOnlyStore
	services *services.Services
	identity auth.Backend
	local    *localauth.Backend
	sessions *registry
	readOnly atomic.Bool
	closers  []func() error
}

type AppOption func(*appOptions)

type appOptions struct {
	store      store.Store
	identity   auth.Backend
	bcryptCost int
	now        func() time.Time
}

// WithStore replaces the store the URL would select. The identity backend
// is still built from the URL.
func WithStore(s store.Store) AppOption {
	return func(o *appOptions) { o.store = s }
}

// WithIdentityBackend replaces the identity backend the URL would select.
func WithIdentityBackend(b auth.Backend) AppOption {
	return func(o *appOptions) { o.identity = b }
}

// WithBcryptCost sets the password hashing cost of the local identity
// backend.
func WithBcryptCost(cost int) AppOption {
	return func(o *appOptions) { o.bcryptCost = cost }
}

func WithAppClock(now func() time.Time) AppOption {
	return func(o *appOptions) { o.now = now }
}

// NewApp connects the store and identity backend selected by cfg. The
// config must be valid.
func NewApp(ctx context.Context, cfg Config, log zerolog.Logger, opts ...AppOption) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, err := cfg.Backend()
	if err != nil {
		return nil, err
	}
	o := appOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		config:  cfg,
		log:     log,
		now:     o.now,
		backend: kind,
	}
	a.readOnly.Store(cfg.ReadOnly)

	if err := a.connect(ctx, o); err != nil {
		a.Close()
		return nil, err
	}

	a.store = store.NewReadOnlyStore(a.base, a.IsReadOnly)
	a.services = services.New(a.store, log)
	a.sessions = newRegistry(log)

	log.Info().
		Str("backend", string(kind)).
		Str("store", redactURL(cfg.StoreURL)).
		Bool("read_only", cfg.ReadOnly).
		Msg("application ready")
	return a, nil
}

func (a *App) connect(ctx context.Context, o appOptions) error {
	revocations, err := a.revocations(ctx)
	if err != nil {
		return err
	}

	a.base = o.store
	a.identity = o.identity
	if a.base != nil {
		a.closers = append(a.closers, a.base.Close)
	}

	switch a.backend {
	case BackendMemory:
		if a.base == nil {
			a.base = memstore.New()
			a.closers = append(a.closers, a.base.Close)
		}
		if a.identity == nil {
			// Accounts live in a private in-memory SQLite database.
			dsn := fmt.Sprintf("file:surrealdesk-%s?mode=memory&cache=shared", uuid.NewString())
			db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
				Logger: gormlogger.Default.LogMode(gormlogger.Silent),
			})
			if err != nil {
				return fmt.Errorf("failed to open account database: %w", err)
			}
			a.closers = append(a.closers, closeGorm(db))
			if err := a.useLocalAuth(ctx, db, revocations, o.bcryptCost, true); err != nil {
				return err
			}
		}

	case BackendPostgres:
		if a.base == nil {
			pg, err := postgres.NewPostgresStore(a.config.StoreURL)
			if err != nil {
				return err
			}
			a.base = pg
			a.closers = append(a.closers, pg.Close)
		}
		if a.identity == nil {
			pg, ok := a.base.(*postgres.PostgresStore)
			if !ok {
				return errors.New("postgres identity backend needs the postgres store")
			}
			if err := a.useLocalAuth(ctx, pg.DB(), revocations, o.bcryptCost, false); err != nil {
				return err
			}
		}

	case BackendSurreal:
		opts := surrealstore.Options{
			URL:       a.config.StoreURL,
			Namespace: a.config.Namespace,
			Database:  a.config.Database,
			Key:       a.config.StoreKey,
		}
		if a.base == nil {
			s, err := surrealstore.NewSurrealStore(ctx, opts)
			if err != nil {
				return fmt.Errorf("failed to connect to SurrealDB: %w", err)
			}
			a.base = s
			a.closers = append(a.closers, s.Close)
		}
		if a.identity == nil {
			b, err := surrealauth.New(ctx, opts,
				surrealauth.WithRevocations(revocations),
				surrealauth.WithLogger(a.log),
			)
			if err != nil {
				return fmt.Errorf("failed to connect identity backend: %w", err)
			}
			a.closers = append(a.closers, b.Close)
			a.identity = b
		}
	}
	return nil
}

func (a *App) useLocalAuth(ctx context.Context, db *gorm.DB, revocations auth.Revocations, cost int, migrate bool) error {
	opts := []localauth.Option{
		localauth.WithRevocations(revocations),
		localauth.WithLogger(a.log),
		localauth.WithClock(a.now),
	}
	if cost > 0 {
		opts = append(opts, localauth.WithBcryptCost(cost))
	}
	b, err := localauth.New(db, []byte(a.config.StoreKey), opts...)
	if err != nil {
		return err
	}
	if migrate {
		if err := b.Migrate(ctx); err != nil {
			return err
		}
	}
	a.local = b
	a.identity = b
	return nil
}

func (a *App) revocations(ctx context.Context) (auth.Revocations, error) {
	if a.config.RedisURL == "" {
		return auth.NewMemoryRevocations(), nil
	}
	client, err := auth.ConnectRedis(ctx, a.config.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, client.Close)
	a.log.Info().Str("redis", redactURL(a.config.RedisURL)).Msg("token revocations stored in redis")
	return auth.NewRedisRevocations(client), nil
}

func closeGorm(db *gorm.DB) func() error {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}

// Migrate creates or updates the store schema and, for the local identity
// backend, the account tables.
func (a *App) Migrate(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate store: %w", err)
	}
	if a.local != nil {
		if err := a.local.Migrate(ctx); err != nil {
			return err
		}
	}
	a.log.Info().Str("backend", string(a.backend)).Msg("migration complete")
	return nil
}

// Close disposes every session and releases the connections, newest first.
func (a *App) Close() error {
	if a.sessions != nil {
		a.sessions.closeAll(context.Background())
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) IsReadOnly() bool {
	return a.readOnly.Load()
}

// SetReadOnly switches maintenance mode. Writes that are rejected while it
// is on roll back in the workspace that issued them.
func (a *App) SetReadOnly(readOnly bool) {
	if a.readOnly.Swap(readOnly) != readOnly {
		a.log.Info().Bool("read_only", readOnly).Msg("maintenance mode changed")
	}
}

func (a *App) Config() Config {
	return a.config
}

// newSession builds the identity session and workspace controller for one
// signed-in client.
func (a *App) newSession() (*auth.Session, *workspace.Controller) {
	sess := auth.NewSession(a.identity,
		auth.WithLogger(a.log),
		auth.WithClock(a.now),
	)
	ctl := workspace.New(workspace.Services{
		Documents: a.services.Documents,
		Tasks:     a.services.Tasks,
		Finance:   a.services.Finance,
		Health:    a.services.Health,
	}, sess,
		workspace.WithLogger(a.log),
		workspace.WithLoadTimeout(a.config.LoadTimeout),
		workspace.WithWriteTimeout(a.config.WriteTimeout),
		workspace.WithClock(a.now),
	)
	return sess, ctl
}

// redactURL drops credentials from a URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return strings.TrimSuffix(u.String(), "?")
}
