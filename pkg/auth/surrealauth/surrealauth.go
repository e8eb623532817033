// Package surrealauth is an identity backend built on SurrealDB record
// access.
//
// Users are records of the "account" table and sign up or sign in through
// the "account" access method defined by the store schema. SurrealDB issues
// and signs the access tokens; Verify presents a token on the backend's own
// connection and reads $auth.id back. Record access tokens cannot be revoked
// server side, so sign-out records the token in an [auth.Revocations] that
// Verify consults.
//
// Password resets run fn::request_password_reset, which leaves a reset
// record for an out-of-band mailer.
package surrealauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdesk/pkg/auth"
	"github.com/surrealdb/surrealdesk/pkg/models"
	surrealstore "github.com/surrealdb/surrealdesk/pkg/store/surrealdb"
)

// Backend implements auth.Backend against SurrealDB.
//
// Every call switches the authentication state of the shared connection, so
// calls are serialized and the connection is invalidated after each one.
type Backend struct {
	mu          sync.Mutex
	db          *surrealdb.DB
	namespace   string
	database    string
	revocations auth.Revocations
	log         zerolog.Logger
}

var _ auth.Backend = (*Backend)(nil)

type Option func(*Backend)

func WithRevocations(r auth.Revocations) Option {
	return func(b *Backend) { b.revocations = r }
}

func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) { b.log = log.With().Str("component", "surrealauth").Logger() }
}

// New opens an anonymous connection for identity calls. opts.Key is
// ignored: record users authenticate with their own tokens.
func New(ctx context.Context, opts surrealstore.Options, options ...Option) (*Backend, error) {
	opts.Key = ""
	db, err := surrealstore.Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	b := &Backend{
		db:          db,
		namespace:   opts.Namespace,
		database:    opts.Database,
		revocations: auth.NewMemoryRevocations(),
		log:         zerolog.Nop(),
	}
	for _, opt := range options {
		opt(b)
	}
	return b, nil
}

func (b *Backend) Close() error {
	return b.db.Close(context.Background())
}

func (b *Backend) credentials(email, password string) map[string]any {
	return map[string]any{
		"NS":       b.namespace,
		"DB":       b.database,
		"AC":       surrealstore.AccessName,
		"email":    email,
		"password": password,
	}
}

func (b *Backend) SignUp(ctx context.Context, creds auth.Credentials) (*auth.Identity, error) {
	email, err := auth.NormalizeEmail(creds.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(creds.Password); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.invalidate(ctx)

	token, err := b.db.SignUp(ctx, b.credentials(email, creds.Password))
	if err != nil {
		if strings.Contains(err.Error(), "already contains") {
			return nil, auth.ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	return b.identify(ctx, email, token)
}

func (b *Backend) SignIn(ctx context.Context, creds auth.Credentials) (*auth.Identity, error) {
	email, err := auth.NormalizeEmail(creds.Email)
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.invalidate(ctx)

	token, err := b.db.SignIn(ctx, b.credentials(email, creds.Password))
	if err != nil {
		b.log.Debug().Err(err).Msg("record sign-in rejected")
		return nil, auth.ErrInvalidCredentials
	}
	return b.identify(ctx, email, token)
}

// identify authenticates with token and builds the identity. b.mu must be
// held.
func (b *Backend) identify(ctx context.Context, email, token string) (*auth.Identity, error) {
	uid, err := b.whoami(ctx, token)
	if err != nil {
		return nil, err
	}
	return &auth.Identity{
		UserID:      uid,
		Email:       email,
		AccessToken: token,
		ExpiresAt:   expiry(token),
	}, nil
}

// whoami returns $auth.id for token. b.mu must be held.
func (b *Backend) whoami(ctx context.Context, token string) (models.UserID, error) {
	if err := b.db.Authenticate(ctx, token); err != nil {
		return models.UserID{}, auth.ErrSessionExpired
	}
	res, err := surrealdb.Query[models.UserID](ctx, b.db, "RETURN $auth.id", nil)
	if err != nil {
		return models.UserID{}, fmt.Errorf("failed to read session: %w", err)
	}
	if res == nil || len(*res) == 0 || (*res)[0].Result.IsZero() {
		return models.UserID{}, auth.ErrSessionExpired
	}
	return (*res)[0].Result, nil
}

func (b *Backend) invalidate(ctx context.Context) {
	if err := b.db.Invalidate(ctx); err != nil {
		b.log.Warn().Err(err).Msg("failed to invalidate connection")
	}
}

func (b *Backend) SignOut(ctx context.Context, id *auth.Identity) error {
	if id.AccessToken == "" {
		return nil
	}
	exp := expiry(id.AccessToken)
	if exp.IsZero() {
		exp = time.Now().Add(24 * time.Hour)
	}
	return b.revocations.Revoke(ctx, tokenID(id.AccessToken), exp)
}

func (b *Backend) ResetPassword(ctx context.Context, email string) error {
	normalized, err := auth.NormalizeEmail(email)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := surrealdb.Query[bool](ctx, b.db, "RETURN fn::request_password_reset($email)",
		map[string]any{"email": normalized}); err != nil {
		return fmt.Errorf("failed to request password reset: %w", err)
	}
	return nil
}

// Refresh re-validates the token. Record access tokens are not rotated, so
// a still valid identity comes back unchanged and an expired one is
// reported as ErrSessionExpired.
func (b *Backend) Refresh(ctx context.Context, id *auth.Identity) (*auth.Identity, error) {
	if _, err := b.Verify(ctx, id); err != nil {
		return nil, err
	}
	return id.Clone(), nil
}

func (b *Backend) Verify(ctx context.Context, id *auth.Identity) (models.UserID, error) {
	revoked, err := b.revocations.IsRevoked(ctx, tokenID(id.AccessToken))
	if err != nil {
		return models.UserID{}, err
	}
	if revoked {
		return models.UserID{}, auth.ErrSessionExpired
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	defer b.invalidate(ctx)

	uid, err := b.whoami(ctx, id.AccessToken)
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			return models.UserID{}, err
		}
		return models.UserID{}, fmt.Errorf("failed to verify session: %w", err)
	}
	return uid, nil
}

// expiry reads the exp claim without checking the signature; SurrealDB
// checks it on Authenticate.
func expiry(token string) time.Time {
	var c jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// tokenID is the jti claim, or a digest of the token when it has none.
func tokenID(token string) string {
	var c jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err == nil && c.ID != "" {
		return c.ID
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
