// Package localauth is an identity backend that keeps users in the
// relational store.
//
// Passwords are hashed with bcrypt. Sessions are pairs of HS256 JWTs signed
// with the store key: a short-lived access token and a refresh token that is
// rotated on every refresh. Sign-out and rotation revoke token ids through an
// [auth.Revocations], so a revoked token fails Verify and Refresh even before
// it expires.
//
// Password resets issue a random token, store only its SHA-256 hash and hand
// the raw token to a [Mailer]. A token is valid for an hour and can be used
// once.
package localauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/auth"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultResetTTL   = time.Hour

	issuer = "surrealdesk"

	kindAccess  = "access"
	kindRefresh = "refresh"
)

// User is a local account.
type User struct {
	ID           models.UserID `gorm:"primaryKey"`
	Email        string        `gorm:"uniqueIndex;not null"`
	PasswordHash string        `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (User) TableName() string { return "users" }

// ResetToken is a pending password reset. Only the token hash is stored.
type ResetToken struct {
	ID        uint          `gorm:"primaryKey"`
	UserID    models.UserID `gorm:"index;not null"`
	TokenHash string        `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (ResetToken) TableName() string { return "password_reset_tokens" }

// Mailer delivers password reset tokens.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes reset tokens to the log. For development only.
type LogMailer struct {
	Log zerolog.Logger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.Log.Info().Str("email", email).Str("token", token).Msg("password reset requested")
	return nil
}

type claims struct {
	Email string `json:"email"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

// Backend implements auth.Backend over GORM.
type Backend struct {
	db          *gorm.DB
	secret      []byte
	revocations auth.Revocations
	mailer      Mailer
	log         zerolog.Logger
	now         func() time.Time
	bcryptCost  int

	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
}

var (
	_ auth.Backend        = (*Backend)(nil)
	_ auth.ResetConfirmer = (*Backend)(nil)
)

type Option func(*Backend)

func WithRevocations(r auth.Revocations) Option {
	return func(b *Backend) { b.revocations = r }
}

func WithMailer(m Mailer) Option {
	return func(b *Backend) { b.mailer = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) { b.log = log.With().Str("component", "localauth").Logger() }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func WithTTLs(access, refresh time.Duration) Option {
	return func(b *Backend) {
		b.accessTTL = access
		b.refreshTTL = refresh
	}
}

// WithBcryptCost lowers the hashing cost, e.g. in tests.
func WithBcryptCost(cost int) Option {
	return func(b *Backend) { b.bcryptCost = cost }
}

// New creates a backend signing tokens with secret.
func New(db *gorm.DB, secret []byte, opts ...Option) (*Backend, error) {
	if len(secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	b := &Backend{
		db:          db,
		secret:      secret,
		revocations: auth.NewMemoryRevocations(),
		log:         zerolog.Nop(),
		now:         time.Now,
		bcryptCost:  bcrypt.DefaultCost,
		accessTTL:   DefaultAccessTTL,
		refreshTTL:  DefaultRefreshTTL,
		resetTTL:    DefaultResetTTL,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.mailer == nil {
		b.mailer = LogMailer{Log: b.log}
	}
	return b, nil
}

// Migrate creates the users and reset token tables.
func (b *Backend) Migrate(ctx context.Context) error {
	if err := b.db.WithContext(ctx).AutoMigrate(&User{}, &ResetToken{}); err != nil {
		return fmt.Errorf("failed to migrate auth tables: %w", err)
	}
	return nil
}

func (b *Backend) SignUp(ctx context.Context, creds auth.Credentials) (*auth.Identity, error) {
	email, err := auth.NormalizeEmail(creds.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(creds.Password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), b.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := b.now().UTC()
	user := User{ID: models.NewUserID(), Email: email, PasswordHash: string(hash), CreatedAt: now, UpdatedAt: now}
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return auth.ErrEmailTaken
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		if errors.Is(err, auth.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return b.issue(user.ID, user.Email)
}

func (b *Backend) SignIn(ctx context.Context, creds auth.Credentials) (*auth.Identity, error) {
	email, err := auth.NormalizeEmail(creds.Email)
	if err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	var user User
	if err := b.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, auth.ErrInvalidCredentials
	}
	return b.issue(user.ID, user.Email)
}

// SignOut revokes both tokens of the identity.
func (b *Backend) SignOut(ctx context.Context, id *auth.Identity) error {
	for _, raw := range []string{id.AccessToken, id.RefreshToken} {
		c, err := b.parse(raw, "")
		if err != nil {
			continue
		}
		if err := b.revocations.Revoke(ctx, c.ID, c.ExpiresAt.Time); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) Refresh(ctx context.Context, id *auth.Identity) (*auth.Identity, error) {
	c, err := b.parse(id.RefreshToken, kindRefresh)
	if err != nil {
		return nil, auth.ErrSessionExpired
	}
	if err := b.checkRevoked(ctx, c); err != nil {
		return nil, err
	}
	if err := b.revocations.Revoke(ctx, c.ID, c.ExpiresAt.Time); err != nil {
		return nil, err
	}
	uid, err := models.ParseUserID(c.Subject)
	if err != nil {
		return nil, auth.ErrSessionExpired
	}
	return b.issue(uid, c.Email)
}

func (b *Backend) Verify(ctx context.Context, id *auth.Identity) (models.UserID, error) {
	c, err := b.parse(id.AccessToken, kindAccess)
	if err != nil {
		return models.UserID{}, auth.ErrSessionExpired
	}
	if err := b.checkRevoked(ctx, c); err != nil {
		return models.UserID{}, err
	}
	uid, err := models.ParseUserID(c.Subject)
	if err != nil {
		return models.UserID{}, auth.ErrSessionExpired
	}
	return uid, nil
}

// ResetPassword mails a reset token if the address belongs to a user. It
// reports success either way.
func (b *Backend) ResetPassword(ctx context.Context, email string) error {
	normalized, err := auth.NormalizeEmail(email)
	if err != nil {
		return err
	}
	var user User
	if err := b.db.WithContext(ctx).Where("email = ?", normalized).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	raw, err := randomHex(32)
	if err != nil {
		return err
	}
	now := b.now().UTC()
	tok := ResetToken{UserID: user.ID, TokenHash: hashToken(raw), ExpiresAt: now.Add(b.resetTTL), CreatedAt: now}
	if err := b.db.WithContext(ctx).Create(&tok).Error; err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return b.mailer.SendPasswordReset(ctx, user.Email, raw)
}

// ConfirmPasswordReset consumes a reset token and sets the new password.
func (b *Backend) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), b.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	now := b.now().UTC()
	tokenHash := hashToken(token)
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ResetToken{}).
			Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", tokenHash, now).
			Update("used_at", now)
		if res.Error != nil {
			return fmt.Errorf("failed to consume reset token: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return auth.ErrInvalidResetToken
		}

		var tok ResetToken
		if err := tx.Where("token_hash = ?", tokenHash).First(&tok).Error; err != nil {
			return fmt.Errorf("failed to get reset token: %w", err)
		}
		if err := tx.Model(&User{}).Where("id = ?", tok.UserID).
			Updates(map[string]any{"password_hash": string(hash), "updated_at": now}).Error; err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		return nil
	})
}

func (b *Backend) issue(uid models.UserID, email string) (*auth.Identity, error) {
	now := b.now()
	access, accessExp, err := b.sign(uid, email, kindAccess, now, b.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, _, err := b.sign(uid, email, kindRefresh, now, b.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &auth.Identity{
		UserID:       uid,
		Email:        email,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExp,
	}, nil
}

func (b *Backend) sign(uid models.UserID, email, kind string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   uid.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString(b.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, exp, nil
}

// parse validates raw and, when kind is set, that it is that kind of token.
func (b *Backend) parse(raw, kind string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(token *jwt.Token) (any, error) {
		return b.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(b.now),
	)
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if kind != "" && c.Kind != kind {
		return nil, fmt.Errorf("expected %s token, got %s", kind, c.Kind)
	}
	return c, nil
}

func (b *Backend) checkRevoked(ctx context.Context, c *claims) error {
	revoked, err := b.revocations.IsRevoked(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return auth.ErrSessionExpired
	}
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
