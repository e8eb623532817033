package localauth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/auth"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = token
	return nil
}

func newTestBackend(t *testing.T, opts ...Option) *Backend {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	b, err := New(db, []byte("test-secret"), opts...)
	require.NoError(t, err)
	require.NoError(t, b.Migrate(context.Background()))
	return b
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestSignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	id, err := b.SignUp(ctx, auth.Credentials{Email: " Ada@Example.com", Password: "lovelace1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.NotEmpty(t, id.AccessToken)
	assert.NotEmpty(t, id.RefreshToken)

	_, err = b.SignUp(ctx, auth.Credentials{Email: "ada@example.com", Password: "lovelace1"})
	require.ErrorIs(t, err, auth.ErrEmailTaken)

	_, err = b.SignUp(ctx, auth.Credentials{Email: "bob@example.com", Password: "short"})
	require.ErrorIs(t, err, auth.ErrWeakPassword)

	again, err := b.SignIn(ctx, auth.Credentials{Email: "ada@example.com", Password: "lovelace1"})
	require.NoError(t, err)
	assert.Equal(t, id.UserID, again.UserID)

	_, err = b.SignIn(ctx, auth.Credentials{Email: "ada@example.com", Password: "wrong-pass1"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = b.SignIn(ctx, auth.Credentials{Email: "nobody@example.com", Password: "lovelace1"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	uid, err := b.Verify(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, uid)
}

func TestRefreshRotatesAndRevokes(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	id, err := b.SignUp(ctx, auth.Credentials{Email: "ada@example.com", Password: "lovelace1"})
	require.NoError(t, err)

	next, err := b.Refresh(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, next.UserID)
	assert.NotEqual(t, id.RefreshToken, next.RefreshToken)

	_, err = b.Refresh(ctx, id)
	require.ErrorIs(t, err, auth.ErrSessionExpired, "old refresh token is single use")

	_, err = b.Refresh(ctx, &auth.Identity{RefreshToken: next.AccessToken})
	require.ErrorIs(t, err, auth.ErrSessionExpired, "access token is not a refresh token")
}

func TestSignOutRevokesTokens(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	id, err := b.SignUp(ctx, auth.Credentials{Email: "ada@example.com", Password: "lovelace1"})
	require.NoError(t, err)
	require.NoError(t, b.SignOut(ctx, id))

	_, err = b.Verify(ctx, id)
	require.ErrorIs(t, err, auth.ErrSessionExpired)
	_, err = b.Refresh(ctx, id)
	require.ErrorIs(t, err, auth.ErrSessionExpired)
}

func TestExpiredAccessToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	b := newTestBackend(t, WithClock(func() time.Time { return now }))

	id, err := b.SignUp(ctx, auth.Credentials{Email: "ada@example.com", Password: "lovelace1"})
	require.NoError(t, err)

	now = now.Add(DefaultAccessTTL + time.Minute)
	_, err = b.Verify(ctx, id)
	require.ErrorIs(t, err, auth.ErrSessionExpired)

	next, err := b.Refresh(ctx, id)
	require.NoError(t, err, "refresh token outlives the access token")
	_, err = b.Verify(ctx, next)
	require.NoError(t, err)
}

func TestPasswordReset(t *testing.T) {
	ctx := context.Background()
	mailer := &captureMailer{tokens: map[string]string{}}
	b := newTestBackend(t, WithMailer(mailer))

	_, err := b.SignUp(ctx, auth.Credentials{Email: "ada@example.com", Password: "lovelace1"})
	require.NoError(t, err)

	require.NoError(t, b.ResetPassword(ctx, "nobody@example.com"))
	assert.Empty(t, mailer.tokens)

	require.NoError(t, b.ResetPassword(ctx, "ADA@example.com"))
	token := mailer.tokens["ada@example.com"]
	require.NotEmpty(t, token)

	require.ErrorIs(t, b.ConfirmPasswordReset(ctx, token, "weak"), auth.ErrWeakPassword)
	require.NoError(t, b.ConfirmPasswordReset(ctx, token, "babbage42"))
	require.ErrorIs(t, b.ConfirmPasswordReset(ctx, token, "babbage43"), auth.ErrInvalidResetToken)

	_, err = b.SignIn(ctx, auth.Credentials{Email: "ada@example.com", Password: "lovelace1"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = b.SignIn(ctx, auth.Credentials{Email: "ada@example.com", Password: "babbage42"})
	require.NoError(t, err)
}

func TestSessionOverLocalBackend(t *testing.T) {
	ctx := context.Background()
	s := auth.NewSession(newTestBackend(t))

	id, err := s.SignUp(ctx, "ada@example.com", "lovelace1")
	require.NoError(t, err)

	uid, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, uid)

	require.NoError(t, s.SignOut(ctx))
	_, err = s.Verify(ctx)
	require.ErrorIs(t, err, auth.ErrNotSignedIn)
}
