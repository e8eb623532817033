package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func TestSessionFeed(t *testing.T) {
	ctx := context.Background()
	s := NewSession(newFakeBackend())
	rec := &recorder{}
	unsubscribe := s.Subscribe(rec.record)

	assert.Nil(t, s.Current())

	id, err := s.SignUp(ctx, "ada@example.com", "lovelace1")
	require.NoError(t, err)
	assert.Equal(t, id.UserID, s.Current().UserID)

	refreshed, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, refreshed.UserID)
	assert.NotEqual(t, id.AccessToken, refreshed.AccessToken)

	require.NoError(t, s.SignOut(ctx))
	assert.Nil(t, s.Current())

	assert.Equal(t, []EventKind{SignedIn, TokenRefreshed, SignedOut}, rec.kinds())

	unsubscribe()
	unsubscribe()
	_, err = s.SignIn(ctx, "ada@example.com", "lovelace1")
	require.NoError(t, err)
	assert.Len(t, rec.kinds(), 3)
}

func TestSignUpRejectsWeakPassword(t *testing.T) {
	s := NewSession(newFakeBackend())
	_, err := s.SignUp(context.Background(), "ada@example.com", "short")
	require.ErrorIs(t, err, ErrWeakPassword)
	assert.Nil(t, s.Current())
	assert.False(t, s.Loading())
}

func TestVerifyExpiredSessionSignsOut(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := NewSession(backend)
	rec := &recorder{}
	s.Subscribe(rec.record)

	id, err := s.SignUp(ctx, "ada@example.com", "lovelace1")
	require.NoError(t, err)

	uid, err := s.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, id.UserID, uid)

	backend.expire()
	_, err = s.Verify(ctx)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, s.Current())
	assert.Equal(t, []EventKind{SignedIn, SignedOut}, rec.kinds())

	_, err = s.Verify(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)
}

func TestVerifyLocallyExpiredToken(t *testing.T) {
	now := time.Now()
	s := NewSession(newFakeBackend(), WithClock(func() time.Time { return now }))
	id, err := s.SignUp(context.Background(), "ada@example.com", "lovelace1")
	require.NoError(t, err)

	now = id.ExpiresAt.Add(time.Second)
	_, err = s.Verify(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, s.Current())
}

func TestRefreshOfExpiredSessionSignsOut(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	s := NewSession(backend)
	_, err := s.SignUp(ctx, "ada@example.com", "lovelace1")
	require.NoError(t, err)

	backend.expire()
	_, err = s.Refresh(ctx)
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Nil(t, s.Current())
}

func TestAutoRefreshRenewsBeforeExpiry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := NewSession(newFakeBackend())
	rec := &recorder{}
	s.Subscribe(rec.record)

	id, err := s.SignUp(ctx, "ada@example.com", "lovelace1")
	require.NoError(t, err)

	// A lead longer than the token lifetime makes the first tick refresh.
	s.StartAutoRefresh(ctx, 2*time.Hour)
	require.Eventually(t, func() bool {
		return len(rec.kinds()) >= 2
	}, 5*time.Second, 50*time.Millisecond)

	assert.Equal(t, []EventKind{SignedIn, TokenRefreshed}, rec.kinds()[:2])
	assert.NotEqual(t, id.AccessToken, s.Current().AccessToken)
}

func TestConfirmResetUnsupported(t *testing.T) {
	s := NewSession(newFakeBackend())
	require.ErrorIs(t, s.ConfirmPasswordReset(context.Background(), "t", "lovelace2"), ErrUnsupported)
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("abcdefg1"))
	assert.ErrorIs(t, ValidatePassword("abcdefgh"), ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword("12345678"), ErrWeakPassword)
	assert.ErrorIs(t, ValidatePassword("a1"), ErrWeakPassword)
}

func TestNormalizeEmail(t *testing.T) {
	email, err := NormalizeEmail("  Ada@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", email)

	_, err = NormalizeEmail("not an email")
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestMemoryRevocations(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	r := NewMemoryRevocations()
	r.now = func() time.Time { return now }

	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(time.Minute)))
	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Minute)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
