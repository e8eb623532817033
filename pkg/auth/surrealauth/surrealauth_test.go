package surrealauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/auth"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("surreal-side-key"))
	require.NoError(t, err)
	return raw
}

func TestExpiryReadsClaim(t *testing.T) {
	exp := time.Now().Add(15 * time.Minute).Truncate(time.Second)
	token := signedToken(t, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	assert.True(t, exp.Equal(expiry(token)))
	assert.True(t, expiry("not-a-token").IsZero())
}

func TestTokenIDPrefersJTI(t *testing.T) {
	withID := signedToken(t, jwt.RegisteredClaims{ID: "abc"})
	assert.Equal(t, "abc", tokenID(withID))

	withoutID := signedToken(t, jwt.RegisteredClaims{Subject: "x"})
	assert.Len(t, tokenID(withoutID), 64)
	assert.Equal(t, tokenID(withoutID), tokenID(withoutID))
}

func TestSignOutRevokesBeforeVerify(t *testing.T) {
	ctx := context.Background()
	revocations := auth.NewMemoryRevocations()
	b := &Backend{revocations: revocations}

	token := signedToken(t, jwt.RegisteredClaims{ID: "jti-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))})
	require.NoError(t, b.SignOut(ctx, &auth.Identity{AccessToken: token}))

	// Revoked tokens are rejected before the connection is touched.
	_, err := b.Verify(ctx, &auth.Identity{AccessToken: token})
	require.ErrorIs(t, err, auth.ErrSessionExpired)
}
