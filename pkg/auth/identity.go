package auth

import (
	"context"
	"time"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// Identity is a signed-in user together with the backend's tokens.
type Identity struct {
	UserID       models.UserID `json:"userId"`
	Email        string        `json:"email"`
	AccessToken  string        `json:"-"`
	RefreshToken string        `json:"-"`
	ExpiresAt    time.Time     `json:"expiresAt"`
}

func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	return &out
}

// Expired reports whether the access token is past its expiry at now. An
// identity without expiry never expires.
func (i *Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
	TokenRefreshed
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	case TokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// Event is one entry of the identity change feed. Identity is nil for
// SignedOut and may be nil for a TokenRefreshed that raced a sign-out.
type Event struct {
	Kind     EventKind
	Identity *Identity
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Backend performs identity operations against an authentication service.
type Backend interface {
	SignUp(ctx context.Context, creds Credentials) (*Identity, error)
	SignIn(ctx context.Context, creds Credentials) (*Identity, error)
	SignOut(ctx context.Context, id *Identity) error
	// ResetPassword starts a reset for email. It succeeds for unknown
	// addresses too.
	ResetPassword(ctx context.Context, email string) error
	Refresh(ctx context.Context, id *Identity) (*Identity, error)
	// Verify checks the identity's access token and returns the user it
	// belongs to. An expired or revoked token yields ErrSessionExpired.
	Verify(ctx context.Context, id *Identity) (models.UserID, error)
}

// ResetConfirmer is implemented by backends that complete password resets
// themselves.
type ResetConfirmer interface {
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// Provider is the read side of a session used by identity consumers.
type Provider interface {
	Current() *Identity
	Verify(ctx context.Context) (models.UserID, error)
	Subscribe(fn func(Event)) (unsubscribe func())
}
