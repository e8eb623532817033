package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// fakeBackend issues opaque tokens and can be told to expire them.
type fakeBackend struct {
	mu      sync.Mutex
	users   map[string]models.UserID
	serial  int
	expired bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{users: map[string]models.UserID{}}
}

func (f *fakeBackend) issue(email string, uid models.UserID) *Identity {
	f.serial++
	return &Identity{
		UserID:       uid,
		Email:        email,
		AccessToken:  fmt.Sprintf("access-%d", f.serial),
		RefreshToken: fmt.Sprintf("refresh-%d", f.serial),
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func (f *fakeBackend) SignUp(_ context.Context, c Credentials) (*Identity, error) {
	if err := ValidatePassword(c.Password); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[c.Email]; ok {
		return nil, ErrEmailTaken
	}
	uid := models.NewUserID()
	f.users[c.Email] = uid
	return f.issue(c.Email, uid), nil
}

func (f *fakeBackend) SignIn(_ context.Context, c Credentials) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.users[c.Email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return f.issue(c.Email, uid), nil
}

func (f *fakeBackend) SignOut(context.Context, *Identity) error { return nil }

func (f *fakeBackend) ResetPassword(context.Context, string) error { return nil }

func (f *fakeBackend) Refresh(_ context.Context, id *Identity) (*Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired {
		return nil, ErrSessionExpired
	}
	return f.issue(id.Email, id.UserID), nil
}

func (f *fakeBackend) Verify(_ context.Context, id *Identity) (models.UserID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expired {
		return models.UserID{}, ErrSessionExpired
	}
	return id.UserID, nil
}

func (f *fakeBackend) expire() {
	f.mu.Lock()
	f.expired = true
	f.mu.Unlock()
}
