package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/models"
)

// Session holds the identity of one client and publishes its changes.
//
// Subscribers are called synchronously, in subscription order, after the
// session's own state has been updated and without any session lock held.
type Session struct {
	backend Backend
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	identity *Identity
	loading  int

	// emitMu keeps events in the order their state changes happened.
	emitMu  sync.Mutex
	subsMu  sync.Mutex
	subs    []subscriber
	nextSub int
}

type subscriber struct {
	id int
	fn func(Event)
}

var _ Provider = (*Session)(nil)

type SessionOption func(*Session)

func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.log = log.With().Str("component", "session").Logger()
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

func NewSession(backend Backend, opts ...SessionOption) *Session {
	s := &Session{
		backend: backend,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns a copy of the signed-in identity, or nil.
func (s *Session) Current() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity.Clone()
}

// Loading reports whether a backend call is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

func (s *Session) begin() func() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
	}
}

// Subscribe registers fn on the change feed. The returned func removes it
// and may be called more than once.
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subsMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Session) emit(ev Event) {
	s.subsMu.Lock()
	subs := append([]subscriber(nil), s.subs...)
	s.subsMu.Unlock()

	for _, sub := range subs {
		sub.fn(Event{Kind: ev.Kind, Identity: ev.Identity.Clone()})
	}
}

// setIdentity replaces the identity and publishes the matching event.
func (s *Session) setIdentity(next *Identity, kind EventKind) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.identity = next.Clone()
	s.mu.Unlock()

	s.log.Debug().Stringer("event", kind).Msg("identity changed")
	s.emit(Event{Kind: kind, Identity: next})
}

// clear drops the identity if it is still the one the caller saw.
func (s *Session) clear(seen *Identity) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.identity == nil || (seen != nil && s.identity.AccessToken != seen.AccessToken) {
		s.mu.Unlock()
		return
	}
	s.identity = nil
	s.mu.Unlock()

	s.log.Debug().Stringer("event", SignedOut).Msg("identity changed")
	s.emit(Event{Kind: SignedOut})
}

func (s *Session) SignUp(ctx context.Context, email, password string) (*Identity, error) {
	defer s.begin()()
	id, err := s.backend.SignUp(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	s.setIdentity(id, SignedIn)
	return id.Clone(), nil
}

func (s *Session) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	defer s.begin()()
	id, err := s.backend.SignIn(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	s.setIdentity(id, SignedIn)
	return id.Clone(), nil
}

// Adopt installs an identity obtained elsewhere, e.g. restored from a
// stored token, and publishes SignedIn.
func (s *Session) Adopt(id *Identity) {
	s.setIdentity(id, SignedIn)
}

// SignOut drops the identity locally even if the backend call fails, and
// returns that failure.
func (s *Session) SignOut(ctx context.Context) error {
	defer s.begin()()
	cur := s.Current()
	if cur == nil {
		return nil
	}
	err := s.backend.SignOut(ctx, cur)
	if err != nil {
		s.log.Warn().Err(err).Msg("backend sign-out failed")
	}
	s.clear(cur)
	return err
}

func (s *Session) ResetPassword(ctx context.Context, email string) error {
	defer s.begin()()
	return s.backend.ResetPassword(ctx, email)
}

// ConfirmPasswordReset completes a reset when the backend supports it.
func (s *Session) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	confirmer, ok := s.backend.(ResetConfirmer)
	if !ok {
		return ErrUnsupported
	}
	defer s.begin()()
	return confirmer.ConfirmPasswordReset(ctx, token, newPassword)
}

// Refresh rotates the tokens of the current identity. If the backend reports
// the session as expired, the identity is dropped.
func (s *Session) Refresh(ctx context.Context) (*Identity, error) {
	defer s.begin()()
	cur := s.Current()
	if cur == nil {
		return nil, ErrNotSignedIn
	}
	next, err := s.backend.Refresh(ctx, cur)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			s.clear(cur)
		}
		return nil, err
	}

	s.emitMu.Lock()
	s.mu.Lock()
	if s.identity == nil || s.identity.AccessToken != cur.AccessToken {
		// Signed out or replaced while refreshing.
		s.mu.Unlock()
		s.emitMu.Unlock()
		return nil, ErrNotSignedIn
	}
	s.identity = next.Clone()
	s.mu.Unlock()
	s.emit(Event{Kind: TokenRefreshed, Identity: next})
	s.emitMu.Unlock()

	return next.Clone(), nil
}

// Verify confirms the current identity with the backend. An expired
// session is dropped and reported as ErrSessionExpired.
func (s *Session) Verify(ctx context.Context) (models.UserID, error) {
	cur := s.Current()
	if cur == nil {
		return models.UserID{}, ErrNotSignedIn
	}
	if cur.Expired(s.now()) {
		s.clear(cur)
		return models.UserID{}, ErrSessionExpired
	}
	uid, err := s.backend.Verify(ctx, cur)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			s.clear(cur)
		}
		return models.UserID{}, err
	}
	if uid != cur.UserID {
		s.clear(cur)
		return models.UserID{}, ErrSessionExpired
	}
	return uid, nil
}

// StartAutoRefresh refreshes the tokens lead before they expire until ctx
// ends or the session expires.
func (s *Session) StartAutoRefresh(ctx context.Context, lead time.Duration) {
	go func() {
		for {
			wait := lead
			if cur := s.Current(); cur != nil && !cur.ExpiresAt.IsZero() {
				wait = cur.ExpiresAt.Add(-lead).Sub(s.now())
			}
			if wait < time.Second {
				wait = time.Second
			}

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			cur := s.Current()
			if cur == nil || cur.ExpiresAt.IsZero() || s.now().Before(cur.ExpiresAt.Add(-lead)) {
				continue
			}
			if _, err := s.Refresh(ctx); err != nil {
				if errors.Is(err, ErrSessionExpired) {
					s.log.Info().Msg("session expired, auto refresh stopped")
					return
				}
				s.log.Warn().Err(err).Msg("token refresh failed")
			}
		}
	}()
}
