package surrealdesk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/auth"
	"github.com/surrealdb/surrealdesk/pkg/workspace"
)

// clientSession is everything the server keeps for one bearer token.
type clientSession struct {
	token       string
	auth        *auth.Session
	workspace   *workspace.Controller
	stopRefresh context.CancelFunc
}

func (s *clientSession) close() {
	s.stopRefresh()
	s.workspace.Dispose()
}

// registry maps bearer tokens to sessions. The tokens are opaque to the
// client and never leave the server in any other form.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*clientSession
	log      zerolog.Logger
}

func newRegistry(log zerolog.Logger) *registry {
	return &registry{
		sessions: make(map[string]*clientSession),
		log:      log.With().Str("component", "sessions").Logger(),
	}
}

// generateToken returns 32 random bytes as hex.
func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (r *registry) add(s *clientSession) error {
	token, err := generateToken()
	if err != nil {
		return err
	}
	s.token = token

	r.mu.Lock()
	r.sessions[token] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.log.Debug().Int("sessions", n).Msg("session opened")
	return nil
}

// get returns the live session for token. A session whose identity is gone,
// e.g. after its refresh token expired, is closed and dropped.
func (r *registry) get(token string) (*clientSession, bool) {
	if token == "" {
		return nil, false
	}
	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.auth.Current() == nil {
		if r.remove(token) != nil {
			s.close()
			r.log.Debug().Msg("dropped session without identity")
		}
		return nil, false
	}
	return s, true
}

// remove takes the session out of the registry without closing it. Only
// the caller that got it back closes it.
func (r *registry) remove(token string) *clientSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[token]
	if !ok {
		return nil
	}
	delete(r.sessions, token)
	return s
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// closeAll flushes pending writes of every session and closes it.
func (r *registry) closeAll(ctx context.Context) {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*clientSession)
	r.mu.Unlock()

	for _, s := range all {
		if err := s.workspace.Flush(ctx); err != nil {
			r.log.Warn().Err(err).Msg("pending writes not flushed before shutdown")
		}
		s.close()
	}
}

func getTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}
