package surrealdesk

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/surrealdb/surrealdesk/pkg/auth"
	"github.com/surrealdb/surrealdesk/pkg/client"
	"github.com/surrealdb/surrealdesk/pkg/workspace"
)

// handleSignUp creates an account and opens a session for it.
//
// HTTP Method: POST
// Endpoint: /api/auth/signup
//
// Request body is a client.SignUpRequest. The password must have at least
// eight characters with a letter and a digit. The response is the same as
// for sign-in; the new workspace is empty.
func (a *App) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req client.SignUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.openSession(w, r, func(ctx context.Context, sess *auth.Session) (*auth.Identity, error) {
		return sess.SignUp(ctx, req.Email, req.Password)
	})
}

// handleSignIn authenticates and opens a session.
//
// HTTP Method: POST
// Endpoint: /api/auth/signin
//
// Signing in starts loading the user's workspace. The handler answers once
// the load finished or gave up, so the returned status is usually "ready".
// A load that failed leaves the session open; POST /api/workspace/reload
// retries it.
//
// Response (200 OK): client.AuthResponse with the bearer token for all
// further requests.
//
// Errors:
//   - 400 Bad Request: malformed body
//   - 401 Unauthorized: wrong email or password
func (a *App) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req client.SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.openSession(w, r, func(ctx context.Context, sess *auth.Session) (*auth.Identity, error) {
		return sess.SignIn(ctx, req.Email, req.Password)
	})
}

func (a *App) openSession(w http.ResponseWriter, r *http.Request, signIn func(context.Context, *auth.Session) (*auth.Identity, error)) {
	sess, ctl := a.newSession()
	id, err := signIn(r.Context(), sess)
	if err != nil {
		ctl.Dispose()
		a.respondErr(w, r, err)
		return
	}

	refreshCtx, stop := context.WithCancel(context.Background())
	cs := &clientSession{auth: sess, workspace: ctl, stopRefresh: stop}
	if err := a.sessions.add(cs); err != nil {
		cs.close()
		a.respondErr(w, r, err)
		return
	}
	sess.StartAutoRefresh(refreshCtx, a.config.RefreshLead)

	waitCtx, cancel := context.WithTimeout(r.Context(), a.config.LoadTimeout+time.Second)
	defer cancel()
	if err := ctl.AwaitLoad(waitCtx); err != nil {
		a.log.Warn().Err(err).Stringer("user", id.UserID).Msg("workspace not loaded at sign-in")
	}

	respondJSON(w, http.StatusOK, authResponse(cs.token, id, ctl.Status()))
}

func authResponse(token string, id *auth.Identity, status workspace.Status) client.AuthResponse {
	return client.AuthResponse{
		Token:     token,
		User:      client.User{ID: id.UserID, Email: id.Email},
		ExpiresAt: id.ExpiresAt,
		Status:    status,
	}
}

// handleSignOut writes out pending changes, then ends the identity session
// and discards the workspace.
func (a *App) handleSignOut(w http.ResponseWriter, r *http.Request, s *clientSession) {
	if a.sessions.remove(s.token) == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	defer s.close()

	flushCtx, cancel := context.WithTimeout(r.Context(), a.config.WriteTimeout)
	defer cancel()
	if err := s.workspace.Flush(flushCtx); err != nil {
		a.log.Warn().Err(err).Msg("signing out with writes still pending")
	}
	if err := s.auth.SignOut(r.Context()); err != nil {
		a.log.Warn().Err(err).Msg("identity backend sign-out failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) handleRefresh(w http.ResponseWriter, r *http.Request, s *clientSession) {
	id, err := s.auth.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, auth.ErrSessionExpired) || errors.Is(err, auth.ErrNotSignedIn) {
			if a.sessions.remove(s.token) != nil {
				s.close()
			}
		}
		a.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, authResponse(s.token, id, s.workspace.Status()))
}

// handleMe verifies the identity with the backend before answering, so a
// revoked session fails here.
func (a *App) handleMe(w http.ResponseWriter, r *http.Request, s *clientSession) {
	if _, err := s.auth.Verify(r.Context()); err != nil {
		a.respondErr(w, r, err)
		return
	}
	id := s.auth.Current()
	if id == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondJSON(w, http.StatusOK, client.User{ID: id.UserID, Email: id.Email})
}

// handleResetPassword always answers 202 for well-formed requests, whether
// or not the address has an account.
func (a *App) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req client.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := auth.NewSession(a.identity, auth.WithLogger(a.log), auth.WithClock(a.now))
	if err := sess.ResetPassword(r.Context(), req.Email); err != nil {
		a.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *App) handleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req client.ConfirmResetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess := auth.NewSession(a.identity, auth.WithLogger(a.log), auth.WithClock(a.now))
	if err := sess.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		a.respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
