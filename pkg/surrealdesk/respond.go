package surrealdesk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/surrealdb/surrealdesk/pkg/auth"
	"github.com/surrealdb/surrealdesk/pkg/client"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"github.com/surrealdb/surrealdesk/pkg/workspace"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, client.ErrorResponse{Error: message})
}

// respondErr answers with the status err maps to. A workspace failure also
// reports its kind.
func (a *App) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := client.ErrorResponse{Error: err.Error()}

	var f *workspace.Failure
	if errors.As(err, &f) {
		body.Kind = string(f.Kind)
		body.Error = f.Message()
	}
	if status >= http.StatusInternalServerError {
		a.log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	}
	respondJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, workspace.ErrDocumentNotFound),
		errors.Is(err, workspace.ErrBlockNotFound),
		errors.Is(err, workspace.ErrTaskNotFound),
		errors.Is(err, workspace.ErrTransactionNotFound),
		errors.Is(err, workspace.ErrProtocolNotFound),
		errors.Is(err, workspace.ErrHabitNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, workspace.ErrCycle),
		errors.Is(err, workspace.ErrInvalidOrder),
		errors.Is(err, workspace.ErrInvalidBlock),
		errors.Is(err, models.ErrUnknownWallet),
		errors.Is(err, models.ErrInvalidAmount),
		errors.Is(err, models.ErrInvalidDirection),
		errors.Is(err, models.ErrDuplicateTransfer),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrInvalidResetToken):
		return http.StatusBadRequest

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, auth.ErrNotSignedIn),
		errors.Is(err, workspace.ErrUserMismatch),
		errors.Is(err, workspace.ErrDisposed):
		return http.StatusUnauthorized

	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, workspace.ErrNotReady),
		errors.Is(err, workspace.ErrSuperseded):
		return http.StatusConflict

	case errors.Is(err, auth.ErrUnsupported):
		return http.StatusNotImplemented

	case errors.Is(err, store.ErrReadOnly):
		return http.StatusServiceUnavailable

	case errors.Is(err, workspace.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	var f *workspace.Failure
	if errors.As(err, &f) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
