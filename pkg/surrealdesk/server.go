package surrealdesk

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/surrealdb/surrealdesk/pkg/client"
)

const shutdownTimeout = 5 * time.Second

// Handler returns the HTTP API.
//
// Authentication:
//
//	POST /api/auth/signup                       - create an account and sign in
//	POST /api/auth/signin                       - sign in, waits for the workspace load
//	POST /api/auth/signout                      - end the session
//	POST /api/auth/refresh                      - rotate the identity tokens
//	POST /api/auth/reset-password               - start a password reset
//	POST /api/auth/reset-password/confirm       - finish a password reset
//	GET  /api/auth/me                           - the signed-in user
//
// Workspace (bearer token required):
//
//	GET    /api/workspace                       - snapshot of the whole workspace
//	POST   /api/workspace/reload                - load again from the store
//	POST   /api/documents                       - create a document
//	GET    /api/documents/search?q=             - search titles, content and blocks
//	GET    /api/documents/{id}                  - one document
//	PATCH  /api/documents/{id}                  - update a document
//	DELETE /api/documents/{id}                  - delete a document and its subtree
//	POST   /api/documents/{id}/move             - change the parent
//	POST   /api/documents/{id}/blocks           - add a block
//	PUT    /api/documents/{id}/blocks/order     - reorder blocks
//	PATCH  /api/documents/{id}/blocks/{blockID} - update a block
//	DELETE /api/documents/{id}/blocks/{blockID} - delete a block
//	GET    /api/tasks                           - filter by priority, category, completed
//	POST   /api/tasks                           - create a task
//	PATCH  /api/tasks/{id}                      - update a task
//	DELETE /api/tasks/{id}                      - delete a task
//	POST   /api/tasks/{id}/toggle               - toggle completion
//	GET    /api/finance                         - wallets, transactions, categories, goals, budgets
//	PATCH  /api/finance                         - replace finance sub-collections
//	GET    /api/finance/transactions?from=&to=  - transactions in a date range
//	POST   /api/finance/transactions            - record a transaction
//	DELETE /api/finance/transactions/{id}       - delete a transaction
//	GET    /api/health                          - protocols and habits
//	PATCH  /api/health                          - upsert and delete protocols and habits
//	GET    /api/health/milestones               - milestone progress now
//
// Administration (store key as bearer token):
//
//	GET  /api/admin/read-only
//	POST /api/admin/read-only
//
// Mutations answer 202 with the new or changed id once the change is
// applied in memory. With ?wait=true they answer once it is persisted, with
// 200 or the persistence error.
func (a *App) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(a.logRequests)

	router.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/signup", a.handleSignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", a.handleSignIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", a.authenticated(a.handleSignOut)).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh", a.authenticated(a.handleRefresh)).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset-password", a.handleResetPassword).Methods(http.MethodPost)
	api.HandleFunc("/auth/reset-password/confirm", a.handleConfirmReset).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", a.authenticated(a.handleMe)).Methods(http.MethodGet)

	api.HandleFunc("/workspace", a.authenticated(a.handleGetWorkspace)).Methods(http.MethodGet)
	api.HandleFunc("/workspace/reload", a.authenticated(a.handleReload)).Methods(http.MethodPost)

	api.HandleFunc("/documents", a.authenticated(a.handleCreateDocument)).Methods(http.MethodPost)
	api.HandleFunc("/documents/search", a.authenticated(a.handleSearchDocuments)).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", a.authenticated(a.handleGetDocument)).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", a.authenticated(a.handleUpdateDocument)).Methods(http.MethodPatch)
	api.HandleFunc("/documents/{id}", a.authenticated(a.handleDeleteDocument)).Methods(http.MethodDelete)
	api.HandleFunc("/documents/{id}/move", a.authenticated(a.handleMoveDocument)).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}/blocks", a.authenticated(a.handleAddBlock)).Methods(http.MethodPost)
	api.HandleFunc("/documents/{id}/blocks/order", a.authenticated(a.handleReorderBlocks)).Methods(http.MethodPut)
	api.HandleFunc("/documents/{id}/blocks/{blockID}", a.authenticated(a.handleUpdateBlock)).Methods(http.MethodPatch)
	api.HandleFunc("/documents/{id}/blocks/{blockID}", a.authenticated(a.handleDeleteBlock)).Methods(http.MethodDelete)

	api.HandleFunc("/tasks", a.authenticated(a.handleListTasks)).Methods(http.MethodGet)
	api.HandleFunc("/tasks", a.authenticated(a.handleCreateTask)).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", a.authenticated(a.handleUpdateTask)).Methods(http.MethodPatch)
	api.HandleFunc("/tasks/{id}", a.authenticated(a.handleDeleteTask)).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/toggle", a.authenticated(a.handleToggleTask)).Methods(http.MethodPost)

	api.HandleFunc("/finance", a.authenticated(a.handleGetFinance)).Methods(http.MethodGet)
	api.HandleFunc("/finance", a.authenticated(a.handleUpdateFinance)).Methods(http.MethodPatch)
	api.HandleFunc("/finance/transactions", a.authenticated(a.handleListTransactions)).Methods(http.MethodGet)
	api.HandleFunc("/finance/transactions", a.authenticated(a.handleRecordTransaction)).Methods(http.MethodPost)
	api.HandleFunc("/finance/transactions/{id}", a.authenticated(a.handleDeleteTransaction)).Methods(http.MethodDelete)

	api.HandleFunc("/health", a.authenticated(a.handleGetHealth)).Methods(http.MethodGet)
	api.HandleFunc("/health", a.authenticated(a.handleUpdateHealth)).Methods(http.MethodPatch)
	api.HandleFunc("/health/milestones", a.authenticated(a.handleMilestones)).Methods(http.MethodGet)

	api.HandleFunc("/admin/read-only", a.admin(a.handleGetReadOnly)).Methods(http.MethodGet)
	api.HandleFunc("/admin/read-only", a.admin(a.handleSetReadOnly)).Methods(http.MethodPost)

	return router
}

// Serve listens on the configured address until ctx ends, then shuts down
// gracefully and closes every session.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.config.Addr)
	if err != nil {
		return err
	}
	return a.ServeListener(ctx, ln)
}

func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info().Str("addr", ln.Addr().String()).Msg("starting server")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		a.sessions.closeAll(shutdownCtx)
		return err
	case err := <-serverErr:
		return err
	}
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *clientSession)

func (a *App) authenticated(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := a.sessions.get(getTokenFromHeader(r))
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h(w, r, s)
	}
}

func (a *App) admin(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := getTokenFromHeader(r)
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.config.StoreKey)) != 1 {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		h(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *App) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := a.now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", a.now().Sub(start)).
			Msg("request")
	})
}

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, client.HealthzResponse{
		Status:   "ok",
		ReadOnly: a.IsReadOnly(),
		Sessions: a.sessions.len(),
		Version:  Version,
	})
}

func (a *App) handleGetReadOnly(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, client.ReadOnlyMode{ReadOnly: a.IsReadOnly()})
}

func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	var req client.ReadOnlyMode
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.SetReadOnly(req.ReadOnly)
	respondJSON(w, http.StatusOK, client.ReadOnlyMode{ReadOnly: a.IsReadOnly()})
}
