// Package surrealdesk is the surrealdesk server: configuration, the
// command line, and the HTTP API in front of per-session workspace
// controllers.
//
// # Backends
//
// The store URL picks the remote store and the identity backend together:
//
//	ws://, wss://, http://, https://   SurrealDB store, SurrealDB record access
//	postgres://, postgresql://         PostgreSQL store, local accounts in the same database
//	memory://                          in-process store, local accounts in SQLite memory
//
// The store key is required for every backend. SurrealDB uses it to
// authenticate the store connection, the local account backend signs session
// tokens with it.
//
// # Sessions
//
// Signing in creates an [github.com/surrealdb/surrealdesk/pkg/auth.Session] and a
// [github.com/surrealdb/surrealdesk/pkg/workspace.Controller] bound to
// it and hands the client an opaque bearer token. Every request with that
// token talks to the same controller, so optimistic changes of one client
// are visible to its next request before they are persisted.
//
// # Usage
//
//	cfg, err := surrealdesk.LoadConfig("surrealdesk.yaml")
//	if err != nil {
//		return err
//	}
//	app, err := surrealdesk.NewApp(ctx, cfg, log)
//	if err != nil {
//		return err
//	}
//	defer app.Close()
//	return app.Serve(ctx)
package surrealdesk
