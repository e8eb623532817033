// Package auth is the identity boundary of surrealdesk.
//
// A [Session] holds the signed-in [Identity] of one client, if any, and runs
// sign-up, sign-in, sign-out, password reset and token refresh against a
// [Backend]. Every identity change is published on the session's change feed
// as an [Event]:
//
//   - [SignedIn] when an identity is adopted,
//   - [SignedOut] when it is dropped, explicitly or because it expired,
//   - [TokenRefreshed] when the same user's tokens are rotated.
//
// Consumers such as the workspace controller subscribe through the
// [Provider] interface and use [Provider.Verify] before trusting the
// identity.
//
// Two backends exist: [github.com/surrealdb/surrealdesk/pkg/auth/localauth]
// keeps users in the relational store and issues its own JWTs, and
// [github.com/surrealdb/surrealdesk/pkg/auth/surrealauth] delegates to
// SurrealDB record access.
package auth
