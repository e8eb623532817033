// Package workspace holds the in-memory workspace of one signed-in user and
// reconciles it with the remote store.
//
// # Optimistic writes
//
// Every mutator applies its change to memory before returning, so readers
// see it at once, and queues the matching remote write. The returned
// [Pending] resolves when the write has been persisted or rolled back.
//
// Writes are serialized per entity: a write waits for every earlier write
// that touches any of the same documents, tasks, protocols, habits or the
// finance aggregate. A queued write sends the entity as it is when the write
// starts, not as it was when it was queued.
//
// For each entity the controller remembers the last state the store
// accepted. When a write fails, every entity it touched returns to that
// state (an entity the store never accepted is removed), parent and child
// links are re-derived, and the failure lands in the error slot. The single
// exception is document deletion, which waits for the store before anything
// disappears from memory.
//
// # Loading
//
// [Controller.LoadForUser] verifies the identity with the [github.com/surrealdb/surrealdesk/pkg/auth.Provider]
// before admitting any data, then fetches all collections in parallel. A
// collection that cannot be fetched comes back empty. Every load and every
// user change advances a generation counter; results and writes belonging
// to an older generation are dropped.
//
// The controller follows the provider's change feed: a different user
// signing in clears the workspace and loads theirs, signing out clears it,
// and token refreshes for the current user are ignored.
package workspace
