// Package store defines the remote persistence contract of the workspace.
//
// The [Store] interface is split by entity family so each domain service only
// depends on the part it needs:
//
//   - [DocumentStore]: one row per document, blocks serialized into the row.
//   - [TaskStore]: one row per daily task.
//   - [FinanceStore]: one JSON aggregate per owner, always written whole.
//   - [HealthStore]: one row per protocol and per quit habit.
//
// Implementations live in sub-packages:
//
//   - [github.com/surrealdb/surrealdesk/pkg/store/surrealdb]: SurrealDB over
//     websocket with the surrealcbor codec.
//   - [github.com/surrealdb/surrealdesk/pkg/store/postgres]: GORM over
//     PostgreSQL (or any GORM dialector).
//   - [github.com/surrealdb/surrealdesk/pkg/store/memstore]: in-process maps
//     with fault injection, for development and tests.
//
// [ReadOnlyStore] wraps any of them for maintenance windows.
//
// # Ownership
//
// Rows carry their owner. Reads filter by owner and writes that target a row
// of another owner fail with [ErrNotFound], so one store can serve every
// signed-in user of a server process.
package store
