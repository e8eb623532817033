// Package models defines the workspace entities shared by the store, service
// and controller layers.
//
// # Entities
//
//   - [Document]: a page in a forest of pages. A document's ParentID and its
//     parent's ChildIDs always agree, and documents without a parent form the
//     root set.
//   - [Block]: a typed unit of content inside a document, positioned by Order.
//   - [DailyTask]: a repeating task with a completion streak.
//   - [FinanceData]: wallets, transactions, categories, goals and budgets. The
//     aggregate is stored as a single blob per user.
//   - [HealthProtocol] and [QuitHabit]: stored one row per entity, with
//     milestones evaluated against the clock by [MilestoneProgress].
//
// # Identifiers
//
// Every entity is keyed by a typed UUID ([DocumentID], [TaskID] and so on).
// The typed IDs marshal to strings for JSON and SQL and to SurrealDB RecordIDs
// for the SurrealDB backend, so the same structs travel through every layer.
package models
