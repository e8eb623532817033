// Package services maps remote store rows to workspace entities.
//
// There is one service per entity family. Every service follows the same
// contract:
//
//   - GetAll (or Get for the finance aggregate) returns the owner's entities,
//     or an empty collection when the store fails. The failure is logged and
//     never returned.
//   - Create, Update, Save and Delete return nil on success and the store
//     error otherwise. They never panic.
//
// Mapping fills defaults for anything the store returned empty or unknown:
// an "Untitled" title, the default icon, medium priority, text blocks, empty
// collections and the standard quit milestone schedule.
//
// Finance is a single blob per owner while health protocols and habits are
// stored row by row, so [FinanceService] and [HealthService] expose different
// shapes.
package services
