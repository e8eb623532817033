package store

import (
	"context"
	"errors"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

var (
	// ErrNotFound is returned when an update or delete targets a row the
	// owner does not have.
	ErrNotFound = errors.New("record not found")

	// ErrReadOnly is returned by writes while the store is in maintenance mode.
	ErrReadOnly = errors.New("operation denied: store is in read-only mode")
)

// Store is the remote persistence contract of the workspace.
//
// Every operation is scoped to an owner. List methods return an empty slice,
// never nil, when the owner has no rows. Update methods replace the whole row.
type Store interface {
	DocumentStore
	TaskStore
	FinanceStore
	HealthStore

	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error
	Close() error
}

type DocumentStore interface {
	ListDocuments(ctx context.Context, owner models.UserID) ([]*DocumentRecord, error)
	CreateDocument(ctx context.Context, rec *DocumentRecord) error
	UpdateDocument(ctx context.Context, rec *DocumentRecord) error
	// DeleteDocuments removes all of ids or none of them.
	DeleteDocuments(ctx context.Context, owner models.UserID, ids []models.DocumentID) error
}

type TaskStore interface {
	ListTasks(ctx context.Context, owner models.UserID) ([]*TaskRecord, error)
	CreateTask(ctx context.Context, rec *TaskRecord) error
	UpdateTask(ctx context.Context, rec *TaskRecord) error
	DeleteTask(ctx context.Context, owner models.UserID, id models.TaskID) error
}

// FinanceStore keeps one aggregate per owner.
type FinanceStore interface {
	// GetFinance returns nil without error when the owner has no aggregate yet.
	GetFinance(ctx context.Context, owner models.UserID) (*FinanceRecord, error)
	// SaveFinance inserts or replaces the owner's aggregate.
	SaveFinance(ctx context.Context, rec *FinanceRecord) error
}

// HealthStore keeps protocols and habits as individual rows. Save methods
// insert or replace.
type HealthStore interface {
	ListProtocols(ctx context.Context, owner models.UserID) ([]*ProtocolRecord, error)
	SaveProtocol(ctx context.Context, rec *ProtocolRecord) error
	DeleteProtocol(ctx context.Context, owner models.UserID, id models.ProtocolID) error

	ListHabits(ctx context.Context, owner models.UserID) ([]*HabitRecord, error)
	SaveHabit(ctx context.Context, rec *HabitRecord) error
	DeleteHabit(ctx context.Context, owner models.UserID, id models.HabitID) error
}
