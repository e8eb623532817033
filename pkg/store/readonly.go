package store

import (
	"context"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects writes while isReadOnly reports
// true. Reads always pass through.
//
// It backs the maintenance mode of the server: the switch can be flipped at
// runtime without recreating the store, and rejected writes surface to the
// workspace controller like any other persistence failure, so optimistic
// changes are rolled back.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a new read-only wrapper for a store
func NewReadOnlyStore(store Store, isReadOnly func() bool) *ReadOnlyStore {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the underlying store
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) checkReadOnly() error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return nil
}

func (r *ReadOnlyStore) CreateDocument(ctx context.Context, rec *DocumentRecord) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreateDocument(ctx, rec)
}

func (r *ReadOnlyStore) UpdateDocument(ctx context.Context, rec *DocumentRecord) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateDocument(ctx, rec)
}

func (r *ReadOnlyStore) DeleteDocuments(ctx context.Context, owner models.UserID, ids []models.DocumentID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteDocuments(ctx, owner, ids)
}

func (r *ReadOnlyStore) CreateTask(ctx context.Context, rec *TaskRecord) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.CreateTask(ctx, rec)
}

func (r *ReadOnlyStore) UpdateTask(ctx context.Context, rec *TaskRecord) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.UpdateTask(ctx, rec)
}

func (r *ReadOnlyStore) DeleteTask(ctx context.Context, owner models.UserID, id models.TaskID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteTask(ctx, owner, id)
}

func (r *ReadOnlyStore) SaveFinance(ctx context.Context, rec *FinanceRecord) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.SaveFinance(ctx, rec)
}

func (r *ReadOnlyStore) SaveProtocol(ctx context.Context, rec *ProtocolRecord) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.SaveProtocol(ctx, rec)
}

func (r *ReadOnlyStore) DeleteProtocol(ctx context.Context, owner models.UserID, id models.ProtocolID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteProtocol(ctx, owner, id)
}

func (r *ReadOnlyStore) SaveHabit(ctx context.Context, rec *HabitRecord) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.SaveHabit(ctx, rec)
}

func (r *ReadOnlyStore) DeleteHabit(ctx context.Context, owner models.UserID, id models.HabitID) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.DeleteHabit(ctx, owner, id)
}

// Migrate is a schema write and is rejected in read-only mode as well.
func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if err := r.checkReadOnly(); err != nil {
		return err
	}
	return r.Store.Migrate(ctx)
}
