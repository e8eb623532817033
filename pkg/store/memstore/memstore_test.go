package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
)

func TestOwnerScoping(t *testing.T) {
	ctx := context.Background()
	s := New()
	owner, other := models.NewUserID(), models.NewUserID()

	rec := &store.DocumentRecord{ID: models.NewDocumentID(), OwnerID: owner, Title: "Notes"}
	require.NoError(t, s.CreateDocument(ctx, rec))

	list, err := s.ListDocuments(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)

	foreign := *rec
	foreign.OwnerID = other
	assert.ErrorIs(t, s.UpdateDocument(ctx, &foreign), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocuments(ctx, other, []models.DocumentID{rec.ID}), store.ErrNotFound)
	assert.Equal(t, 1, s.DocumentCount(owner))
}

func TestFaultInjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")
	owner := models.NewUserID()

	s.FailOnce(OpListTasks, boom)
	_, err := s.ListTasks(ctx, owner)
	assert.ErrorIs(t, err, boom)
	_, err = s.ListTasks(ctx, owner)
	assert.NoError(t, err)

	s.FailOn(OpGetFinance, boom)
	for range 2 {
		_, err = s.GetFinance(ctx, owner)
		assert.ErrorIs(t, err, boom)
	}
	s.Reset()
	got, err := s.GetFinance(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 3, s.Calls(OpGetFinance))
}

func TestGateHoldsUntilReleased(t *testing.T) {
	s := New()
	release := s.Gate(OpCreateTask)
	rec := &store.TaskRecord{ID: models.NewTaskID(), OwnerID: models.NewUserID()}

	done := make(chan error, 1)
	go func() { done <- s.CreateTask(context.Background(), rec) }()

	select {
	case <-done:
		t.Fatal("create passed the gate")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	require.NoError(t, <-done)
	_, ok := s.Task(rec.ID)
	assert.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	release = s.Gate(OpCreateTask)
	defer release()
	cancel()
	assert.ErrorIs(t, s.CreateTask(ctx, rec), context.Canceled)
}
