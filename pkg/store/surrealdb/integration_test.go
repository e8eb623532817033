//go:build integration

package surrealdb

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"gorm.io/datatypes"
)

// The live tests read SURREALDB_URL (default ws://localhost:8000) and
// SURREALDB_KEY (default root:root) and work in a fresh database each.
func newLiveStore(t *testing.T) *SurrealStore {
	t.Helper()
	url := os.Getenv("SURREALDB_URL")
	if url == "" {
		url = "ws://localhost:8000"
	}
	key := os.Getenv("SURREALDB_KEY")
	if key == "" {
		key = "root:root"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := NewSurrealStore(ctx, Options{
		URL:       url,
		Namespace: "surrealdesk_test",
		Database:  "t_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Key:       key,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestLiveDocuments(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()
	owner := models.NewUserID()
	now := time.Now().UTC().Truncate(time.Millisecond)

	rec := &store.DocumentRecord{
		ID:        models.NewDocumentID(),
		OwnerID:   owner,
		Title:     "Notes",
		Blocks:    datatypes.JSON(`[]`),
		ChildIDs:  datatypes.JSONSlice[models.DocumentID]{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateDocument(ctx, rec))

	list, err := s.ListDocuments(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Notes", list[0].Title)

	rec.Title = "Journal"
	require.NoError(t, s.UpdateDocument(ctx, rec))

	foreign := *rec
	foreign.OwnerID = models.NewUserID()
	assert.ErrorIs(t, s.UpdateDocument(ctx, &foreign), store.ErrNotFound)

	require.NoError(t, s.DeleteDocuments(ctx, owner, []models.DocumentID{rec.ID}))
	list, err = s.ListDocuments(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLiveFinanceUpsert(t *testing.T) {
	s := newLiveStore(t)
	ctx := context.Background()
	owner := models.NewUserID()

	got, err := s.GetFinance(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, got)

	rec := &store.FinanceRecord{
		ID:        models.FinanceIDFor(owner),
		OwnerID:   owner,
		Data:      datatypes.JSON(`{"wallets":[]}`),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.SaveFinance(ctx, rec))
	require.NoError(t, s.SaveFinance(ctx, rec))

	got, err = s.GetFinance(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"wallets":[]}`, string(got.Data))
}
