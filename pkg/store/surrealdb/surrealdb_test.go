package surrealdb

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"gorm.io/datatypes"
)

func TestDocumentRowKeepsRecord(t *testing.T) {
	parent := models.NewDocumentID()
	local := time.FixedZone("CET", 3600)
	rec := &store.DocumentRecord{
		ID:        models.NewDocumentID(),
		OwnerID:   models.NewUserID(),
		Title:     "Notes",
		Blocks:    datatypes.JSON(`[{"kind":"text"}]`),
		ParentID:  &parent,
		ChildIDs:  datatypes.JSONSlice[models.DocumentID]{models.NewDocumentID()},
		CreatedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, local),
		UpdatedAt: time.Date(2026, 5, 1, 11, 0, 0, 0, local),
	}

	row := toDocumentRow(rec)
	assert.Equal(t, time.UTC, row.CreatedAt.Location())

	back := row.record()
	assert.Equal(t, rec.ID, back.ID)
	assert.Equal(t, rec.OwnerID, back.OwnerID)
	assert.Equal(t, parent, *back.ParentID)
	assert.Equal(t, rec.ChildIDs, back.ChildIDs)
	assert.JSONEq(t, string(rec.Blocks), string(back.Blocks))
	assert.True(t, rec.CreatedAt.Equal(back.CreatedAt))

	row.ChildIDs[0] = models.NewDocumentID()
	assert.NotEqual(t, row.ChildIDs[0], rec.ChildIDs[0])
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(fmt.Errorf("An error occurred: record not found")), store.ErrNotFound)

	other := errors.New("connection refused")
	assert.Equal(t, other, mapError(other))
}

func TestIsJWT(t *testing.T) {
	assert.True(t, isJWT("eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiIxIn0.c2ln"))
	assert.False(t, isJWT("root:root"))
	assert.False(t, isJWT("a.b.c:d"))
	assert.False(t, isJWT("plain"))
}

func TestFirstResult(t *testing.T) {
	_, ok := firstResult[int](nil, 0)
	assert.False(t, ok)

	res := &[]surrealdb.QueryResult[int]{{Status: "OK", Result: 7}}
	v, ok := firstResult(res, 0)
	require.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = firstResult(res, 1)
	assert.False(t, ok)
}
