package postgres_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"github.com/surrealdb/surrealdesk/pkg/store/postgres"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
)

func newTestStore(t *testing.T) *postgres.PostgresStore {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := postgres.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestDocumentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := models.NewUserID()
	now := time.Now().UTC().Truncate(time.Second)

	parent := &store.DocumentRecord{
		ID:        models.NewDocumentID(),
		OwnerID:   owner,
		Title:     "Notes",
		Blocks:    datatypes.JSON(`[]`),
		ChildIDs:  datatypes.JSONSlice[models.DocumentID]{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateDocument(ctx, parent))

	child := &store.DocumentRecord{
		ID:        models.NewDocumentID(),
		OwnerID:   owner,
		Title:     "Sub",
		Blocks:    datatypes.JSON(`[{"kind":"text","content":"hi","order":0}]`),
		ParentID:  &parent.ID,
		ChildIDs:  datatypes.JSONSlice[models.DocumentID]{},
		CreatedAt: now.Add(time.Second),
		UpdatedAt: now.Add(time.Second),
	}
	require.NoError(t, s.CreateDocument(ctx, child))

	parent.ChildIDs = append(parent.ChildIDs, child.ID)
	parent.Expanded = true
	parent.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, s.UpdateDocument(ctx, parent))

	docs, err := s.ListDocuments(ctx, owner)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, parent.ID, docs[0].ID)
	assert.True(t, docs[0].Expanded)
	assert.Equal(t, []models.DocumentID{child.ID}, []models.DocumentID(docs[0].ChildIDs))
	assert.True(t, parent.UpdatedAt.Equal(docs[0].UpdatedAt), "timestamps are kept as written")
	require.NotNil(t, docs[1].ParentID)
	assert.Equal(t, parent.ID, *docs[1].ParentID)
	assert.JSONEq(t, string(child.Blocks), string(docs[1].Blocks))

	require.NoError(t, s.DeleteDocuments(ctx, owner, []models.DocumentID{child.ID, parent.ID}))
	docs, err = s.ListDocuments(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpdateIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := models.NewUserID()

	rec := &store.TaskRecord{ID: models.NewTaskID(), OwnerID: owner, Title: "Run", Priority: "high", Minutes: 30}
	require.NoError(t, s.CreateTask(ctx, rec))

	stranger := *rec
	stranger.OwnerID = models.NewUserID()
	stranger.Title = "Stolen"
	require.ErrorIs(t, s.UpdateTask(ctx, &stranger), store.ErrNotFound)

	missing := &store.TaskRecord{ID: models.NewTaskID(), OwnerID: owner}
	require.ErrorIs(t, s.UpdateTask(ctx, missing), store.ErrNotFound)

	rec.Completed = true
	rec.Streak = 1
	require.NoError(t, s.UpdateTask(ctx, rec))

	tasks, err := s.ListTasks(ctx, owner)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Run", tasks[0].Title)
	assert.True(t, tasks[0].Completed)
	assert.Equal(t, 30, tasks[0].Minutes)

	others, err := s.ListTasks(ctx, stranger.OwnerID)
	require.NoError(t, err)
	assert.Empty(t, others)
}

func TestFinanceIsOneRowPerOwner(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := models.NewUserID()

	got, err := s.GetFinance(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.SaveFinance(ctx, &store.FinanceRecord{OwnerID: owner, Data: datatypes.JSON(`{"wallets":[]}`)}))
	require.NoError(t, s.SaveFinance(ctx, &store.FinanceRecord{OwnerID: owner, Data: datatypes.JSON(`{"wallets":[{"name":"cash"}]}`)}))

	got, err = s.GetFinance(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.JSONEq(t, `{"wallets":[{"name":"cash"}]}`, string(got.Data))

	var count int64
	require.NoError(t, s.DB().Model(&store.FinanceRecord{}).Where("owner_id = ?", owner).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSaveHealthRowsUpserts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := models.NewUserID()
	quit := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	habit := &store.HabitRecord{ID: models.NewHabitID(), OwnerID: owner, Name: "Smoking", QuitAt: quit, Milestones: datatypes.JSON(`[]`)}
	require.NoError(t, s.SaveHabit(ctx, habit))

	habit.DailyCost = 900
	require.NoError(t, s.SaveHabit(ctx, habit))

	intruder := *habit
	intruder.OwnerID = models.NewUserID()
	require.ErrorIs(t, s.SaveHabit(ctx, &intruder), store.ErrNotFound)

	habits, err := s.ListHabits(ctx, owner)
	require.NoError(t, err)
	require.Len(t, habits, 1)
	assert.Equal(t, int64(900), habits[0].DailyCost)
	assert.True(t, quit.Equal(habits[0].QuitAt))

	protocol := &store.ProtocolRecord{ID: models.NewProtocolID(), OwnerID: owner, Title: "Sleep", Content: datatypes.JSON(`{"bedtime":"22:30"}`), Milestones: datatypes.JSON(`[]`)}
	require.NoError(t, s.SaveProtocol(ctx, protocol))
	require.NoError(t, s.DeleteProtocol(ctx, owner, protocol.ID))
	protocols, err := s.ListProtocols(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, protocols)

	require.NoError(t, s.DeleteHabit(ctx, owner, habit.ID))
	habits, err = s.ListHabits(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, habits)
}
