package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store/memstore"
)

var errStore = errors.New("store unavailable")

func TestNotesAndSub(t *testing.T) {
	h := newHarness(t).ready(t)

	notes, p1 := h.ctl.CreateDocument("Notes", nil)
	roots := h.ctl.RootDocuments()
	require.Len(t, roots, 1, "visible before the write finishes")
	assert.Equal(t, "Notes", roots[0].Title)

	sub, p2 := h.ctl.CreateDocument("Sub", &notes)
	children := h.ctl.Children(notes)
	require.Len(t, children, 1)
	assert.Equal(t, sub, children[0].ID)
	require.NotNil(t, children[0].ParentID)
	assert.Equal(t, notes, *children[0].ParentID)
	assert.Len(t, h.ctl.RootDocuments(), 1)

	require.NoError(t, wait(t, p1))
	require.NoError(t, wait(t, p2))

	stored := map[models.DocumentID]*models.Document{}
	for _, d := range h.svc.Documents.GetAll(context.Background(), h.user) {
		stored[d.ID] = d
	}
	require.Len(t, stored, 2)
	assert.Equal(t, []models.DocumentID{sub}, stored[notes].ChildIDs)
	assert.Equal(t, notes, *stored[sub].ParentID)
}

func TestCreateDocumentRollsBack(t *testing.T) {
	h := newHarness(t).ready(t)
	before := h.ctl.Snapshot()
	h.store.FailOnce(memstore.OpCreateDocument, errStore)

	id, p := h.ctl.CreateDocument("Doomed", nil)
	_, visible := h.ctl.Document(id)
	assert.True(t, visible)

	err := wait(t, p)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, FailureMutation, f.Kind)
	assert.ErrorIs(t, err, errStore)

	after := h.ctl.Snapshot()
	assert.Equal(t, before.Documents, after.Documents)
	assert.Equal(t, before.RootIDs, after.RootIDs)
	require.NotNil(t, after.Error)
	assert.Equal(t, "create document", after.Error.Op)
}

func TestCreateChildRollsBackWhenParentUpdateFails(t *testing.T) {
	h := newHarness(t).ready(t)
	notes, p := h.ctl.CreateDocument("Notes", nil)
	require.NoError(t, wait(t, p))

	h.store.FailOnce(memstore.OpUpdateDocument, errStore)
	sub, p := h.ctl.CreateDocument("Sub", &notes)
	require.ErrorIs(t, wait(t, p), errStore)

	_, ok := h.ctl.Document(sub)
	assert.False(t, ok)
	assert.Empty(t, h.ctl.Children(notes))
	_, stored := h.store.Document(sub)
	assert.False(t, stored, "created row is removed again")
}

func TestFailedParentCreateTakesQueuedChildren(t *testing.T) {
	h := newHarness(t).ready(t)
	release := h.store.Gate(memstore.OpCreateDocument)
	h.store.FailOnce(memstore.OpCreateDocument, errStore)

	parent, p1 := h.ctl.CreateDocument("Parent", nil)
	child, p2 := h.ctl.CreateDocument("Child", &parent)
	release()

	require.ErrorIs(t, wait(t, p1), errStore)
	require.ErrorIs(t, wait(t, p2), ErrDocumentNotFound)
	assert.ErrorIs(t, h.ctl.Err(), errStore, "only the failed write reaches the error slot")
	assert.Equal(t, 1, h.store.Calls(memstore.OpCreateDocument))
	_, ok := h.ctl.Document(child)
	assert.False(t, ok)
	assert.Empty(t, h.ctl.Documents())
	assert.Equal(t, 0, h.store.DocumentCount(h.user))
}

func TestUpdateDocumentRollsBack(t *testing.T) {
	h := newHarness(t).ready(t)
	id, p := h.ctl.CreateDocument("Stable", nil)
	require.NoError(t, wait(t, p))
	before, _ := h.ctl.Document(id)

	h.store.FailOnce(memstore.OpUpdateDocument, errStore)
	title, content := "Broken", "lost"
	p = h.ctl.UpdateDocument(id, DocumentPatch{Title: &title, Content: &content})
	d, _ := h.ctl.Document(id)
	assert.Equal(t, "Broken", d.Title)

	require.ErrorIs(t, wait(t, p), errStore)
	after, _ := h.ctl.Document(id)
	assert.Equal(t, before, after)
}

func TestUpdateDocumentStampsAndPersists(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	clock := now
	h := newHarness(t, WithClock(func() time.Time { return clock })).ready(t)
	id, p := h.ctl.CreateDocument("", nil)
	require.NoError(t, wait(t, p))
	d, _ := h.ctl.Document(id)
	assert.Equal(t, models.DefaultDocumentTitle, d.Title)

	clock = now.Add(time.Hour)
	expanded := true
	require.NoError(t, wait(t, h.ctl.UpdateDocument(id, DocumentPatch{Expanded: &expanded})))

	d, _ = h.ctl.Document(id)
	assert.True(t, d.Expanded)
	assert.Equal(t, now.Add(time.Hour), d.UpdatedAt)
	assert.Equal(t, now, d.CreatedAt)
	rec, ok := h.store.Document(id)
	require.True(t, ok)
	assert.True(t, rec.Expanded)
}

func TestDeleteDocumentConfirmsFirst(t *testing.T) {
	h := newHarness(t).ready(t)
	notes, p := h.ctl.CreateDocument("Notes", nil)
	require.NoError(t, wait(t, p))
	sub, p := h.ctl.CreateDocument("Sub", &notes)
	require.NoError(t, wait(t, p))
	leaf, p := h.ctl.CreateDocument("Leaf", &sub)
	require.NoError(t, wait(t, p))

	release := h.store.Gate(memstore.OpDeleteDocuments)
	p = h.ctl.DeleteDocument(sub)
	require.Eventually(t, func() bool { return h.store.Calls(memstore.OpDeleteDocuments) == 1 }, time.Second, 5*time.Millisecond)
	_, ok := h.ctl.Document(sub)
	assert.True(t, ok, "still present until the store confirms")

	release()
	require.NoError(t, wait(t, p))
	_, ok = h.ctl.Document(sub)
	assert.False(t, ok)
	_, ok = h.ctl.Document(leaf)
	assert.False(t, ok)
	assert.Empty(t, h.ctl.Children(notes))
	assert.Equal(t, 1, h.store.DocumentCount(h.user))
	rec, _ := h.store.Document(notes)
	assert.Empty(t, rec.ChildIDs)
}

func TestCreateUnderDocumentBeingDeleted(t *testing.T) {
	h := newHarness(t).ready(t)
	notes, p := h.ctl.CreateDocument("Notes", nil)
	require.NoError(t, wait(t, p))

	release := h.store.Gate(memstore.OpDeleteDocuments)
	pd := h.ctl.DeleteDocument(notes)
	require.Eventually(t, func() bool { return h.store.Calls(memstore.OpDeleteDocuments) == 1 }, time.Second, 5*time.Millisecond)
	child, pc := h.ctl.CreateDocument("Late", &notes)
	release()

	require.NoError(t, wait(t, pd))
	require.ErrorIs(t, wait(t, pc), ErrDocumentNotFound)
	assert.Nil(t, h.ctl.Err(), "no store write failed")
	_, ok := h.ctl.Document(child)
	assert.False(t, ok)
	assert.Empty(t, h.ctl.Documents())
	assert.Equal(t, 1, h.store.Calls(memstore.OpCreateDocument))
	assert.Equal(t, 0, h.store.DocumentCount(h.user))
}

func TestUpdateDocumentRejectsDuplicateBlocks(t *testing.T) {
	h := newHarness(t).ready(t)
	doc, p := h.ctl.CreateDocument("Page", nil)
	require.NoError(t, wait(t, p))
	first, p := h.ctl.AddBlock(doc, BlockInput{Content: "first"}, -1)
	require.NoError(t, wait(t, p))
	updates := h.store.Calls(memstore.OpUpdateDocument)

	blocks := []models.Block{
		{ID: first, Kind: models.BlockText, Content: "one"},
		{ID: first, Kind: models.BlockText, Content: "two"},
	}
	err := h.ctl.UpdateDocument(doc, DocumentPatch{Blocks: &blocks}).Err()

	require.ErrorIs(t, err, ErrInvalidBlock)
	d, _ := h.ctl.Document(doc)
	assert.Equal(t, []string{"first"}, blockContents(d))
	assert.Equal(t, updates, h.store.Calls(memstore.OpUpdateDocument))
	assert.Nil(t, h.ctl.Err())
}

func TestDeleteDocumentFailureKeepsSubtree(t *testing.T) {
	h := newHarness(t).ready(t)
	notes, p := h.ctl.CreateDocument("Notes", nil)
	require.NoError(t, wait(t, p))
	sub, p := h.ctl.CreateDocument("Sub", &notes)
	require.NoError(t, wait(t, p))
	before := h.ctl.Snapshot()

	h.store.FailOnce(memstore.OpDeleteDocuments, errStore)
	require.ErrorIs(t, wait(t, h.ctl.DeleteDocument(notes)), errStore)

	after := h.ctl.Snapshot()
	assert.Equal(t, before.Documents, after.Documents)
	_, ok := h.ctl.Document(sub)
	assert.True(t, ok)
	assert.Equal(t, 2, h.store.DocumentCount(h.user))
}

func TestMoveDocument(t *testing.T) {
	h := newHarness(t).ready(t)
	a, p := h.ctl.CreateDocument("A", nil)
	require.NoError(t, wait(t, p))
	b, p := h.ctl.CreateDocument("B", nil)
	require.NoError(t, wait(t, p))
	child, p := h.ctl.CreateDocument("Child", &a)
	require.NoError(t, wait(t, p))

	require.NoError(t, wait(t, h.ctl.MoveDocument(child, &b)))
	assert.Empty(t, h.ctl.Children(a))
	require.Len(t, h.ctl.Children(b), 1)

	require.ErrorIs(t, h.ctl.MoveDocument(b, &child).Err(), ErrCycle)
	require.ErrorIs(t, h.ctl.MoveDocument(b, &b).Err(), ErrCycle)

	require.NoError(t, wait(t, h.ctl.MoveDocument(child, nil)))
	assert.Len(t, h.ctl.RootDocuments(), 3)

	h.ctl.mu.RLock()
	assert.True(t, treeConsistent(h.ctl.docs))
	h.ctl.mu.RUnlock()
}

func TestMoveDocumentRollsBack(t *testing.T) {
	h := newHarness(t).ready(t)
	a, p := h.ctl.CreateDocument("A", nil)
	require.NoError(t, wait(t, p))
	b, p := h.ctl.CreateDocument("B", nil)
	require.NoError(t, wait(t, p))
	child, p := h.ctl.CreateDocument("Child", &a)
	require.NoError(t, wait(t, p))
	before := h.ctl.Snapshot()

	h.store.FailOnce(memstore.OpUpdateDocument, errStore)
	require.ErrorIs(t, wait(t, h.ctl.MoveDocument(child, &b)), errStore)

	assert.Equal(t, before.Documents, h.ctl.Snapshot().Documents)
	rec, _ := h.store.Document(child)
	require.NotNil(t, rec.ParentID)
	assert.Equal(t, a, *rec.ParentID)
}

func TestBlocks(t *testing.T) {
	h := newHarness(t).ready(t)
	doc, p := h.ctl.CreateDocument("Page", nil)
	require.NoError(t, wait(t, p))

	first, _ := h.ctl.AddBlock(doc, BlockInput{Content: "first"}, -1)
	third, _ := h.ctl.AddBlock(doc, BlockInput{Kind: models.BlockHeading, Content: "third", Data: models.JSONMap{"level": 2}}, 5)
	second, p := h.ctl.AddBlock(doc, BlockInput{Content: "second"}, 1)
	require.NoError(t, wait(t, p))

	d, _ := h.ctl.Document(doc)
	require.Len(t, d.Blocks, 3)
	assert.Equal(t, []string{"first", "second", "third"}, blockContents(d))
	assert.Equal(t, models.BlockText, d.Blocks[0].Kind)
	assert.Equal(t, 2, d.Blocks[2].HeadingLevel())

	_, p = h.ctl.AddBlock(doc, BlockInput{Kind: "audio"}, 0)
	require.ErrorIs(t, p.Err(), ErrInvalidBlock)

	content := "updated"
	require.NoError(t, wait(t, h.ctl.UpdateBlock(doc, second, BlockPatch{Content: &content})))
	require.ErrorIs(t, h.ctl.UpdateBlock(doc, models.NewBlockID(), BlockPatch{}).Err(), ErrBlockNotFound)

	require.ErrorIs(t, h.ctl.ReorderBlocks(doc, []models.BlockID{third, first}).Err(), ErrInvalidOrder)
	require.ErrorIs(t, h.ctl.ReorderBlocks(doc, []models.BlockID{third, first, first}).Err(), ErrInvalidOrder)
	require.NoError(t, wait(t, h.ctl.ReorderBlocks(doc, []models.BlockID{third, first, second})))

	require.NoError(t, wait(t, h.ctl.DeleteBlock(doc, first)))
	d, _ = h.ctl.Document(doc)
	assert.Equal(t, []string{"third", "updated"}, blockContents(d))
	for i, b := range d.Blocks {
		assert.Equal(t, i, b.Order)
	}

	stored := h.svc.Documents.GetAll(context.Background(), h.user)
	require.Len(t, stored, 1)
	assert.Equal(t, []string{"third", "updated"}, blockContents(stored[0]))
}

func TestBlockEditRollsBack(t *testing.T) {
	h := newHarness(t).ready(t)
	doc, p := h.ctl.CreateDocument("Page", nil)
	require.NoError(t, wait(t, p))
	_, p = h.ctl.AddBlock(doc, BlockInput{Content: "kept"}, 0)
	require.NoError(t, wait(t, p))

	h.store.FailOnce(memstore.OpUpdateDocument, errStore)
	_, p = h.ctl.AddBlock(doc, BlockInput{Content: "lost"}, 0)
	require.ErrorIs(t, wait(t, p), errStore)

	d, _ := h.ctl.Document(doc)
	assert.Equal(t, []string{"kept"}, blockContents(d))
}

func blockContents(d *models.Document) []string {
	out := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		out[i] = b.Content
	}
	return out
}
