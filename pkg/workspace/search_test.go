package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/models"
)

func TestSearchDocuments(t *testing.T) {
	h := newHarness(t).ready(t)
	recipes, _ := h.ctl.CreateDocument("Recipes", nil)
	body := "Buy OAT milk"
	h.ctl.UpdateDocument(recipes, DocumentPatch{Content: &body})
	plans, _ := h.ctl.CreateDocument("Plans", nil)
	_, p := h.ctl.AddBlock(plans, BlockInput{Content: "oatmeal on sunday"}, 0)
	require.NoError(t, wait(t, p))
	h.ctl.CreateDocument("Unrelated", nil)

	got := h.ctl.SearchDocuments("  Oat ")
	require.Len(t, got, 2)
	ids := []models.DocumentID{got[0].ID, got[1].ID}
	assert.ElementsMatch(t, []models.DocumentID{recipes, plans}, ids)

	assert.Empty(t, h.ctl.SearchDocuments(""))
	assert.Empty(t, h.ctl.SearchDocuments("zzz"))
}

func TestFilterTasks(t *testing.T) {
	h := newHarness(t).ready(t)
	low, _ := h.ctl.CreateTask(TaskInput{Title: "Low", Priority: models.PriorityLow, Category: "home"})
	high, _ := h.ctl.CreateTask(TaskInput{Title: "High", Priority: models.PriorityHigh, Category: "work"})
	medium, p := h.ctl.CreateTask(TaskInput{Title: "Medium", Category: "Work"})
	require.NoError(t, wait(t, p))
	require.NoError(t, wait(t, h.ctl.ToggleTaskCompletion(low)))

	all := h.ctl.FilterTasks(TaskFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, []models.TaskID{high, medium, low}, []models.TaskID{all[0].ID, all[1].ID, all[2].ID})

	work := h.ctl.FilterTasks(TaskFilter{Category: "work"})
	assert.Len(t, work, 2)

	done := true
	completed := h.ctl.FilterTasks(TaskFilter{Completed: &done})
	require.Len(t, completed, 1)
	assert.Equal(t, low, completed[0].ID)

	hp := models.PriorityHigh
	assert.Len(t, h.ctl.FilterTasks(TaskFilter{Priority: &hp}), 1)
}
