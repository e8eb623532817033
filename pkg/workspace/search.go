package workspace

import (
	"sort"
	"strings"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// SearchDocuments returns the documents whose title, body or any block
// contains q, ignoring case, most recently updated first. An empty query
// matches nothing.
func (c *Controller) SearchDocuments(q string) []*models.Document {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []*models.Document{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []*models.Document{}
	for _, d := range c.docs {
		if documentMatches(d, q) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func documentMatches(d *models.Document, q string) bool {
	if strings.Contains(strings.ToLower(d.Title), q) || strings.Contains(strings.ToLower(d.Content), q) {
		return true
	}
	for _, b := range d.Blocks {
		if strings.Contains(strings.ToLower(b.Content), q) {
			return true
		}
	}
	return false
}

// TaskFilter narrows FilterTasks. Zero fields match everything.
type TaskFilter struct {
	Priority  *models.Priority
	Category  string
	Completed *bool
}

func (f TaskFilter) match(t *models.DailyTask) bool {
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Category != "" && !strings.EqualFold(t.Category, f.Category) {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	return true
}

// FilterTasks returns the matching tasks, highest priority first and then
// by creation.
func (c *Controller) FilterTasks(f TaskFilter) []*models.DailyTask {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []*models.DailyTask{}
	for _, t := range c.tasksLocked() {
		if f.match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}
