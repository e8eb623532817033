package workspace

import (
	"context"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

const DefaultTaskTitle = "Untitled task"

type TaskInput struct {
	Title                 string          `json:"title"`
	Description           string          `json:"description,omitempty"`
	TimeAllocationMinutes int             `json:"timeAllocationMinutes"`
	Priority              models.Priority `json:"priority"`
	Category              string          `json:"category"`
}

// TaskPatch holds the fields UpdateTask changes. Setting Completed applies
// the same streak transition as a toggle.
type TaskPatch struct {
	Title                 *string          `json:"title,omitempty"`
	Description           *string          `json:"description,omitempty"`
	TimeAllocationMinutes *int             `json:"timeAllocationMinutes,omitempty"`
	Priority              *models.Priority `json:"priority,omitempty"`
	Category              *string          `json:"category,omitempty"`
	Completed             *bool            `json:"completed,omitempty"`
}

func (c *Controller) CreateTask(in TaskInput) (models.TaskID, *Pending) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return models.TaskID{}, resolved(err)
	}
	now := c.stamp()
	t := &models.DailyTask{
		ID:                    models.NewTaskID(),
		Title:                 in.Title,
		Description:           in.Description,
		TimeAllocationMinutes: max(in.TimeAllocationMinutes, 0),
		Priority:              models.ParsePriority(string(in.Priority)),
		Category:              in.Category,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if t.Title == "" {
		t.Title = DefaultTaskTitle
	}
	c.tasks[t.ID] = t

	id := t.ID
	return id, c.enqueueLocked("create task", []string{taskKey(id)}, func() *step {
		cur, ok := c.tasks[id]
		if !ok {
			return nil
		}
		owner, payload := c.user, cur.Clone()
		return &step{
			call: func(ctx context.Context) error {
				return c.svc.Tasks.Create(ctx, owner, payload)
			},
			commit:   func() { c.confTasks[id] = payload },
			rollback: func(error) { c.revertTaskLocked(id) },
		}
	})
}

func (c *Controller) UpdateTask(id models.TaskID, patch TaskPatch) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	t, ok := c.tasks[id]
	if !ok {
		return resolved(ErrTaskNotFound)
	}
	if patch.Title != nil {
		t.Title = *patch.Title
		if t.Title == "" {
			t.Title = DefaultTaskTitle
		}
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.TimeAllocationMinutes != nil {
		t.TimeAllocationMinutes = max(*patch.TimeAllocationMinutes, 0)
	}
	if patch.Priority != nil {
		t.Priority = models.ParsePriority(string(*patch.Priority))
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}
	if patch.Completed != nil {
		t.SetCompleted(*patch.Completed)
	}
	t.UpdatedAt = c.stamp()
	return c.saveTaskLocked("update task", id)
}

// ToggleTaskCompletion flips completion. Completing increments the streak,
// un-completing decrements it without going below zero.
func (c *Controller) ToggleTaskCompletion(id models.TaskID) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	t, ok := c.tasks[id]
	if !ok {
		return resolved(ErrTaskNotFound)
	}
	t.Toggle()
	t.UpdatedAt = c.stamp()
	return c.saveTaskLocked("toggle task", id)
}

// DeleteTask removes the task at once and restores it if the store refuses.
func (c *Controller) DeleteTask(id models.TaskID) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	if _, ok := c.tasks[id]; !ok {
		return resolved(ErrTaskNotFound)
	}
	delete(c.tasks, id)

	return c.enqueueLocked("delete task", []string{taskKey(id)}, func() *step {
		if _, ok := c.confTasks[id]; !ok {
			// never stored
			return nil
		}
		if _, ok := c.tasks[id]; ok {
			// restored by a failed write queued before this one
			delete(c.tasks, id)
		}
		owner := c.user
		return &step{
			call: func(ctx context.Context) error {
				return c.svc.Tasks.Delete(ctx, owner, id)
			},
			commit:   func() { delete(c.confTasks, id) },
			rollback: func(error) { c.revertTaskLocked(id) },
		}
	})
}

func (c *Controller) saveTaskLocked(op string, id models.TaskID) *Pending {
	return c.enqueueLocked(op, []string{taskKey(id)}, func() *step {
		cur, ok := c.tasks[id]
		if !ok {
			return nil
		}
		owner, payload := c.user, cur.Clone()
		return &step{
			call: func(ctx context.Context) error {
				return c.svc.Tasks.Update(ctx, owner, payload)
			},
			commit:   func() { c.confTasks[id] = payload },
			rollback: func(error) { c.revertTaskLocked(id) },
		}
	})
}

func (c *Controller) revertTaskLocked(id models.TaskID) {
	if conf, ok := c.confTasks[id]; ok {
		c.tasks[id] = conf.Clone()
		return
	}
	delete(c.tasks, id)
}
