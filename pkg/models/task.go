package models

import (
	"strings"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority maps free text onto a Priority, falling back to medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Rank orders priorities for sorting, high first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// DailyTask is a recurring task whose streak counts completions.
type DailyTask struct {
	ID                    TaskID    `json:"id"`
	Title                 string    `json:"title"`
	Description           string    `json:"description,omitempty"`
	TimeAllocationMinutes int       `json:"timeAllocationMinutes"`
	Priority              Priority  `json:"priority"`
	Category              string    `json:"category"`
	Completed             bool      `json:"completed"`
	Streak                int       `json:"streak"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (t *DailyTask) Clone() *DailyTask {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}

// SetCompleted moves the task to the given completion state and applies the
// streak transition. Setting the state it already has changes nothing.
func (t *DailyTask) SetCompleted(completed bool) {
	if t.Completed == completed {
		return
	}
	t.Completed = completed
	if completed {
		t.Streak++
		return
	}
	if t.Streak > 0 {
		t.Streak--
	}
}

// Toggle flips completion and applies the streak transition.
func (t *DailyTask) Toggle() {
	t.SetCompleted(!t.Completed)
}
