package models

import (
	"sort"
	"time"
)

const day = 24 * time.Hour

// Milestone is a threshold measured from a reference timestamp. Whether it is
// reached is never stored; see MilestoneProgress.
type Milestone struct {
	Label        string `json:"label"`
	AfterSeconds int64  `json:"afterSeconds"`
}

func NewMilestone(label string, after time.Duration) Milestone {
	return Milestone{Label: label, AfterSeconds: int64(after / time.Second)}
}

func (m Milestone) After() time.Duration {
	return time.Duration(m.AfterSeconds) * time.Second
}

// MilestoneStatus is a milestone evaluated at one instant.
type MilestoneStatus struct {
	Milestone
	Reached   bool          `json:"reached"`
	DueAt     time.Time     `json:"dueAt"`
	Remaining time.Duration `json:"remaining"`
}

// MilestoneProgress evaluates milestones against the time elapsed between
// since and now, ordered by threshold.
func MilestoneProgress(since time.Time, milestones []Milestone, now time.Time) []MilestoneStatus {
	sorted := append([]Milestone{}, milestones...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AfterSeconds < sorted[j].AfterSeconds
	})

	elapsed := now.Sub(since)
	out := make([]MilestoneStatus, 0, len(sorted))
	for _, m := range sorted {
		st := MilestoneStatus{Milestone: m, DueAt: since.Add(m.After())}
		if elapsed >= m.After() {
			st.Reached = true
		} else {
			st.Remaining = m.After() - elapsed
		}
		out = append(out, st)
	}
	return out
}

// DefaultQuitMilestones is the schedule used when a habit has none.
func DefaultQuitMilestones() []Milestone {
	return []Milestone{
		NewMilestone("20 minutes", 20*time.Minute),
		NewMilestone("8 hours", 8*time.Hour),
		NewMilestone("1 day", day),
		NewMilestone("2 days", 2*day),
		NewMilestone("3 days", 3*day),
		NewMilestone("2 weeks", 14*day),
		NewMilestone("1 month", 30*day),
		NewMilestone("3 months", 90*day),
		NewMilestone("9 months", 270*day),
		NewMilestone("1 year", 365*day),
		NewMilestone("5 years", 5*365*day),
		NewMilestone("10 years", 10*365*day),
	}
}

// HealthProtocol is a structured routine followed since StartedAt.
type HealthProtocol struct {
	ID          ProtocolID  `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Content     JSONMap     `json:"content,omitempty"`
	StartedAt   time.Time   `json:"startedAt"`
	Milestones  []Milestone `json:"milestones"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (p HealthProtocol) Clone() HealthProtocol {
	p.Content = p.Content.Clone()
	p.Milestones = append([]Milestone{}, p.Milestones...)
	return p
}

func (p HealthProtocol) Progress(now time.Time) []MilestoneStatus {
	return MilestoneProgress(p.StartedAt, p.Milestones, now)
}

// QuitHabit tracks time since a habit was given up.
type QuitHabit struct {
	ID         HabitID     `json:"id"`
	Name       string      `json:"name"`
	QuitAt     time.Time   `json:"quitAt"`
	DailyCost  int64       `json:"dailyCost"`
	Notes      string      `json:"notes,omitempty"`
	Milestones []Milestone `json:"milestones"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

func (h QuitHabit) Clone() QuitHabit {
	h.Milestones = append([]Milestone{}, h.Milestones...)
	return h
}

// Elapsed is the time since QuitAt, zero if QuitAt is in the future.
func (h QuitHabit) Elapsed(now time.Time) time.Duration {
	if now.Before(h.QuitAt) {
		return 0
	}
	return now.Sub(h.QuitAt)
}

// Saved is the money not spent since quitting, in whole days.
func (h QuitHabit) Saved(now time.Time) int64 {
	return h.DailyCost * int64(h.Elapsed(now)/day)
}

func (h QuitHabit) Progress(now time.Time) []MilestoneStatus {
	return MilestoneProgress(h.QuitAt, h.Milestones, now)
}

// HealthData groups the user's protocols and habits.
type HealthData struct {
	Protocols []HealthProtocol `json:"protocols"`
	Habits    []QuitHabit      `json:"habits"`
}

func EmptyHealth() HealthData {
	return HealthData{Protocols: []HealthProtocol{}, Habits: []QuitHabit{}}
}

func (h HealthData) Clone() HealthData {
	out := HealthData{
		Protocols: make([]HealthProtocol, len(h.Protocols)),
		Habits:    make([]QuitHabit, len(h.Habits)),
	}
	for i, p := range h.Protocols {
		out.Protocols[i] = p.Clone()
	}
	for i, q := range h.Habits {
		out.Habits[i] = q.Clone()
	}
	return out
}

func (h *HealthData) ProtocolIndex(id ProtocolID) int {
	for i, p := range h.Protocols {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (h *HealthData) HabitIndex(id HabitID) int {
	for i, q := range h.Habits {
		if q.ID == id {
			return i
		}
	}
	return -1
}
