package workspace

import (
	"context"
	"time"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// HealthPatch upserts and deletes protocols and habits. Entries with a zero
// id are created.
type HealthPatch struct {
	Protocols       []models.HealthProtocol `json:"protocols,omitempty"`
	Habits          []models.QuitHabit      `json:"habits,omitempty"`
	DeleteProtocols []models.ProtocolID     `json:"deleteProtocols,omitempty"`
	DeleteHabits    []models.HabitID        `json:"deleteHabits,omitempty"`
}

// UpdateHealthData applies patch and persists every touched protocol and
// habit individually. When some of those writes fail only the failed
// entities are rolled back.
func (c *Controller) UpdateHealthData(patch HealthPatch) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.mutableLocked(); err != nil {
		return resolved(err)
	}
	for _, id := range patch.DeleteProtocols {
		if c.health.ProtocolIndex(id) < 0 {
			return resolved(ErrProtocolNotFound)
		}
	}
	for _, id := range patch.DeleteHabits {
		if c.health.HabitIndex(id) < 0 {
			return resolved(ErrHabitNotFound)
		}
	}

	now := c.stamp()
	var (
		keys      []string
		protocols []models.ProtocolID
		habits    []models.HabitID
	)
	for _, p := range patch.Protocols {
		p = p.Clone()
		if p.ID.IsZero() {
			p.ID = models.NewProtocolID()
		}
		i := c.health.ProtocolIndex(p.ID)
		if i >= 0 {
			p.CreatedAt = c.health.Protocols[i].CreatedAt
		} else if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.StartedAt.IsZero() {
			p.StartedAt = now
		}
		if p.Milestones == nil {
			p.Milestones = []models.Milestone{}
		}
		p.UpdatedAt = now
		if i >= 0 {
			c.health.Protocols[i] = p
		} else {
			c.health.Protocols = append(c.health.Protocols, p)
		}
		protocols = append(protocols, p.ID)
		keys = append(keys, protocolKey(p.ID))
	}
	for _, h := range patch.Habits {
		h = h.Clone()
		if h.ID.IsZero() {
			h.ID = models.NewHabitID()
		}
		i := c.health.HabitIndex(h.ID)
		if i >= 0 {
			h.CreatedAt = c.health.Habits[i].CreatedAt
		} else if h.CreatedAt.IsZero() {
			h.CreatedAt = now
		}
		if h.QuitAt.IsZero() {
			h.QuitAt = now
		}
		if len(h.Milestones) == 0 {
			h.Milestones = models.DefaultQuitMilestones()
		}
		h.UpdatedAt = now
		if i >= 0 {
			c.health.Habits[i] = h
		} else {
			c.health.Habits = append(c.health.Habits, h)
		}
		habits = append(habits, h.ID)
		keys = append(keys, habitKey(h.ID))
	}
	for _, id := range patch.DeleteProtocols {
		if i := c.health.ProtocolIndex(id); i >= 0 {
			c.health.Protocols = append(c.health.Protocols[:i], c.health.Protocols[i+1:]...)
		}
		protocols = append(protocols, id)
		keys = append(keys, protocolKey(id))
	}
	for _, id := range patch.DeleteHabits {
		if i := c.health.HabitIndex(id); i >= 0 {
			c.health.Habits = append(c.health.Habits[:i], c.health.Habits[i+1:]...)
		}
		habits = append(habits, id)
		keys = append(keys, habitKey(id))
	}
	if len(keys) == 0 {
		return resolved(nil)
	}

	return c.enqueueLocked("update health", keys, func() *step {
		return c.healthStep(dedupeIDs(protocols), dedupeIDs(habits))
	})
}

type healthWrite struct {
	save   func(ctx context.Context) error
	commit func()
	revert func()
	err    error
}

// healthStep writes the protocols and habits as they are now: present ones
// are saved, missing ones deleted if the store has them.
func (c *Controller) healthStep(protocols []models.ProtocolID, habits []models.HabitID) *step {
	owner := c.user
	var writes []*healthWrite

	for _, id := range protocols {
		w := &healthWrite{revert: func() { c.revertProtocolLocked(id) }}
		if i := c.health.ProtocolIndex(id); i >= 0 {
			payload := c.health.Protocols[i].Clone()
			w.save = func(ctx context.Context) error { return c.svc.Health.SaveProtocol(ctx, owner, payload) }
			w.commit = func() { c.confProtocols[id] = payload }
		} else if _, ok := c.confProtocols[id]; ok {
			w.save = func(ctx context.Context) error { return c.svc.Health.DeleteProtocol(ctx, owner, id) }
			w.commit = func() { delete(c.confProtocols, id) }
		} else {
			continue
		}
		writes = append(writes, w)
	}
	for _, id := range habits {
		w := &healthWrite{revert: func() { c.revertHabitLocked(id) }}
		if i := c.health.HabitIndex(id); i >= 0 {
			payload := c.health.Habits[i].Clone()
			w.save = func(ctx context.Context) error { return c.svc.Health.SaveHabit(ctx, owner, payload) }
			w.commit = func() { c.confHabits[id] = payload }
		} else if _, ok := c.confHabits[id]; ok {
			w.save = func(ctx context.Context) error { return c.svc.Health.DeleteHabit(ctx, owner, id) }
			w.commit = func() { delete(c.confHabits, id) }
		} else {
			continue
		}
		writes = append(writes, w)
	}
	if len(writes) == 0 {
		return nil
	}

	finish := func() {
		for _, w := range writes {
			if w.err == nil {
				w.commit()
			} else {
				w.revert()
			}
		}
	}
	return &step{
		call: func(ctx context.Context) error {
			var first error
			for _, w := range writes {
				w.err = w.save(ctx)
				if w.err != nil && first == nil {
					first = w.err
				}
			}
			return first
		},
		commit:   finish,
		rollback: func(error) { finish() },
	}
}

func (c *Controller) revertProtocolLocked(id models.ProtocolID) {
	i := c.health.ProtocolIndex(id)
	conf, ok := c.confProtocols[id]
	switch {
	case ok && i >= 0:
		c.health.Protocols[i] = conf.Clone()
	case ok:
		c.health.Protocols = append(c.health.Protocols, conf.Clone())
	case i >= 0:
		c.health.Protocols = append(c.health.Protocols[:i], c.health.Protocols[i+1:]...)
	}
}

func (c *Controller) revertHabitLocked(id models.HabitID) {
	i := c.health.HabitIndex(id)
	conf, ok := c.confHabits[id]
	switch {
	case ok && i >= 0:
		c.health.Habits[i] = conf.Clone()
	case ok:
		c.health.Habits = append(c.health.Habits, conf.Clone())
	case i >= 0:
		c.health.Habits = append(c.health.Habits[:i], c.health.Habits[i+1:]...)
	}
}

func dedupeIDs[T comparable](ids []T) []T {
	seen := map[T]bool{}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// ProtocolMilestones is a protocol's milestone schedule evaluated at one
// instant.
type ProtocolMilestones struct {
	ID        models.ProtocolID        `json:"id"`
	Title     string                   `json:"title"`
	StartedAt time.Time                `json:"startedAt"`
	Progress  []models.MilestoneStatus `json:"progress"`
}

type HabitMilestones struct {
	ID       models.HabitID           `json:"id"`
	Name     string                   `json:"name"`
	QuitAt   time.Time                `json:"quitAt"`
	Elapsed  time.Duration            `json:"elapsed"`
	Saved    int64                    `json:"saved"`
	Progress []models.MilestoneStatus `json:"progress"`
}

type MilestoneReport struct {
	At        time.Time            `json:"at"`
	Protocols []ProtocolMilestones `json:"protocols"`
	Habits    []HabitMilestones    `json:"habits"`
}

// Milestones evaluates every protocol and habit against now. Nothing about
// reached milestones is stored.
func (c *Controller) Milestones(now time.Time) MilestoneReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r := MilestoneReport{
		At:        now,
		Protocols: make([]ProtocolMilestones, 0, len(c.health.Protocols)),
		Habits:    make([]HabitMilestones, 0, len(c.health.Habits)),
	}
	for _, p := range c.health.Protocols {
		r.Protocols = append(r.Protocols, ProtocolMilestones{
			ID:        p.ID,
			Title:     p.Title,
			StartedAt: p.StartedAt,
			Progress:  p.Progress(now),
		})
	}
	for _, h := range c.health.Habits {
		r.Habits = append(r.Habits, HabitMilestones{
			ID:       h.ID,
			Name:     h.Name,
			QuitAt:   h.QuitAt,
			Elapsed:  h.Elapsed(now),
			Saved:    h.Saved(now),
			Progress: h.Progress(now),
		})
	}
	return r
}
