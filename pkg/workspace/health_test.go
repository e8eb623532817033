package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store/memstore"
)

func TestUpdateHealthDataPersistsEachEntity(t *testing.T) {
	h := newHarness(t).ready(t)
	protocol := models.HealthProtocol{ID: models.NewProtocolID(), Title: "Morning light"}
	habit := models.QuitHabit{ID: models.NewHabitID(), Name: "Coffee", DailyCost: 350}

	require.NoError(t, wait(t, h.ctl.UpdateHealthData(HealthPatch{
		Protocols: []models.HealthProtocol{protocol},
		Habits:    []models.QuitHabit{habit},
	})))

	data := h.ctl.Health()
	require.Len(t, data.Protocols, 1)
	require.Len(t, data.Habits, 1)
	assert.Equal(t, models.DefaultQuitMilestones(), data.Habits[0].Milestones)
	assert.Empty(t, data.Protocols[0].Milestones)
	assert.Equal(t, 1, h.store.Calls(memstore.OpSaveProtocol))
	assert.Equal(t, 1, h.store.Calls(memstore.OpSaveHabit))

	stored := h.svc.Health.GetAll(context.Background(), h.user)
	assert.Len(t, stored.Protocols, 1)
	assert.Len(t, stored.Habits, 1)
}

func TestHealthPartialFailureRevertsOnlyFailedEntities(t *testing.T) {
	h := newHarness(t).ready(t)
	protocol := models.HealthProtocol{ID: models.NewProtocolID(), Title: "Cold showers"}
	habit := models.QuitHabit{ID: models.NewHabitID(), Name: "Sugar"}
	h.store.FailOnce(memstore.OpSaveHabit, errStore)

	p := h.ctl.UpdateHealthData(HealthPatch{
		Protocols: []models.HealthProtocol{protocol},
		Habits:    []models.QuitHabit{habit},
	})
	require.ErrorIs(t, wait(t, p), errStore)

	data := h.ctl.Health()
	require.Len(t, data.Protocols, 1)
	assert.Equal(t, protocol.ID, data.Protocols[0].ID)
	assert.Empty(t, data.Habits)
}

func TestDeleteHealthEntities(t *testing.T) {
	h := newHarness(t).ready(t)
	habit := models.QuitHabit{ID: models.NewHabitID(), Name: "Smoking"}
	require.NoError(t, wait(t, h.ctl.UpdateHealthData(HealthPatch{Habits: []models.QuitHabit{habit}})))

	require.ErrorIs(t, h.ctl.UpdateHealthData(HealthPatch{DeleteProtocols: []models.ProtocolID{models.NewProtocolID()}}).Err(), ErrProtocolNotFound)

	h.store.FailOnce(memstore.OpDeleteHabit, errStore)
	require.ErrorIs(t, wait(t, h.ctl.UpdateHealthData(HealthPatch{DeleteHabits: []models.HabitID{habit.ID}})), errStore)
	assert.Len(t, h.ctl.Health().Habits, 1, "restored")

	require.NoError(t, wait(t, h.ctl.UpdateHealthData(HealthPatch{DeleteHabits: []models.HabitID{habit.ID}})))
	assert.Empty(t, h.ctl.Health().Habits)
	assert.Empty(t, h.svc.Health.GetAll(context.Background(), h.user).Habits)
}

func TestMilestonesAreDerived(t *testing.T) {
	h := newHarness(t).ready(t)
	quit := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	habit := models.QuitHabit{ID: models.NewHabitID(), Name: "Soda", QuitAt: quit, DailyCost: 200}
	require.NoError(t, wait(t, h.ctl.UpdateHealthData(HealthPatch{Habits: []models.QuitHabit{habit}})))

	report := h.ctl.Milestones(quit.Add(36 * time.Hour))
	require.Len(t, report.Habits, 1)
	got := report.Habits[0]
	assert.Equal(t, int64(200), got.Saved)
	assert.Equal(t, 36*time.Hour, got.Elapsed)

	reached := 0
	for _, m := range got.Progress {
		if m.Reached {
			reached++
		}
	}
	assert.Equal(t, 3, reached, "20 minutes, 8 hours, 1 day")

	later := h.ctl.Milestones(quit.Add(4 * 24 * time.Hour))
	assert.Greater(t, countReached(later.Habits[0].Progress), reached)
}

func countReached(progress []models.MilestoneStatus) int {
	n := 0
	for _, m := range progress {
		if m.Reached {
			n++
		}
	}
	return n
}
