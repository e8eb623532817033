package services

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
)

type TaskService struct {
	store store.TaskStore
	log   zerolog.Logger
}

func NewTaskService(s store.TaskStore, log zerolog.Logger) *TaskService {
	return &TaskService{
		store: s,
		log:   log.With().Str("component", "tasks").Logger(),
	}
}

// GetAll returns the owner's daily tasks, or none if the store fails.
func (s *TaskService) GetAll(ctx context.Context, owner models.UserID) []*models.DailyTask {
	recs, err := s.store.ListTasks(ctx, owner)
	if err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Msg("failed to list tasks")
		return []*models.DailyTask{}
	}
	out := make([]*models.DailyTask, 0, len(recs))
	for _, rec := range recs {
		out = append(out, TaskFromRecord(rec))
	}
	return out
}

func (s *TaskService) Create(ctx context.Context, owner models.UserID, task *models.DailyTask) error {
	if err := s.store.CreateTask(ctx, TaskToRecord(owner, task)); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("task", task.ID).Msg("failed to create task")
		return err
	}
	return nil
}

func (s *TaskService) Update(ctx context.Context, owner models.UserID, task *models.DailyTask) error {
	if err := s.store.UpdateTask(ctx, TaskToRecord(owner, task)); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("task", task.ID).Msg("failed to update task")
		return err
	}
	return nil
}

func (s *TaskService) Delete(ctx context.Context, owner models.UserID, id models.TaskID) error {
	if err := s.store.DeleteTask(ctx, owner, id); err != nil {
		s.log.Error().Err(err).Stringer("owner", owner).Stringer("task", id).Msg("failed to delete task")
		return err
	}
	return nil
}

func TaskToRecord(owner models.UserID, t *models.DailyTask) *store.TaskRecord {
	return &store.TaskRecord{
		ID:          t.ID,
		OwnerID:     owner,
		Title:       t.Title,
		Description: t.Description,
		Minutes:     t.TimeAllocationMinutes,
		Priority:    string(models.ParsePriority(string(t.Priority))),
		Category:    t.Category,
		Completed:   t.Completed,
		Streak:      t.Streak,
		CreatedAt:   utc(t.CreatedAt),
		UpdatedAt:   utc(t.UpdatedAt),
	}
}

func TaskFromRecord(rec *store.TaskRecord) *models.DailyTask {
	streak := rec.Streak
	if streak < 0 {
		streak = 0
	}
	return &models.DailyTask{
		ID:                    rec.ID,
		Title:                 rec.Title,
		Description:           rec.Description,
		TimeAllocationMinutes: rec.Minutes,
		Priority:              models.ParsePriority(rec.Priority),
		Category:              rec.Category,
		Completed:             rec.Completed,
		Streak:                streak,
		CreatedAt:             utc(rec.CreatedAt),
		UpdatedAt:             utc(rec.UpdatedAt),
	}
}
