package workspace

import (
	"context"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// The controller depends on these views of the domain services. GetAll and
// Get never fail; writes report failure through their error.

type DocumentService interface {
	GetAll(ctx context.Context, owner models.UserID) []*models.Document
	Create(ctx context.Context, owner models.UserID, doc *models.Document) error
	Update(ctx context.Context, owner models.UserID, doc *models.Document) error
	Delete(ctx context.Context, owner models.UserID, ids []models.DocumentID) error
}

type TaskService interface {
	GetAll(ctx context.Context, owner models.UserID) []*models.DailyTask
	Create(ctx context.Context, owner models.UserID, task *models.DailyTask) error
	Update(ctx context.Context, owner models.UserID, task *models.DailyTask) error
	Delete(ctx context.Context, owner models.UserID, id models.TaskID) error
}

type FinanceService interface {
	Get(ctx context.Context, owner models.UserID) models.FinanceData
	Save(ctx context.Context, owner models.UserID, data models.FinanceData) error
}

type HealthService interface {
	GetAll(ctx context.Context, owner models.UserID) models.HealthData
	SaveProtocol(ctx context.Context, owner models.UserID, p models.HealthProtocol) error
	DeleteProtocol(ctx context.Context, owner models.UserID, id models.ProtocolID) error
	SaveHabit(ctx context.Context, owner models.UserID, h models.QuitHabit) error
	DeleteHabit(ctx context.Context, owner models.UserID, id models.HabitID) error
}

type Services struct {
	Documents DocumentService
	Tasks     TaskService
	Finance   FinanceService
	Health    HealthService
}
