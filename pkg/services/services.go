package services

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/store"
)

// Services bundles the four domain services over one store.
type Services struct {
	Documents *DocumentService
	Tasks     *TaskService
	Finance   *FinanceService
	Health    *HealthService
}

func New(s store.Store, log zerolog.Logger) *Services {
	return &Services{
		Documents: NewDocumentService(s, log),
		Tasks:     NewTaskService(s, log),
		Finance:   NewFinanceService(s, log),
		Health:    NewHealthService(s, log),
	}
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
