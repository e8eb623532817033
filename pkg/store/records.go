package store

import (
	"time"

	"github.com/surrealdb/surrealdesk/pkg/models"
	"gorm.io/datatypes"
)

// Records are the rows exchanged with a remote store. They carry the owner
// explicitly and keep nested data (blocks, the finance aggregate, milestone
// lists) as serialized JSON. Timestamps are set by callers and stored as-is.

type DocumentRecord struct {
	ID        models.DocumentID                      `gorm:"primaryKey" json:"id"`
	OwnerID   models.UserID                          `gorm:"index;not null" json:"owner"`
	Title     string                                 `json:"title"`
	Content   string                                 `gorm:"type:text" json:"content"`
	Blocks    datatypes.JSON                         `json:"blocks"`
	Icon      string                                 `json:"icon"`
	ParentID  *models.DocumentID                     `gorm:"index" json:"parent,omitempty"`
	ChildIDs  datatypes.JSONSlice[models.DocumentID] `json:"child_ids"`
	Expanded  bool                                   `json:"expanded"`
	CreatedAt time.Time                              `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time                              `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (DocumentRecord) TableName() string { return "documents" }

type TaskRecord struct {
	ID          models.TaskID `gorm:"primaryKey" json:"id"`
	OwnerID     models.UserID `gorm:"index;not null" json:"owner"`
	Title       string        `json:"title"`
	Description string        `gorm:"type:text" json:"description"`
	Minutes     int           `gorm:"column:time_allocation_minutes" json:"time_allocation_minutes"`
	Priority    string        `gorm:"size:16" json:"priority"`
	Category    string        `json:"category"`
	Completed   bool          `json:"completed"`
	Streak      int           `json:"streak"`
	CreatedAt   time.Time     `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (TaskRecord) TableName() string { return "daily_tasks" }

// FinanceRecord is the single finance blob of one owner.
type FinanceRecord struct {
	ID        models.FinanceID `gorm:"primaryKey" json:"id"`
	OwnerID   models.UserID    `gorm:"uniqueIndex;not null" json:"owner"`
	Data      datatypes.JSON   `json:"data"`
	UpdatedAt time.Time        `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (FinanceRecord) TableName() string { return "finance" }

type ProtocolRecord struct {
	ID          models.ProtocolID `gorm:"primaryKey" json:"id"`
	OwnerID     models.UserID     `gorm:"index;not null" json:"owner"`
	Title       string            `json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	Content     datatypes.JSON    `json:"content"`
	StartedAt   time.Time         `json:"started_at"`
	Milestones  datatypes.JSON    `json:"milestones"`
	CreatedAt   time.Time         `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (ProtocolRecord) TableName() string { return "health_protocols" }

type HabitRecord struct {
	ID         models.HabitID `gorm:"primaryKey" json:"id"`
	OwnerID    models.UserID  `gorm:"index;not null" json:"owner"`
	Name       string         `json:"name"`
	QuitAt     time.Time      `json:"quit_at"`
	DailyCost  int64          `json:"daily_cost"`
	Notes      string         `gorm:"type:text" json:"notes"`
	Milestones datatypes.JSON `json:"milestones"`
	CreatedAt  time.Time      `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime:false" json:"updated_at"`
}

func (HabitRecord) TableName() string { return "quit_habits" }
