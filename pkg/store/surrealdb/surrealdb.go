// Package surrealdb implements [github.com/surrealdb/surrealdesk/pkg/store.Store]
// on SurrealDB with native SurrealQL.
//
// # Connection
//
// [Dial] connects over websocket (gorillaws) with the surrealcbor codec.
// Typed ids from [github.com/surrealdb/surrealdesk/pkg/models] marshal
// themselves to RecordIDs, so owner and parent references are real record
// links, and time.Time values arrive as SurrealDB datetimes.
//
// # Schema
//
// [SurrealStore.Migrate] defines the workspace tables with owner-based
// permissions and the "account" record access method used by
// [github.com/surrealdb/surrealdesk/pkg/auth/surrealauth]. Record users only
// ever see their own rows; the server connects with the store key and scopes
// every statement by owner itself.
//
// # Consistency
//
// Multi-statement writes (batched deletes, owner-checked upserts) run inside
// BEGIN/COMMIT so they apply completely or not at all.
//
// # Security and Query Safety
//
// All values are bound as $parameters. Never interpolate user input into
// SurrealQL.
package surrealdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"gorm.io/datatypes"
)

// SurrealStore implements the Store interface on SurrealDB.
type SurrealStore struct {
	db *surrealdb.DB
}

var _ store.Store = (*SurrealStore)(nil)

// NewSurrealStore dials SurrealDB and returns a store over the connection.
func NewSurrealStore(ctx context.Context, opts Options) (*SurrealStore, error) {
	db, err := Dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &SurrealStore{db: db}, nil
}

// NewSurrealStoreFromDB wraps an existing connection.
func NewSurrealStoreFromDB(db *surrealdb.DB) *SurrealStore {
	return &SurrealStore{db: db}
}

func (s *SurrealStore) Migrate(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, s.db, schema, nil); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// THROWn by owner-checked statements.
const notFoundMessage = "record not found"

func mapError(err error) error {
	if err != nil && strings.Contains(err.Error(), notFoundMessage) {
		return store.ErrNotFound
	}
	return err
}

// firstResult returns the result set of the statement at index i.
func firstResult[T any](res *[]surrealdb.QueryResult[T], i int) (T, bool) {
	var zero T
	if res == nil || len(*res) <= i {
		return zero, false
	}
	return (*res)[i].Result, true
}

type documentRow struct {
	ID        models.DocumentID   `json:"id"`
	Owner     models.UserID       `json:"owner"`
	Title     string              `json:"title"`
	Content   string              `json:"content"`
	Blocks    string              `json:"blocks"`
	Icon      string              `json:"icon"`
	Parent    *models.DocumentID  `json:"parent,omitempty"`
	ChildIDs  []models.DocumentID `json:"child_ids"`
	Expanded  bool                `json:"expanded"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func toDocumentRow(r *store.DocumentRecord) documentRow {
	return documentRow{
		ID:        r.ID,
		Owner:     r.OwnerID,
		Title:     r.Title,
		Content:   r.Content,
		Blocks:    string(r.Blocks),
		Icon:      r.Icon,
		Parent:    r.ParentID,
		ChildIDs:  append([]models.DocumentID{}, r.ChildIDs...),
		Expanded:  r.Expanded,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r documentRow) record() *store.DocumentRecord {
	return &store.DocumentRecord{
		ID:        r.ID,
		OwnerID:   r.Owner,
		Title:     r.Title,
		Content:   r.Content,
		Blocks:    datatypes.JSON(r.Blocks),
		Icon:      r.Icon,
		ParentID:  r.Parent,
		ChildIDs:  datatypes.JSONSlice[models.DocumentID](r.ChildIDs),
		Expanded:  r.Expanded,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (s *SurrealStore) ListDocuments(ctx context.Context, owner models.UserID) ([]*store.DocumentRecord, error) {
	res, err := surrealdb.Query[[]documentRow](ctx, s.db,
		"SELECT * FROM documents WHERE owner = $owner ORDER BY created_at",
		map[string]any{"owner": owner})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	rows, _ := firstResult(res, 0)
	out := make([]*store.DocumentRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *SurrealStore) CreateDocument(ctx context.Context, rec *store.DocumentRecord) error {
	row := toDocumentRow(rec)
	if _, err := surrealdb.Create[documentRow](ctx, s.db, surrealmodels.Table("documents"), row); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *SurrealStore) UpdateDocument(ctx context.Context, rec *store.DocumentRecord) error {
	res, err := surrealdb.Query[[]documentRow](ctx, s.db,
		"UPDATE $rid CONTENT $row WHERE owner = $owner RETURN AFTER",
		map[string]any{"rid": rec.ID.RecordID(), "row": toDocumentRow(rec), "owner": rec.OwnerID})
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if rows, _ := firstResult(res, 0); len(rows) == 0 {
		return fmt.Errorf("failed to update document: %w", store.ErrNotFound)
	}
	return nil
}

func (s *SurrealStore) DeleteDocuments(ctx context.Context, owner models.UserID, ids []models.DocumentID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		BEGIN TRANSACTION;
		DELETE documents WHERE owner = $owner AND id IN $ids;
		COMMIT TRANSACTION;
	`
	if _, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"owner": owner, "ids": ids}); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

type taskRow struct {
	ID          models.TaskID `json:"id"`
	Owner       models.UserID `json:"owner"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Minutes     int           `json:"time_allocation_minutes"`
	Priority    string        `json:"priority"`
	Category    string        `json:"category"`
	Completed   bool          `json:"completed"`
	Streak      int           `json:"streak"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func toTaskRow(r *store.TaskRecord) taskRow {
	return taskRow{
		ID:          r.ID,
		Owner:       r.OwnerID,
		Title:       r.Title,
		Description: r.Description,
		Minutes:     r.Minutes,
		Priority:    r.Priority,
		Category:    r.Category,
		Completed:   r.Completed,
		Streak:      r.Streak,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

func (r taskRow) record() *store.TaskRecord {
	return &store.TaskRecord{
		ID:          r.ID,
		OwnerID:     r.Owner,
		Title:       r.Title,
		Description: r.Description,
		Minutes:     r.Minutes,
		Priority:    r.Priority,
		Category:    r.Category,
		Completed:   r.Completed,
		Streak:      r.Streak,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (s *SurrealStore) ListTasks(ctx context.Context, owner models.UserID) ([]*store.TaskRecord, error) {
	res, err := surrealdb.Query[[]taskRow](ctx, s.db,
		"SELECT * FROM daily_tasks WHERE owner = $owner ORDER BY created_at",
		map[string]any{"owner": owner})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	rows, _ := firstResult(res, 0)
	out := make([]*store.TaskRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

func (s *SurrealStore) CreateTask(ctx context.Context, rec *store.TaskRecord) error {
	if _, err := surrealdb.Create[taskRow](ctx, s.db, surrealmodels.Table("daily_tasks"), toTaskRow(rec)); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (s *SurrealStore) UpdateTask(ctx context.Context, rec *store.TaskRecord) error {
	res, err := surrealdb.Query[[]taskRow](ctx, s.db,
		"UPDATE $rid CONTENT $row WHERE owner = $owner RETURN AFTER",
		map[string]any{"rid": rec.ID.RecordID(), "row": toTaskRow(rec), "owner": rec.OwnerID})
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if rows, _ := firstResult(res, 0); len(rows) == 0 {
		return fmt.Errorf("failed to update task: %w", store.ErrNotFound)
	}
	return nil
}

func (s *SurrealStore) DeleteTask(ctx context.Context, owner models.UserID, id models.TaskID) error {
	_, err := surrealdb.Query[any](ctx, s.db,
		"DELETE $rid WHERE owner = $owner",
		map[string]any{"rid": id.RecordID(), "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

type financeRow struct {
	ID        models.FinanceID `json:"id"`
	Owner     models.UserID    `json:"owner"`
	Data      string           `json:"data"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (s *SurrealStore) GetFinance(ctx context.Context, owner models.UserID) (*store.FinanceRecord, error) {
	res, err := surrealdb.Query[[]financeRow](ctx, s.db,
		"SELECT * FROM finance WHERE owner = $owner LIMIT 1",
		map[string]any{"owner": owner})
	if err != nil {
		return nil, fmt.Errorf("failed to get finance: %w", err)
	}
	rows, _ := firstResult(res, 0)
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &store.FinanceRecord{ID: r.ID, OwnerID: r.Owner, Data: datatypes.JSON(r.Data), UpdatedAt: r.UpdatedAt}, nil
}

func (s *SurrealStore) SaveFinance(ctx context.Context, rec *store.FinanceRecord) error {
	// One aggregate per owner: the record key is derived from the owner.
	rec.ID = models.FinanceIDFor(rec.OwnerID)
	row := financeRow{ID: rec.ID, Owner: rec.OwnerID, Data: string(rec.Data), UpdatedAt: rec.UpdatedAt.UTC()}
	_, err := surrealdb.Query[any](ctx, s.db,
		"UPSERT $rid CONTENT $row",
		map[string]any{"rid": rec.ID.RecordID(), "row": row})
	if err != nil {
		return fmt.Errorf("failed to save finance: %w", err)
	}
	return nil
}

type protocolRow struct {
	ID          models.ProtocolID `json:"id"`
	Owner       models.UserID     `json:"owner"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Content     string            `json:"content"`
	StartedAt   time.Time         `json:"started_at"`
	Milestones  string            `json:"milestones"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type habitRow struct {
	ID         models.HabitID `json:"id"`
	Owner      models.UserID  `json:"owner"`
	Name       string         `json:"name"`
	QuitAt     time.Time      `json:"quit_at"`
	DailyCost  int64          `json:"daily_cost"`
	Notes      string         `json:"notes"`
	Milestones string         `json:"milestones"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// saveOwned upserts row at rid unless the record belongs to someone else.
func (s *SurrealStore) saveOwned(ctx context.Context, rid surrealmodels.RecordID, owner models.UserID, row any) error {
	query := `
		BEGIN TRANSACTION;
		LET $existing = $rid.owner;
		IF $existing != NONE AND $existing != $owner { THROW "` + notFoundMessage + `" };
		UPSERT $rid CONTENT $row;
		COMMIT TRANSACTION;
	`
	_, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"rid": rid, "owner": owner, "row": row})
	return mapError(err)
}

func (s *SurrealStore) ListProtocols(ctx context.Context, owner models.UserID) ([]*store.ProtocolRecord, error) {
	res, err := surrealdb.Query[[]protocolRow](ctx, s.db,
		"SELECT * FROM health_protocols WHERE owner = $owner ORDER BY created_at",
		map[string]any{"owner": owner})
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %w", err)
	}
	rows, _ := firstResult(res, 0)
	out := make([]*store.ProtocolRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, &store.ProtocolRecord{
			ID:          r.ID,
			OwnerID:     r.Owner,
			Title:       r.Title,
			Description: r.Description,
			Content:     datatypes.JSON(r.Content),
			StartedAt:   r.StartedAt,
			Milestones:  datatypes.JSON(r.Milestones),
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *SurrealStore) SaveProtocol(ctx context.Context, rec *store.ProtocolRecord) error {
	row := protocolRow{
		ID:          rec.ID,
		Owner:       rec.OwnerID,
		Title:       rec.Title,
		Description: rec.Description,
		Content:     string(rec.Content),
		StartedAt:   rec.StartedAt.UTC(),
		Milestones:  string(rec.Milestones),
		CreatedAt:   rec.CreatedAt.UTC(),
		UpdatedAt:   rec.UpdatedAt.UTC(),
	}
	if err := s.saveOwned(ctx, rec.ID.RecordID(), rec.OwnerID, row); err != nil {
		return fmt.Errorf("failed to save protocol: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteProtocol(ctx context.Context, owner models.UserID, id models.ProtocolID) error {
	_, err := surrealdb.Query[any](ctx, s.db,
		"DELETE $rid WHERE owner = $owner",
		map[string]any{"rid": id.RecordID(), "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to delete protocol: %w", err)
	}
	return nil
}

func (s *SurrealStore) ListHabits(ctx context.Context, owner models.UserID) ([]*store.HabitRecord, error) {
	res, err := surrealdb.Query[[]habitRow](ctx, s.db,
		"SELECT * FROM quit_habits WHERE owner = $owner ORDER BY created_at",
		map[string]any{"owner": owner})
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	rows, _ := firstResult(res, 0)
	out := make([]*store.HabitRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, &store.HabitRecord{
			ID:         r.ID,
			OwnerID:    r.Owner,
			Name:       r.Name,
			QuitAt:     r.QuitAt,
			DailyCost:  r.DailyCost,
			Notes:      r.Notes,
			Milestones: datatypes.JSON(r.Milestones),
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	return out, nil
}

func (s *SurrealStore) SaveHabit(ctx context.Context, rec *store.HabitRecord) error {
	row := habitRow{
		ID:         rec.ID,
		Owner:      rec.OwnerID,
		Name:       rec.Name,
		QuitAt:     rec.QuitAt.UTC(),
		DailyCost:  rec.DailyCost,
		Notes:      rec.Notes,
		Milestones: string(rec.Milestones),
		CreatedAt:  rec.CreatedAt.UTC(),
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}
	if err := s.saveOwned(ctx, rec.ID.RecordID(), rec.OwnerID, row); err != nil {
		return fmt.Errorf("failed to save habit: %w", err)
	}
	return nil
}

func (s *SurrealStore) DeleteHabit(ctx context.Context, owner models.UserID, id models.HabitID) error {
	_, err := surrealdb.Query[any](ctx, s.db,
		"DELETE $rid WHERE owner = $owner",
		map[string]any{"rid": id.RecordID(), "owner": owner})
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the row does not exist for the owner.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
