// Package memstore is an in-process implementation of store.Store.
//
// It backs the "memory://" store URL for local development and is the fake
// remote store of the test suites: failures and stalls can be injected per
// operation with [Store.FailOn], [Store.FailOnce] and [Store.Gate].
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/store"
	"gorm.io/datatypes"
)

// Op names a store operation for fault injection.
type Op string

const (
	OpListDocuments   Op = "ListDocuments"
	OpCreateDocument  Op = "CreateDocument"
	OpUpdateDocument  Op = "UpdateDocument"
	OpDeleteDocuments Op = "DeleteDocuments"
	OpListTasks       Op = "ListTasks"
	OpCreateTask      Op = "CreateTask"
	OpUpdateTask      Op = "UpdateTask"
	OpDeleteTask      Op = "DeleteTask"
	OpGetFinance      Op = "GetFinance"
	OpSaveFinance     Op = "SaveFinance"
	OpListProtocols   Op = "ListProtocols"
	OpSaveProtocol    Op = "SaveProtocol"
	OpDeleteProtocol  Op = "DeleteProtocol"
	OpListHabits      Op = "ListHabits"
	OpSaveHabit       Op = "SaveHabit"
	OpDeleteHabit     Op = "DeleteHabit"
)

type fault struct {
	err  error
	once bool
}

type Store struct {
	mu        sync.Mutex
	documents map[models.DocumentID]*store.DocumentRecord
	tasks     map[models.TaskID]*store.TaskRecord
	finance   map[models.UserID]*store.FinanceRecord
	protocols map[models.ProtocolID]*store.ProtocolRecord
	habits    map[models.HabitID]*store.HabitRecord

	faults map[Op]fault
	gates  map[Op]chan struct{}
	calls  map[Op]int
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		documents: map[models.DocumentID]*store.DocumentRecord{},
		tasks:     map[models.TaskID]*store.TaskRecord{},
		finance:   map[models.UserID]*store.FinanceRecord{},
		protocols: map[models.ProtocolID]*store.ProtocolRecord{},
		habits:    map[models.HabitID]*store.HabitRecord{},
		faults:    map[Op]fault{},
		gates:     map[Op]chan struct{}{},
		calls:     map[Op]int{},
	}
}

// FailOn makes every call of op fail with err until Reset.
func (s *Store) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault{err: err}
}

// FailOnce makes the next call of op fail with err.
func (s *Store) FailOnce(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault{err: err, once: true}
}

// Gate holds every call of op until the returned release func is called or
// the call's context ends.
func (s *Store) Gate(op Op) (release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.gates[op] = ch
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gates[op] == ch {
				delete(s.gates, op)
			}
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Reset clears injected faults. Gates stay until released.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = map[Op]fault{}
}

// Calls reports how many times op was invoked.
func (s *Store) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records the call, waits at the gate and returns the injected fault.
// On success it returns with s.mu held.
func (s *Store) enter(ctx context.Context, op Op) error {
	s.mu.Lock()
	s.calls[op]++
	gate := s.gates[op]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	if f, ok := s.faults[op]; ok {
		if f.once {
			delete(s.faults, op)
		}
		s.mu.Unlock()
		return f.err
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneJSON(j datatypes.JSON) datatypes.JSON {
	if j == nil {
		return nil
	}
	return append(datatypes.JSON{}, j...)
}

func cloneDocument(r *store.DocumentRecord) *store.DocumentRecord {
	out := *r
	out.Blocks = cloneJSON(r.Blocks)
	out.ChildIDs = append(datatypes.JSONSlice[models.DocumentID]{}, r.ChildIDs...)
	if r.ParentID != nil {
		p := *r.ParentID
		out.ParentID = &p
	}
	return &out
}

func (s *Store) ListDocuments(ctx context.Context, owner models.UserID) ([]*store.DocumentRecord, error) {
	if err := s.enter(ctx, OpListDocuments); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := []*store.DocumentRecord{}
	for _, r := range s.documents {
		if r.OwnerID == owner {
			out = append(out, cloneDocument(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateDocument(ctx context.Context, rec *store.DocumentRecord) error {
	if err := s.enter(ctx, OpCreateDocument); err != nil {
		return err
	}
	defer s.mu.Unlock()
	s.documents[rec.ID] = cloneDocument(rec)
	return nil
}

func (s *Store) UpdateDocument(ctx context.Context, rec *store.DocumentRecord) error {
	if err := s.enter(ctx, OpUpdateDocument); err != nil {
		return err
	}
	defer s.mu.Unlock()
	cur, ok := s.documents[rec.ID]
	if !ok || cur.OwnerID != rec.OwnerID {
		return store.ErrNotFound
	}
	s.documents[rec.ID] = cloneDocument(rec)
	return nil
}

func (s *Store) DeleteDocuments(ctx context.Context, owner models.UserID, ids []models.DocumentID) error {
	if err := s.enter(ctx, OpDeleteDocuments); err != nil {
		return err
	}
	defer s.mu.Unlock()
	for _, id := range ids {
		if cur, ok := s.documents[id]; ok && cur.OwnerID != owner {
			return store.ErrNotFound
		}
	}
	for _, id := range ids {
		delete(s.documents, id)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context, owner models.UserID) ([]*store.TaskRecord, error) {
	if err := s.enter(ctx, OpListTasks); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := []*store.TaskRecord{}
	for _, r := range s.tasks {
		if r.OwnerID == owner {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CreateTask(ctx context.Context, rec *store.TaskRecord) error {
	if err := s.enter(ctx, OpCreateTask); err != nil {
		return err
	}
	defer s.mu.Unlock()
	c := *rec
	s.tasks[rec.ID] = &c
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, rec *store.TaskRecord) error {
	if err := s.enter(ctx, OpUpdateTask); err != nil {
		return err
	}
	defer s.mu.Unlock()
	cur, ok := s.tasks[rec.ID]
	if !ok || cur.OwnerID != rec.OwnerID {
		return store.ErrNotFound
	}
	c := *rec
	s.tasks[rec.ID] = &c
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, owner models.UserID, id models.TaskID) error {
	if err := s.enter(ctx, OpDeleteTask); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if cur, ok := s.tasks[id]; ok && cur.OwnerID != owner {
		return store.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) GetFinance(ctx context.Context, owner models.UserID) (*store.FinanceRecord, error) {
	if err := s.enter(ctx, OpGetFinance); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	r, ok := s.finance[owner]
	if !ok {
		return nil, nil
	}
	c := *r
	c.Data = cloneJSON(r.Data)
	return &c, nil
}

func (s *Store) SaveFinance(ctx context.Context, rec *store.FinanceRecord) error {
	if err := s.enter(ctx, OpSaveFinance); err != nil {
		return err
	}
	defer s.mu.Unlock()
	c := *rec
	c.Data = cloneJSON(rec.Data)
	if cur, ok := s.finance[rec.OwnerID]; ok {
		c.ID = cur.ID
	}
	s.finance[rec.OwnerID] = &c
	return nil
}

func (s *Store) ListProtocols(ctx context.Context, owner models.UserID) ([]*store.ProtocolRecord, error) {
	if err := s.enter(ctx, OpListProtocols); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := []*store.ProtocolRecord{}
	for _, r := range s.protocols {
		if r.OwnerID == owner {
			c := *r
			c.Content = cloneJSON(r.Content)
			c.Milestones = cloneJSON(r.Milestones)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveProtocol(ctx context.Context, rec *store.ProtocolRecord) error {
	if err := s.enter(ctx, OpSaveProtocol); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if cur, ok := s.protocols[rec.ID]; ok && cur.OwnerID != rec.OwnerID {
		return store.ErrNotFound
	}
	c := *rec
	c.Content = cloneJSON(rec.Content)
	c.Milestones = cloneJSON(rec.Milestones)
	s.protocols[rec.ID] = &c
	return nil
}

func (s *Store) DeleteProtocol(ctx context.Context, owner models.UserID, id models.ProtocolID) error {
	if err := s.enter(ctx, OpDeleteProtocol); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if cur, ok := s.protocols[id]; ok && cur.OwnerID != owner {
		return store.ErrNotFound
	}
	delete(s.protocols, id)
	return nil
}

func (s *Store) ListHabits(ctx context.Context, owner models.UserID) ([]*store.HabitRecord, error) {
	if err := s.enter(ctx, OpListHabits); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	out := []*store.HabitRecord{}
	for _, r := range s.habits {
		if r.OwnerID == owner {
			c := *r
			c.Milestones = cloneJSON(r.Milestones)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SaveHabit(ctx context.Context, rec *store.HabitRecord) error {
	if err := s.enter(ctx, OpSaveHabit); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if cur, ok := s.habits[rec.ID]; ok && cur.OwnerID != rec.OwnerID {
		return store.ErrNotFound
	}
	c := *rec
	c.Milestones = cloneJSON(rec.Milestones)
	s.habits[rec.ID] = &c
	return nil
}

func (s *Store) DeleteHabit(ctx context.Context, owner models.UserID, id models.HabitID) error {
	if err := s.enter(ctx, OpDeleteHabit); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if cur, ok := s.habits[id]; ok && cur.OwnerID != owner {
		return store.ErrNotFound
	}
	delete(s.habits, id)
	return nil
}

// DocumentCount returns how many documents the owner has, for assertions.
func (s *Store) DocumentCount(owner models.UserID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.documents {
		if r.OwnerID == owner {
			n++
		}
	}
	return n
}

// Document returns a copy of the stored row, for assertions.
func (s *Store) Document(id models.DocumentID) (*store.DocumentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.documents[id]
	if !ok {
		return nil, false
	}
	return cloneDocument(r), true
}

// Task returns a copy of the stored row, for assertions.
func (s *Store) Task(id models.TaskID) (*store.TaskRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	c := *r
	return &c, true
}
