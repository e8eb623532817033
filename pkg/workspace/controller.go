package workspace

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/surrealdb/surrealdesk/pkg/auth"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLoadTimeout  = 8 * time.Second
	DefaultWriteTimeout = 10 * time.Second
)

// Controller is the workspace of one session. Create one per session with
// New and release it with Dispose.
type Controller struct {
	svc          Services
	provider     auth.Provider
	log          zerolog.Logger
	now          func() time.Time
	loadTimeout  time.Duration
	writeTimeout time.Duration
	onStatus     func(Status)

	baseCtx    context.Context
	baseCancel context.CancelFunc
	queue      *writeQueue

	mu         sync.RWMutex
	status     Status
	changed    chan struct{}
	user       models.UserID
	gen        uint64
	loadCancel context.CancelFunc
	failure    *Failure
	disposed   bool
	unsub      func()

	docs     map[models.DocumentID]*models.Document
	tasks    map[models.TaskID]*models.DailyTask
	finance  models.FinanceData
	health   models.HealthData
	verified bool

	// Last state the store accepted, per entity.
	confDocs      map[models.DocumentID]*models.Document
	confTasks     map[models.TaskID]*models.DailyTask
	confFinance   models.FinanceData
	confProtocols map[models.ProtocolID]models.HealthProtocol
	confHabits    map[models.HabitID]models.QuitHabit
}

type Option func(*Controller)

func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) {
		c.log = log.With().Str("component", "workspace").Logger()
	}
}

// WithLoadTimeout bounds LoadForUser. The default is 8 seconds.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Controller) { c.loadTimeout = d }
}

// WithWriteTimeout bounds each remote write. The default is 10 seconds.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Controller) { c.writeTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithStatusHook calls fn on every status transition, under the controller
// lock. fn must not call back into the controller.
func WithStatusHook(fn func(Status)) Option {
	return func(c *Controller) { c.onStatus = fn }
}

// New creates an idle controller following provider's change feed.
func New(svc Services, provider auth.Provider, opts ...Option) *Controller {
	c := &Controller{
		svc:          svc,
		provider:     provider,
		log:          zerolog.Nop(),
		now:          time.Now,
		loadTimeout:  DefaultLoadTimeout,
		writeTimeout: DefaultWriteTimeout,
		changed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())
	c.queue = newWriteQueue(func(j *job) { go c.run(j) })
	c.resetLocked()
	if provider != nil {
		c.unsub = provider.Subscribe(c.onIdentity)
	}
	return c
}

func (c *Controller) stamp() time.Time {
	return c.now().UTC()
}

func (c *Controller) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.log.Debug().Stringer("from", c.status).Stringer("to", s).Msg("status")
	c.status = s
	close(c.changed)
	c.changed = make(chan struct{})
	if c.onStatus != nil {
		c.onStatus(s)
	}
}

// AwaitLoad blocks while a load is in progress. It returns nil once the
// workspace is Ready, the failure when it is Errored and ErrNotReady when
// it went back to Idle.
func (c *Controller) AwaitLoad(ctx context.Context) error {
	for {
		c.mu.RLock()
		status, changed, failure, disposed := c.status, c.changed, c.failure, c.disposed
		c.mu.RUnlock()

		if disposed {
			return ErrDisposed
		}
		switch status {
		case StatusReady:
			return nil
		case StatusErrored:
			if failure != nil {
				return failure
			}
			return ErrNotReady
		case StatusIdle:
			return ErrNotReady
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// resetLocked empties all collections and confirmed copies.
func (c *Controller) resetLocked() {
	c.docs = map[models.DocumentID]*models.Document{}
	c.tasks = map[models.TaskID]*models.DailyTask{}
	c.finance = models.EmptyFinance()
	c.health = models.EmptyHealth()
	c.verified = false
	c.confDocs = map[models.DocumentID]*models.Document{}
	c.confTasks = map[models.TaskID]*models.DailyTask{}
	c.confFinance = models.EmptyFinance()
	c.confProtocols = map[models.ProtocolID]models.HealthProtocol{}
	c.confHabits = map[models.HabitID]models.QuitHabit{}
}

// clearLocked drops the workspace and invalidates in-flight loads and
// writes.
func (c *Controller) clearLocked() {
	c.gen++
	if c.loadCancel != nil {
		c.loadCancel()
		c.loadCancel = nil
	}
	c.resetLocked()
	c.setStatusLocked(StatusCleared)
}

func (c *Controller) recordFailureLocked(kind FailureKind, op string, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		c.failure = f
		return f
	}
	f = &Failure{Kind: kind, Op: op, Err: err, At: c.stamp()}
	c.failure = f
	c.log.Warn().Err(err).Str("kind", string(kind)).Str("op", op).Msg("workspace failure")
	return f
}

// LoadForUser replaces the workspace with uid's data. The provider must
// vouch for uid before anything is fetched. A load superseded by a later
// load or user change returns ErrSuperseded and leaves no trace.
func (c *Controller) LoadForUser(ctx context.Context, uid models.UserID) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.user != uid {
		c.clearLocked()
		c.user = uid
	} else {
		c.gen++
		if c.loadCancel != nil {
			c.loadCancel()
		}
	}
	gen := c.gen
	c.failure = nil
	lctx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	c.loadCancel = cancel
	c.setStatusLocked(StatusLoading)
	c.mu.Unlock()
	defer cancel()

	verified, err := c.verify(lctx)
	if err == nil && verified != uid {
		err = ErrUserMismatch
	}
	if err != nil {
		switch lctx.Err() {
		case context.DeadlineExceeded:
			return c.failLoad(gen, FailureTimeout, ErrTimeout)
		case nil:
			return c.failLoad(gen, FailureAuth, err)
		default:
			return c.failLoad(gen, FailureFetch, lctx.Err())
		}
	}

	var (
		docs    []*models.Document
		tasks   []*models.DailyTask
		finance models.FinanceData
		health  models.HealthData
	)
	g, gctx := errgroup.WithContext(lctx)
	g.Go(func() error {
		docs = c.svc.Documents.GetAll(gctx, uid)
		return nil
	})
	g.Go(func() error {
		tasks = c.svc.Tasks.GetAll(gctx, uid)
		return nil
	})
	g.Go(func() error {
		finance = c.svc.Finance.Get(gctx, uid)
		return nil
	})
	g.Go(func() error {
		health = c.svc.Health.GetAll(gctx, uid)
		return nil
	})

	fetched := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(fetched)
	}()
	select {
	case <-fetched:
	case <-lctx.Done():
	}
	if err := lctx.Err(); err != nil {
		if err == context.DeadlineExceeded {
			return c.failLoad(gen, FailureTimeout, ErrTimeout)
		}
		return c.failLoad(gen, FailureFetch, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrSuperseded
	}
	c.resetLocked()
	for _, d := range docs {
		c.docs[d.ID] = d
	}
	repairTree(c.docs)
	for id, d := range c.docs {
		c.confDocs[id] = d.Clone()
	}
	for _, t := range tasks {
		c.tasks[t.ID] = t
		c.confTasks[t.ID] = t.Clone()
	}
	finance.Normalize()
	c.finance = finance
	c.confFinance = finance.Clone()
	if health.Protocols == nil {
		health.Protocols = []models.HealthProtocol{}
	}
	if health.Habits == nil {
		health.Habits = []models.QuitHabit{}
	}
	c.health = health
	for _, p := range health.Protocols {
		c.confProtocols[p.ID] = p.Clone()
	}
	for _, h := range health.Habits {
		c.confHabits[h.ID] = h.Clone()
	}
	c.verified = true
	c.loadCancel = nil
	c.setStatusLocked(StatusReady)
	c.log.Info().Stringer("user", uid).Int("documents", len(docs)).Int("tasks", len(tasks)).Msg("workspace loaded")
	return nil
}

// verify asks the provider to vouch for the identity, giving up when ctx
// ends even if the provider does not.
func (c *Controller) verify(ctx context.Context) (models.UserID, error) {
	if c.provider == nil {
		return models.UserID{}, auth.ErrNotSignedIn
	}
	type result struct {
		uid models.UserID
		err error
	}
	done := make(chan result, 1)
	go func() {
		uid, err := c.provider.Verify(ctx)
		done <- result{uid, err}
	}()
	select {
	case r := <-done:
		return r.uid, r.err
	case <-ctx.Done():
		return models.UserID{}, ctx.Err()
	}
}

// failLoad moves a still current load to Errored. Data of a rejected
// identity is never admitted, so anything left over from a previous load of
// another user is already gone.
func (c *Controller) failLoad(gen uint64, kind FailureKind, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return ErrSuperseded
	}
	if kind == FailureAuth {
		c.resetLocked()
	}
	c.loadCancel = nil
	f := c.recordFailureLocked(kind, "load", err)
	c.setStatusLocked(StatusErrored)
	return f
}

// onIdentity follows the provider's change feed. Loads run in their own
// goroutine because the provider is still delivering the event.
func (c *Controller) onIdentity(ev auth.Event) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	switch ev.Kind {
	case auth.SignedOut:
		loading := c.status == StatusLoading
		c.clearLocked()
		c.user = models.UserID{}
		if loading {
			// The identity was lost while the load was verifying it.
			c.recordFailureLocked(FailureAuth, "load", auth.ErrSessionExpired)
			c.setStatusLocked(StatusErrored)
		} else {
			c.setStatusLocked(StatusIdle)
		}
		c.mu.Unlock()
		return

	case auth.SignedIn, auth.TokenRefreshed:
		if ev.Identity == nil {
			// Refresh racing a sign-out; the SignedOut event follows.
			c.mu.Unlock()
			return
		}
		uid := ev.Identity.UserID
		if uid == c.user && c.status != StatusIdle && c.status != StatusErrored {
			c.mu.Unlock()
			return
		}
		if ev.Kind == auth.TokenRefreshed && uid == c.user {
			c.mu.Unlock()
			return
		}
		if uid != c.user {
			c.clearLocked()
			c.user = uid
		}
		ctx := c.baseCtx
		c.mu.Unlock()

		go func() {
			if err := c.LoadForUser(ctx, uid); err != nil && !errors.Is(err, ErrSuperseded) {
				c.log.Warn().Err(err).Stringer("user", uid).Msg("load after sign-in failed")
			}
		}()
		return
	}
	c.mu.Unlock()
}

// Dispose stops following the change feed, abandons queued writes and
// clears the workspace. The controller cannot be used afterwards.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	unsub := c.unsub
	c.unsub = nil
	c.clearLocked()
	c.user = models.UserID{}
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.baseCancel()
}

// Flush waits until every queued write has finished.
func (c *Controller) Flush(ctx context.Context) error {
	return c.queue.wait(ctx)
}

func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// UserID returns the user the workspace belongs to, zero when signed out.
func (c *Controller) UserID() models.UserID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Err returns the most recent failure, or nil.
func (c *Controller) Err() *Failure {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.failure == nil {
		return nil
	}
	f := *c.failure
	return &f
}

func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = nil
}

// mutableLocked reports whether mutators may change the workspace.
func (c *Controller) mutableLocked() error {
	if c.disposed {
		return ErrDisposed
	}
	if c.status != StatusReady || !c.verified {
		return ErrNotReady
	}
	return nil
}

// enqueueLocked queues a write for the current generation.
func (c *Controller) enqueueLocked(op string, keys []string, prepare func() *step) *Pending {
	j := &job{
		op:      op,
		keys:    keys,
		gen:     c.gen,
		owner:   c.user,
		prepare: prepare,
		pending: newPending(),
	}
	c.queue.push(j)
	return j.pending
}

func (c *Controller) run(j *job) {
	defer c.queue.done(j)

	c.mu.Lock()
	if c.gen != j.gen || c.disposed {
		c.mu.Unlock()
		j.pending.resolve(ErrSuperseded)
		return
	}
	st := j.prepare()
	c.mu.Unlock()
	if st == nil {
		j.pending.resolve(nil)
		return
	}
	if st.skip != nil {
		j.pending.resolve(st.skip)
		return
	}

	ctx, cancel := context.WithTimeout(c.baseCtx, c.writeTimeout)
	err := st.call(ctx)
	cancel()

	c.mu.Lock()
	if c.gen != j.gen {
		c.mu.Unlock()
		if err != nil {
			err = ErrSuperseded
		}
		j.pending.resolve(err)
		return
	}
	var out error
	if err == nil {
		if st.commit != nil {
			st.commit()
		}
	} else {
		if st.rollback != nil {
			st.rollback(err)
		}
		repairTree(c.docs)
		out = c.recordFailureLocked(FailureMutation, j.op, err)
	}
	c.mu.Unlock()
	j.pending.resolve(out)
}

// State is a deep copy of the workspace.
type State struct {
	Status    Status              `json:"status"`
	UserID    models.UserID       `json:"userId"`
	Documents []*models.Document  `json:"documents"`
	RootIDs   []models.DocumentID `json:"rootIds"`
	Tasks     []*models.DailyTask `json:"tasks"`
	Finance   models.FinanceData  `json:"finance"`
	Health    models.HealthData   `json:"health"`
	Error     *Failure            `json:"error,omitempty"`
}

// Snapshot returns a deep copy of the whole workspace.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := State{
		Status:    c.status,
		UserID:    c.user,
		Documents: c.documentsLocked(),
		Tasks:     c.tasksLocked(),
		Finance:   c.finance.Clone(),
		Health:    c.health.Clone(),
	}
	for _, d := range c.rootsLocked() {
		st.RootIDs = append(st.RootIDs, d.ID)
	}
	if st.RootIDs == nil {
		st.RootIDs = []models.DocumentID{}
	}
	if c.failure != nil {
		f := *c.failure
		st.Error = &f
	}
	return st
}

func (c *Controller) Document(id models.DocumentID) (*models.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

// Documents returns every document ordered by creation.
func (c *Controller) Documents() []*models.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.documentsLocked()
}

// RootDocuments returns the documents without a parent, ordered by creation.
func (c *Controller) RootDocuments() []*models.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	roots := c.rootsLocked()
	out := make([]*models.Document, len(roots))
	for i, d := range roots {
		out[i] = d.Clone()
	}
	return out
}

// Children returns the children of id in their stored order.
func (c *Controller) Children(id models.DocumentID) []*models.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	if !ok {
		return nil
	}
	out := make([]*models.Document, 0, len(d.ChildIDs))
	for _, cid := range d.ChildIDs {
		if child, ok := c.docs[cid]; ok {
			out = append(out, child.Clone())
		}
	}
	return out
}

func (c *Controller) documentsLocked() []*models.Document {
	out := make([]*models.Document, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, d.Clone())
	}
	sortDocuments(out)
	return out
}

func (c *Controller) rootsLocked() []*models.Document {
	var out []*models.Document
	for _, d := range c.docs {
		if d.IsRoot() {
			out = append(out, d)
		}
	}
	sortDocuments(out)
	return out
}

func sortDocuments(docs []*models.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID.String() < docs[j].ID.String()
	})
}

func (c *Controller) Task(id models.TaskID) (*models.DailyTask, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Tasks returns every task ordered by creation.
func (c *Controller) Tasks() []*models.DailyTask {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tasksLocked()
}

func (c *Controller) tasksLocked() []*models.DailyTask {
	out := make([]*models.DailyTask, 0, len(c.tasks))
	for _, t := range c.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (c *Controller) Finance() models.FinanceData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.finance.Clone()
}

func (c *Controller) Health() models.HealthData {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.health.Clone()
}
