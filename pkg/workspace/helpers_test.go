package workspace

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdesk/pkg/auth"
	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/services"
	"github.com/surrealdb/surrealdesk/pkg/store/memstore"
)

// stubProvider is an auth.Provider whose identity the test sets directly.
type stubProvider struct {
	mu        sync.Mutex
	identity  *auth.Identity
	verifyErr error
	// hold, when set, blocks Verify until closed whatever its context says
	hold chan struct{}
	subs map[int]func(auth.Event)
	next int
}

func newStubProvider() *stubProvider {
	return &stubProvider{subs: map[int]func(auth.Event){}}
}

func (p *stubProvider) Current() *auth.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity.Clone()
}

func (p *stubProvider) Verify(context.Context) (models.UserID, error) {
	p.mu.Lock()
	hold := p.hold
	p.mu.Unlock()
	if hold != nil {
		<-hold
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.verifyErr != nil {
		return models.UserID{}, p.verifyErr
	}
	if p.identity == nil {
		return models.UserID{}, auth.ErrNotSignedIn
	}
	return p.identity.UserID, nil
}

func (p *stubProvider) Subscribe(fn func(auth.Event)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *stubProvider) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *stubProvider) set(uid models.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identity = &auth.Identity{UserID: uid, Email: uid.String() + "@example.com"}
}

func (p *stubProvider) emit(kind auth.EventKind) {
	p.mu.Lock()
	ev := auth.Event{Kind: kind, Identity: p.identity.Clone()}
	if kind == auth.SignedOut {
		p.identity = nil
		ev.Identity = nil
	}
	subs := make([]func(auth.Event), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

type harness struct {
	ctl      *Controller
	store    *memstore.Store
	svc      *services.Services
	provider *stubProvider
	user     models.UserID

	mu       sync.Mutex
	statuses []Status
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		store:    memstore.New(),
		provider: newStubProvider(),
		user:     models.NewUserID(),
	}
	h.svc = services.New(h.store, zerolog.Nop())
	h.provider.set(h.user)
	opts = append([]Option{WithStatusHook(h.record)}, opts...)
	h.ctl = New(servicesOf(h.svc), h.provider, opts...)
	t.Cleanup(h.ctl.Dispose)
	return h
}

func servicesOf(s *services.Services) Services {
	return Services{Documents: s.Documents, Tasks: s.Tasks, Finance: s.Finance, Health: s.Health}
}

func (h *harness) record(s Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statuses = append(h.statuses, s)
}

func (h *harness) seen() []Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Status{}, h.statuses...)
}

// ready loads the harness user's workspace.
func (h *harness) ready(t *testing.T) *harness {
	t.Helper()
	require.NoError(t, h.ctl.LoadForUser(context.Background(), h.user))
	require.Equal(t, StatusReady, h.ctl.Status())
	return h
}

func wait(t *testing.T, p *Pending) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-p.Done():
	case <-ctx.Done():
		t.Fatal("write did not finish")
	}
	return p.Err()
}

func seedDocument(t *testing.T, h *harness, owner models.UserID, title string) *models.Document {
	t.Helper()
	d := models.NewDocument(title, nil, time.Now().UTC())
	require.NoError(t, h.svc.Documents.Create(context.Background(), owner, d))
	return d
}
