package workspace

import (
	"context"
	"sync"
)

// Pending is the outcome of a write that is persisted in the background.
// The in-memory change is already visible when the Pending is returned.
type Pending struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// resolved returns a Pending that has already finished with err.
func resolved(err error) *Pending {
	p := newPending()
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the write has been persisted or rolled back.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the outcome once Done is closed, nil before.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the write finished and returns its outcome. A rolled
// back write returns a *Failure.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
