package workspace

import (
	"context"
	"sync"

	"github.com/surrealdb/surrealdesk/pkg/models"
)

// step is one prepared remote write. call runs without the controller lock;
// commit or rollback run under it afterwards. A step with skip set writes
// nothing and resolves its Pending with skip, leaving the error slot alone.
type step struct {
	call     func(ctx context.Context) error
	commit   func()
	rollback func(err error)
	skip     error
}

// job is a queued write. prepare runs under the controller lock right
// before the write, so it sends whatever the entities look like then. A nil
// step means there is nothing left to write.
type job struct {
	op      string
	keys    []string
	gen     uint64
	owner   models.UserID
	prepare func() *step
	pending *Pending

	// lanes in which the job is not yet at the head
	blocked int
}

// writeQueue serializes writes per entity. Each key has a FIFO lane; a job
// is queued in the lanes of every entity it touches and starts once it heads
// all of them. Jobs are added to all their lanes atomically, so lanes agree
// on the relative order of any two jobs and the oldest waiting job can
// always run.
type writeQueue struct {
	mu       sync.Mutex
	lanes    map[string][]*job
	inflight int
	idle     chan struct{}
	start    func(*job)
}

func newWriteQueue(start func(*job)) *writeQueue {
	idle := make(chan struct{})
	close(idle)
	return &writeQueue{
		lanes: map[string][]*job{},
		idle:  idle,
		start: start,
	}
}

func (q *writeQueue) push(j *job) {
	j.keys = dedupe(j.keys)

	q.mu.Lock()
	if q.inflight == 0 {
		q.idle = make(chan struct{})
	}
	q.inflight++
	j.blocked = 0
	for _, k := range j.keys {
		lane := q.lanes[k]
		if len(lane) > 0 {
			j.blocked++
		}
		q.lanes[k] = append(lane, j)
	}
	ready := j.blocked == 0
	q.mu.Unlock()

	if ready {
		q.start(j)
	}
}

// done removes a finished job and starts the jobs it was holding back.
func (q *writeQueue) done(j *job) {
	var ready []*job

	q.mu.Lock()
	for _, k := range j.keys {
		lane := q.lanes[k]
		if len(lane) == 0 || lane[0] != j {
			continue
		}
		lane = lane[1:]
		if len(lane) == 0 {
			delete(q.lanes, k)
			continue
		}
		q.lanes[k] = lane
		next := lane[0]
		next.blocked--
		if next.blocked == 0 {
			ready = append(ready, next)
		}
	}
	q.inflight--
	if q.inflight == 0 {
		close(q.idle)
	}
	q.mu.Unlock()

	for _, r := range ready {
		q.start(r)
	}
}

// wait blocks until no job is queued or running.
func (q *writeQueue) wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// depth reports how many jobs wait in or hold key's lane.
func (q *writeQueue) depth(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lanes[key])
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func docKey(id models.DocumentID) string      { return "documents:" + id.String() }
func taskKey(id models.TaskID) string         { return "daily_tasks:" + id.String() }
func protocolKey(id models.ProtocolID) string { return "health_protocols:" + id.String() }
func habitKey(id models.HabitID) string       { return "quit_habits:" + id.String() }

const financeKey = "finance"
