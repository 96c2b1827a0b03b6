// Package opqueue serializes folder mutations through a strict FIFO,
// single-concurrency execution engine. Two interleaved mutations against the
// same parent could both pass conflict detection and then both write,
// reintroducing the very collision the detector exists to prevent, so only
// one operation's execute runs at a time.
package opqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"notarium/internal/domain"
)

// Status is the lifecycle state of a queued operation:
// pending -> processing -> {completed | failed | conflict}.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusConflict   Status = "conflict"
)

// Kind identifies the mutation a queued operation performs.
type Kind string

const (
	KindCreate  Kind = "create"
	KindMove    Kind = "move"
	KindRename  Kind = "rename"
	KindDelete  Kind = "delete"
	KindReplace Kind = "replace"
)

// Operation is a deferred unit of work. Execute returns nil on success, a
// conflict-class error (domain.IsConflict) to pause the queue, or any other
// error to mark the item failed.
type Operation struct {
	ID      string
	Kind    Kind
	Execute func(ctx context.Context) error
}

// Outcome reports how an operation left the queue.
type Outcome struct {
	Status Status
	Err    error
}

// Transition is pushed to the observer hook on every status change.
type Transition struct {
	ID     string
	Kind   Kind
	Status Status
}

type item struct {
	op      Operation
	status  Status
	done    chan Outcome
	resolve sync.Once
}

func (it *item) finish(out Outcome) {
	it.resolve.Do(func() {
		it.done <- out
		close(it.done)
	})
}

// Queue executes operations one at a time in enqueue order. A conflict at
// the head halts draining with the head retained, blocking everything
// behind it until Resume or Clear; a hard failure removes the item and
// draining continues.
type Queue struct {
	mu       sync.Mutex
	items    []*item
	draining bool
	paused   bool

	timeout      time.Duration
	logger       *slog.Logger
	onTransition func(Transition)
}

// QueueOption customizes a Queue.
type QueueOption func(*Queue)

// WithTimeout bounds each operation's execute so a stalled persistence call
// cannot wedge the queue; a timed-out operation surfaces as failed.
func WithTimeout(d time.Duration) QueueOption {
	return func(q *Queue) { q.timeout = d }
}

// WithTransitionHook registers an observer invoked on every status change.
func WithTransitionHook(fn func(Transition)) QueueOption {
	return func(q *Queue) { q.onTransition = fn }
}

// New creates an idle queue.
func New(logger *slog.Logger, opts ...QueueOption) *Queue {
	q := &Queue{logger: logger}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a pending operation and starts draining if the queue is
// idle. The returned channel resolves exactly once, when this item leaves
// the queue or enters conflict.
func (q *Queue) Enqueue(op Operation) <-chan Outcome {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	it := &item{
		op:     op,
		status: StatusPending,
		done:   make(chan Outcome, 1),
	}

	// Pending is observed before the item is visible to the drain loop, so
	// the hook sees transitions in state-machine order even mid-drain.
	q.notify(Transition{ID: op.ID, Kind: op.Kind, Status: StatusPending})

	q.mu.Lock()
	q.items = append(q.items, it)
	start := !q.draining && !q.paused
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
	return it.done
}

// Resume discards a conflicted head item and continues draining. The
// conflict is assumed resolved out-of-band, typically by the caller issuing
// a replacement operation. It is a no-op unless the head is in conflict.
func (q *Queue) Resume() {
	q.mu.Lock()
	if !q.paused || len(q.items) == 0 || q.items[0].status != StatusConflict {
		q.mu.Unlock()
		return
	}
	q.items = q.items[1:]
	q.paused = false
	start := len(q.items) > 0 && !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	q.logger.Debug("operation queue resumed", "pending", q.Len())
	if start {
		go q.drain()
	}
}

// Clear unconditionally empties the queue and resets to idle. Every
// abandoned waiter, including the in-flight item's, resolves with
// ErrQueueCleared; an in-flight execute cannot be preempted, but its
// result is discarded when it lands.
func (q *Queue) Clear() {
	q.mu.Lock()
	abandoned := q.items
	q.items = nil
	q.paused = false
	q.mu.Unlock()

	for _, it := range abandoned {
		it.finish(Outcome{Status: StatusFailed, Err: domain.ErrQueueCleared})
	}
	if len(abandoned) > 0 {
		q.logger.Info("operation queue cleared", "abandoned", len(abandoned))
	}
}

// Len returns the number of items still in the queue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HeadStatus returns the head item's status, or false on an empty queue.
func (q *Queue) HeadStatus() (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	return q.items[0].status, true
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		it := q.items[0]
		it.status = StatusProcessing
		q.mu.Unlock()
		q.notify(Transition{ID: it.op.ID, Kind: it.op.Kind, Status: StatusProcessing})

		err := q.execute(it.op)

		q.mu.Lock()
		if len(q.items) == 0 || q.items[0] != it {
			// Cleared mid-execution; the waiter was already resolved and
			// the result is discarded. Keep draining whatever arrived since.
			q.mu.Unlock()
			continue
		}
		switch {
		case err == nil:
			it.status = StatusCompleted
			q.items = q.items[1:]
			q.mu.Unlock()
			q.notify(Transition{ID: it.op.ID, Kind: it.op.Kind, Status: StatusCompleted})
			it.finish(Outcome{Status: StatusCompleted})
		case domain.IsConflict(err):
			// The head stays queued, blocking everything behind it until the
			// conflict is resolved. Backpressure, not a bug: later operations
			// must not run against a snapshot that does not yet reflect this
			// operation's eventual outcome.
			it.status = StatusConflict
			q.paused = true
			q.draining = false
			q.mu.Unlock()
			q.notify(Transition{ID: it.op.ID, Kind: it.op.Kind, Status: StatusConflict})
			q.logger.Info("operation queue paused on conflict", "op_id", it.op.ID, "kind", it.op.Kind, "error", err)
			it.finish(Outcome{Status: StatusConflict, Err: err})
			return
		default:
			it.status = StatusFailed
			q.items = q.items[1:]
			q.mu.Unlock()
			q.notify(Transition{ID: it.op.ID, Kind: it.op.Kind, Status: StatusFailed})
			q.logger.Warn("queued operation failed", "op_id", it.op.ID, "kind", it.op.Kind, "error", err)
			it.finish(Outcome{Status: StatusFailed, Err: err})
		}
	}
}

func (q *Queue) execute(op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation %s panicked: %v", op.ID, r)
		}
	}()

	ctx := context.Background()
	if q.timeout <= 0 {
		return op.Execute(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("operation %s panicked: %v", op.ID, r)
			}
		}()
		result <- op.Execute(ctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("operation %s timed out: %w", op.ID, ctx.Err())
	}
}

func (q *Queue) notify(t Transition) {
	if q.onTransition != nil {
		q.onTransition(t)
	}
}
