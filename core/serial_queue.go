package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const serialQueueBuffer = 100

// SerialQueue binds a dedicated goroutine that executes posted tasks one at a
// time in FIFO order. Every timer owns one unless a queue is configured.
//
// Tasks may call Shutdown on their own queue; the loop exits once the current
// task and every task accepted before the shutdown have run.
type SerialQueue struct {
	name         string
	workQueue    chan Task
	logger       Logger
	panicHandler PanicHandler

	// Lifecycle control
	ctx          context.Context
	cancel       context.CancelFunc
	stopped      chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	closed       atomic.Bool

	// postMu lets the loop wait out in-flight posts before draining, so an
	// accepted task is never lost.
	postMu sync.RWMutex

	executed atomic.Int64
	panics   atomic.Int64
}

var _ RejectingTaskRunner = (*SerialQueue)(nil)

// NewSerialQueue creates and starts a SerialQueue named "chronos.queue.<uuid>".
func NewSerialQueue() *SerialQueue {
	return NewSerialQueueWithConfig("", nil, nil)
}

// NewSerialQueueWithConfig creates and starts a SerialQueue.
// A nil logger or panic handler is replaced by the default implementation.
func NewSerialQueueWithConfig(name string, logger Logger, panicHandler PanicHandler) *SerialQueue {
	if name == "" {
		name = "chronos.queue." + uuid.NewString()
	}
	if logger == nil {
		logger = NewDefaultLogger()
	}
	if panicHandler == nil {
		panicHandler = &DefaultPanicHandler{Logger: logger}
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &SerialQueue{
		name:         name,
		workQueue:    make(chan Task, serialQueueBuffer),
		logger:       logger,
		panicHandler: panicHandler,
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
	}

	go q.runLoop()

	return q
}

// Name returns the queue name.
func (q *SerialQueue) Name() string {
	return q.name
}

// PostTask enqueues task. Tasks posted after Shutdown are dropped.
func (q *SerialQueue) PostTask(task Task) {
	q.TryPostTask(task)
}

// TryPostTask enqueues task and reports whether it was accepted.
// An accepted task always runs, even if Shutdown follows immediately.
func (q *SerialQueue) TryPostTask(task Task) bool {
	q.postMu.RLock()
	defer q.postMu.RUnlock()

	if q.closed.Load() {
		q.logger.Debug("task dropped, queue closed", F("queue", q.name))
		return false
	}

	select {
	case <-q.ctx.Done():
		q.logger.Debug("task dropped, queue closed", F("queue", q.name))
		return false
	case q.workQueue <- task:
		return true
	}
}

// Shutdown stops accepting tasks and lets the loop exit after the tasks
// already accepted. It does not wait and is safe to call from a task on this queue.
func (q *SerialQueue) Shutdown() {
	q.shutdownOnce.Do(func() {
		q.closed.Store(true)
		q.cancel()
	})
}

// Stop shuts the queue down and waits for the loop to exit.
// Calling Stop from a task on this queue deadlocks; use Shutdown there.
func (q *SerialQueue) Stop() {
	q.stopOnce.Do(func() {
		q.Shutdown()
		<-q.stopped
	})
}

// IsClosed returns true once Shutdown or Stop has been called.
func (q *SerialQueue) IsClosed() bool {
	return q.closed.Load()
}

// WaitIdle blocks until every task posted before the call has run.
// It posts a barrier task and waits for it, ctx, or shutdown.
func (q *SerialQueue) WaitIdle(ctx context.Context) error {
	if q.IsClosed() {
		return ErrQueueClosed
	}

	done := make(chan struct{})
	if !q.TryPostTask(func(context.Context) {
		close(done)
	}) {
		return ErrQueueClosed
	}

	select {
	case <-done:
		return nil
	case <-q.stopped:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the queue's counters.
func (q *SerialQueue) Stats() QueueStats {
	return QueueStats{
		Name:     q.name,
		Pending:  len(q.workQueue),
		Executed: q.executed.Load(),
		Panics:   q.panics.Load(),
		Closed:   q.closed.Load(),
	}
}

// runLoop occupies the queue's dedicated goroutine
func (q *SerialQueue) runLoop() {
	defer close(q.stopped)

	for {
		select {
		case task := <-q.workQueue:
			q.execute(task)
		case <-q.ctx.Done():
			q.drain()
			return
		}
	}
}

// drain runs the tasks accepted before shutdown. Their ctx is already
// cancelled.
func (q *SerialQueue) drain() {
	// Every post that started before Shutdown has either landed or given up
	// once the write lock is acquired.
	q.postMu.Lock()
	q.postMu.Unlock()

	for {
		select {
		case task := <-q.workQueue:
			q.execute(task)
		default:
			return
		}
	}
}

func (q *SerialQueue) execute(task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			q.panics.Add(1)
			q.panicHandler.HandlePanic(q.ctx, q.name, -1, rec, debug.Stack())
		}
		q.executed.Add(1)
	}()
	task(q.ctx)
}
