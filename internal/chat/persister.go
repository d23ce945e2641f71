package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type task struct {
	name string
	run  func(ctx context.Context) error
}

// Persister runs store writes off the broadcast path. Submitted tasks are
// executed in submission order by a single worker, each under its own
// timeout. A failed or dropped task is logged and never reaches the caller.
type Persister struct {
	queue   chan task
	timeout time.Duration
	log     *slog.Logger
	metrics Metrics

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewPersister starts a persister with room for size pending tasks.
func NewPersister(log *slog.Logger, metrics Metrics, size int, timeout time.Duration) *Persister {
	if size <= 0 {
		size = 1024
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	p := &Persister{
		queue:   make(chan task, size),
		timeout: timeout,
		log:     log,
		metrics: metrics,
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Submit queues fn without blocking. It returns false when the queue is full
// or the persister is closed; the task is then dropped.
func (p *Persister) Submit(name string, fn func(ctx context.Context) error) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.log.Warn("persist task after close dropped", "task", name)
		p.metrics.PersistFailed()
		return false
	}

	select {
	case p.queue <- task{name: name, run: fn}:
		return true
	default:
		p.log.Error("persist queue full, task dropped", "task", name, "capacity", cap(p.queue))
		p.metrics.PersistFailed()
		return false
	}
}

func (p *Persister) run() {
	defer close(p.done)
	for t := range p.queue {
		p.execute(t)
	}
}

func (p *Persister) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("persist task panicked", "task", t.name, "panic", r)
			p.metrics.PersistFailed()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := t.run(ctx); err != nil {
		p.log.Error("persist task failed", "task", t.name, "error", err)
		p.metrics.PersistFailed()
	}
}

// Close stops accepting tasks and waits for queued ones to finish, giving up
// after timeout.
func (p *Persister) Close(timeout time.Duration) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
