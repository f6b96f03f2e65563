package queue

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"message-notifier/internal/common/errors"
	"message-notifier/internal/common/logger"
)

// Pool is an in-process trigger. Each id hashes to one worker, so cycles for
// the same notification always run one after another.
type Pool struct {
	mu     sync.RWMutex
	closed bool

	queues  []chan string
	handle  DispatchFunc
	timeout time.Duration
	logger  logger.Logger
	wg      sync.WaitGroup
}

// NewPool starts workers goroutines, each with a buffer of queueSize ids.
// timeout bounds a single cycle; zero means no bound.
func NewPool(workers, queueSize int, timeout time.Duration, handle DispatchFunc, log logger.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}

	p := &Pool{
		queues:  make([]chan string, workers),
		handle:  handle,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "dispatch-pool"}),
	}
	for i := range p.queues {
		p.queues[i] = make(chan string, queueSize)
		p.wg.Add(1)
		go p.run(i, p.queues[i])
	}
	return p
}

// Enqueue accepts id without blocking. A full worker buffer is reported as an
// enqueue failure; the notification stays pending.
func (p *Pool) Enqueue(_ context.Context, id string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.NewEnqueueFailedError(id, ErrStopped)
	}

	select {
	case p.queues[p.slot(id)] <- id:
		return nil
	default:
		return errors.NewEnqueueFailedError(id, ErrQueueFull)
	}
}

// Close stops accepting ids and waits until every queued cycle has finished.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) slot(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(p.queues)))
}

func (p *Pool) run(worker int, q <-chan string) {
	defer p.wg.Done()
	for id := range q {
		p.process(worker, id)
	}
}

func (p *Pool) process(worker int, id string) {
	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.handle(ctx, id); err != nil {
		p.logger.Error("dispatch cycle failed", map[string]interface{}{
			"worker":         worker,
			"notificationId": id,
			"error":          err,
		})
	}
}
