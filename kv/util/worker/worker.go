package worker

import (
	"context"

	"github.com/pingcap/errors"
	"golang.org/x/sync/errgroup"
)

type Task interface{}

type TaskHandler interface {
	Handle(ctx context.Context, t Task) error
}

type TaskHandlerFunc func(ctx context.Context, t Task) error

func (f TaskHandlerFunc) Handle(ctx context.Context, t Task) error {
	return f(ctx, t)
}

// Pool runs a fixed number of goroutines which take tasks from a shared queue. The first handler error cancels the
// pool's context and stops every goroutine.
type Pool struct {
	name     string
	size     int
	sender   chan<- Task
	receiver <-chan Task
	group    *errgroup.Group
	ctx      context.Context
}

func (p *Pool) Start(ctx context.Context, handler TaskHandler) {
	p.group, p.ctx = errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		p.group.Go(func() error {
			for {
				select {
				case <-p.ctx.Done():
					return nil
				case task, ok := <-p.receiver:
					if !ok {
						return nil
					}
					if err := handler.Handle(p.ctx, task); err != nil {
						return err
					}
				}
			}
		})
	}
}

// Submit queues a task, waiting for room in the queue. It fails once the pool has been cancelled.
func (p *Pool) Submit(t Task) error {
	if err := p.ctx.Err(); err != nil {
		return errors.Annotatef(err, "worker pool %s", p.name)
	}
	select {
	case <-p.ctx.Done():
		return errors.Annotatef(p.ctx.Err(), "worker pool %s", p.name)
	case p.sender <- t:
		return nil
	}
}

// Context is cancelled when the context passed to Start is, or when a handler fails.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Stop closes the queue. Goroutines exit once they have drained it.
func (p *Pool) Stop() {
	close(p.sender)
}

// Wait blocks until every goroutine has exited and returns the first handler error.
func (p *Pool) Wait() error {
	return p.group.Wait()
}

func (p *Pool) Size() int {
	return p.size
}

const defaultWorkerCapacity = 128

func NewPool(name string, size int) *Pool {
	ch := make(chan Task, defaultWorkerCapacity)
	return &Pool{
		sender:   (chan<- Task)(ch),
		receiver: (<-chan Task)(ch),
		name:     name,
		size:     size,
	}
}
