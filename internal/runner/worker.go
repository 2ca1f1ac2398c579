package runner

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// baseWorker holds the machinery shared by every pool worker: a name for
// logging, a stop channel, and the stopped flag guarding double-close.
type baseWorker struct {
	name     string
	logger   *zap.Logger
	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
}

func newBaseWorker(name string, logger *zap.Logger) *baseWorker {
	return &baseWorker{
		name:     name,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

func (w *baseWorker) Name() string {
	return w.name
}

func (w *baseWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.logger.Debug("stopping worker", zap.String("name", w.name))
	close(w.stopChan)
	w.stopped = true
	return nil
}

func (w *baseWorker) StopChan() <-chan struct{} {
	return w.stopChan
}

// taskWorker pulls Tasks off a shared queue and runs them to completion
// via process, until the queue closes, the context is cancelled, or Stop
// is called.
type taskWorker struct {
	*baseWorker
	tasks   <-chan Task
	results chan<- Outcome
	process func(context.Context, Task) Outcome
}

func newTaskWorker(name string, logger *zap.Logger, tasks <-chan Task, results chan<- Outcome, process func(context.Context, Task) Outcome) *taskWorker {
	return &taskWorker{
		baseWorker: newBaseWorker(name, logger),
		tasks:      tasks,
		results:    results,
		process:    process,
	}
}

// Start runs tasks to completion until the queue is exhausted, the
// context is cancelled, or Stop is called; each outcome is sent to
// results in the order this worker finishes it (not submission order).
func (w *taskWorker) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.StopChan():
			return nil
		case task, ok := <-w.tasks:
			if !ok {
				return nil
			}
			outcome := w.process(ctx, task)
			select {
			case w.results <- outcome:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
