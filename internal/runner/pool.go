package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// shutdownTimeout bounds how long Stop waits for in-flight tasks to
// finish before giving up.
const shutdownTimeout = 30 * time.Second

// pool runs a fixed number of taskWorkers pulling from a shared Task
// queue, per the "pool of N worker tasks" scheduling model of §5.
type pool struct {
	workers []*taskWorker
	logger  *zap.Logger
	wg      sync.WaitGroup
}

func newPool(n int, logger *zap.Logger, tasks <-chan Task, results chan<- Outcome, process func(context.Context, Task) Outcome) *pool {
	p := &pool{logger: logger}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("batch-worker-%d", i)
		p.workers = append(p.workers, newTaskWorker(name, logger, tasks, results, process))
	}
	return p
}

// start launches every worker in its own goroutine.
func (p *pool) start(ctx context.Context) {
	p.logger.Info("starting worker pool", zap.Int("count", len(p.workers)))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *taskWorker) {
			defer p.wg.Done()
			if err := w.Start(ctx); err != nil {
				p.logger.Error("worker failed", zap.String("name", w.Name()), zap.Error(err))
			}
		}(w)
	}
}

// stop signals every worker to stop and waits up to shutdownTimeout for
// them to drain.
func (p *pool) stop() error {
	for _, w := range p.workers {
		_ = w.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(shutdownTimeout):
		return fmt.Errorf("worker pool shutdown timed out after %v", shutdownTimeout)
	}
}
