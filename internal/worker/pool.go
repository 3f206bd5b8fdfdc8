package worker

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Pool runs one Worker per platform.
type Pool struct {
	workers []*Worker
	logger  *zap.Logger
}

func NewPool(logger *zap.Logger, workers ...*Worker) *Pool {
	return &Pool{workers: workers, logger: logger.Named("pool")}
}

func (p *Pool) Start() error {
	for i, w := range p.workers {
		if err := w.Start(); err != nil {
			p.shutdown(p.workers[:i])
			return fmt.Errorf("start %s worker: %w", w.Platform(), err)
		}
	}
	p.logger.Info("worker pool started", zap.Int("workers", len(p.workers)))
	return nil
}

func (p *Pool) Shutdown() {
	p.shutdown(p.workers)
	p.logger.Info("worker pool stopped")
}

func (p *Pool) shutdown(workers []*Worker) {
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			w.Shutdown()
		}(w)
	}
	wg.Wait()
}
