package service

import (
	"context"
	"sync"

	"marketplace/internal/application/entity"
	"marketplace/pkg/metrics"

	"go.uber.org/zap"
)

type ProcessFunc func(ctx context.Context, wid int, e entity.LedgerEvent)

// Pool - фиксированный набор воркеров поверх буферизированного канала.
// Слот резервируется до claim, поэтому Submit никогда не блокирует надолго:
// задач в полёте не больше, чем workers + queueSize.
type Pool struct {
	workers int
	jobs    chan entity.LedgerEvent
	slots   chan struct{}
	process ProcessFunc
	logger  *zap.SugaredLogger
	m       *metrics.Metrics

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewPool(workers, queueSize int, process ProcessFunc, logger *zap.SugaredLogger, m *metrics.Metrics) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		workers: workers,
		jobs:    make(chan entity.LedgerEvent, queueSize),
		slots:   make(chan struct{}, workers+queueSize),
		process: process,
		logger:  logger,
		m:       m,
	}
}

// Start запускает воркеров. Отмена ctx не прерывает уже взятые события:
// строка в processing должна получить complete/fail, иначе её подберёт только reclaim.
func (p *Pool) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(base, i)
	}
	if p.m != nil {
		p.m.Go.InternalGoroutines.WithLabelValues("relay_worker").Set(float64(p.workers))
	}
	p.logger.Infow("relay worker pool started", "workers", p.workers, "queue", cap(p.jobs))
}

// TryReserve занимает слот без блокировки. false - пул забит или остановлен.
func (p *Pool) TryReserve() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.slots <- struct{}{}:
		if p.m != nil {
			p.m.Relay.InFlight.Inc()
		}
		return true
	default:
		return false
	}
}

// Release возвращает слот, если зарезервированное событие так и не было отправлено.
func (p *Pool) Release() {
	<-p.slots
	if p.m != nil {
		p.m.Relay.InFlight.Dec()
	}
}

// Submit передаёт событие воркерам. Вызывающий обязан держать слот из TryReserve.
func (p *Pool) Submit(e entity.LedgerEvent) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}
	p.jobs <- e
	return true
}

// Stop закрывает очередь и ждёт, пока воркеры доработают всё, что уже принято.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	if p.m != nil {
		p.m.Go.InternalGoroutines.WithLabelValues("relay_worker").Set(0)
	}
	p.logger.Info("relay worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	p.logger.Debugw("worker started", "id", id)

	for e := range p.jobs {
		p.process(ctx, id, e)
		p.Release()
	}
	p.logger.Debugw("worker stopping", "id", id)
}
