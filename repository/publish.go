package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

// EventSink receives published events. storage.EventQueue satisfies it.
type EventSink interface {
	EnqueueEvents(ctx context.Context, events []domain.Event) error
}

// PublisherConfig tunes the async event publisher.
type PublisherConfig struct {
	Workers        int
	Buffer         int
	EnqueueTimeout time.Duration
	HandoffTimeout time.Duration
}

// Publisher delivers mutation events to a sink off the caller's path. Hand-off
// is non-blocking up to a short timeout; when the buffer is saturated the
// batch is delivered inline so no event is silently dropped.
type Publisher struct {
	cfg    PublisherConfig
	sink   EventSink
	logger *log.Logger

	jobs      chan []domain.Event
	wg        sync.WaitGroup
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewPublisher starts the worker pool and returns the publisher.
func NewPublisher(sink EventSink, logger *log.Logger, cfg PublisherConfig) *Publisher {
	if sink == nil {
		panic("repository.NewPublisher: sink is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = 30 * time.Second
	}
	if cfg.HandoffTimeout < 0 {
		cfg.HandoffTimeout = 0
	}

	p := &Publisher{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		jobs:   make(chan []domain.Event, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	logger.Infof("event publisher started, workers: %d, buffer: %d", cfg.Workers, cfg.Buffer)
	return p
}

func (p *Publisher) worker(id int) {
	defer p.wg.Done()
	for events := range p.jobs {
		p.deliver(events, id)
	}
}

func (p *Publisher) deliver(events []domain.Event, worker int) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.EnqueueTimeout)
	defer cancel()
	if err := p.sink.EnqueueEvents(ctx, events); err != nil {
		p.logger.Errorf("event publish failed, err: %v, count: %d, worker: %d", err, len(events), worker)
	}
}

// Publish hands the batch to a worker. When the buffer is full past the
// hand-off timeout the batch is delivered inline on the calling goroutine.
func (p *Publisher) Publish(events []domain.Event) {
	if len(events) == 0 {
		return
	}
	if p.closed.Load() {
		p.deliver(events, -1)
		return
	}

	select {
	case p.jobs <- events:
		return
	default:
	}

	if p.cfg.HandoffTimeout > 0 {
		timer := time.NewTimer(p.cfg.HandoffTimeout)
		defer timer.Stop()
		select {
		case p.jobs <- events:
			return
		case <-timer.C:
		}
	}

	p.logger.Warn("event publisher saturated; delivering inline")
	p.deliver(events, -1)
}

// Close stops accepting batches and waits for the workers to drain.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.jobs)
	})
	p.wg.Wait()
}
