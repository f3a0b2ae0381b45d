package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskboard-api/domain"
)

type countingSink struct {
	mu      sync.Mutex
	batches int
	events  int
	block   chan struct{}
}

func (c *countingSink) EnqueueEvents(ctx context.Context, events []domain.Event) error {
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.mu.Lock()
	c.batches++
	c.events += len(events)
	c.mu.Unlock()
	return nil
}

func (c *countingSink) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches, c.events
}

func TestPublisherDeliversBatches(t *testing.T) {
	sink := &countingSink{}
	pub := NewPublisher(sink, nil, PublisherConfig{Workers: 2, Buffer: 8})

	for i := 0; i < 5; i++ {
		pub.Publish([]domain.Event{{ID: "e", Type: domain.EventTaskUpdated}})
	}
	pub.Close()

	batches, events := sink.counts()
	if batches != 5 || events != 5 {
		t.Fatalf("expected 5 delivered batches, got batches=%d events=%d", batches, events)
	}
}

func TestPublisherEmptyBatchIgnored(t *testing.T) {
	sink := &countingSink{}
	pub := NewPublisher(sink, nil, PublisherConfig{Workers: 1, Buffer: 1})

	pub.Publish(nil)
	pub.Close()

	if batches, _ := sink.counts(); batches != 0 {
		t.Fatalf("expected no deliveries, got %d", batches)
	}
}

func TestPublisherSaturationDeliversInline(t *testing.T) {
	block := make(chan struct{})
	sink := &countingSink{block: block}
	pub := NewPublisher(sink, nil, PublisherConfig{Workers: 1, Buffer: 1, HandoffTimeout: time.Millisecond})

	// First batch occupies the worker, second fills the buffer.
	pub.Publish([]domain.Event{{ID: "a"}})
	time.Sleep(20 * time.Millisecond)
	pub.Publish([]domain.Event{{ID: "b"}})

	done := make(chan struct{})
	go func() {
		// Buffer is full, so this must fall back to inline delivery rather
		// than dropping the batch.
		pub.Publish([]domain.Event{{ID: "c"}})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	close(block)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("inline delivery did not complete")
	}
	pub.Close()

	if _, events := sink.counts(); events != 3 {
		t.Fatalf("expected all 3 events delivered, got %d", events)
	}
}

func TestPublisherPublishAfterCloseDeliversInline(t *testing.T) {
	sink := &countingSink{}
	pub := NewPublisher(sink, nil, PublisherConfig{Workers: 1, Buffer: 1})
	pub.Close()

	pub.Publish([]domain.Event{{ID: "late"}})

	if _, events := sink.counts(); events != 1 {
		t.Fatalf("expected inline delivery after close, got %d events", events)
	}
}
