package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskboard-api/domain"
)

type fakeQueue struct {
	mu       sync.Mutex
	inFlight int
	max      int
	count    int
	failAt   int
	sleep    time.Duration
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{failAt: -1, sleep: 1 * time.Millisecond}
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	f.mu.Lock()
	idx := f.count
	f.count++
	f.inFlight++
	if f.inFlight > f.max {
		f.max = f.inFlight
	}
	f.mu.Unlock()

	if f.sleep > 0 {
		select {
		case <-time.After(f.sleep):
		case <-ctx.Done():
			f.mu.Lock()
			f.inFlight--
			f.mu.Unlock()
			return azqueue.EnqueueMessagesResponse{}, ctx.Err()
		}
	}

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if f.failAt >= 0 && idx == f.failAt {
		return azqueue.EnqueueMessagesResponse{}, errors.New("enqueue failure")
	}

	return azqueue.EnqueueMessagesResponse{}, nil
}

func makeEvents(n int) []domain.Event {
	events := make([]domain.Event, n)
	for i := range events {
		events[i] = domain.Event{ID: "e", Type: domain.EventTaskCreated, EntityType: "task"}
	}
	return events
}

func TestEnqueueEventsUsesConcurrency(t *testing.T) {
	fq := newFakeQueue()
	queue := &EventQueue{queue: fq, concurrency: 4}

	if err := queue.EnqueueEvents(context.Background(), makeEvents(8)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if fq.max < 2 {
		t.Fatalf("expected concurrent sends, max in flight: %d", fq.max)
	}
	if fq.count != 8 {
		t.Fatalf("expected 8 sends, got %d", fq.count)
	}
}

func TestEnqueueEventsPropagatesErrors(t *testing.T) {
	fq := newFakeQueue()
	fq.failAt = 2
	queue := &EventQueue{queue: fq, concurrency: 3}

	if err := queue.EnqueueEvents(context.Background(), makeEvents(6)); err == nil {
		t.Fatal("expected error")
	}
}

func TestEnqueueEventsSequentialWhenConfigured(t *testing.T) {
	fq := newFakeQueue()
	queue := &EventQueue{queue: fq, concurrency: 1}

	if err := queue.EnqueueEvents(context.Background(), makeEvents(5)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if fq.max != 1 {
		t.Fatalf("expected sequential sends, observed max in flight: %d", fq.max)
	}
}

func TestEnqueueEventsEmptyIsNoop(t *testing.T) {
	fq := newFakeQueue()
	queue := &EventQueue{queue: fq, concurrency: 4}

	if err := queue.EnqueueEvents(context.Background(), nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if fq.count != 0 {
		t.Fatalf("expected no sends, got %d", fq.count)
	}
}

func TestQueueConcurrencyForCPU(t *testing.T) {
	tests := []struct {
		name string
		cpu  int
		want int
	}{
		{name: "below minimum", cpu: 0, want: defaultQueueConcurrency},
		{name: "single cpu", cpu: 1, want: queuePerCPU},
		{name: "multi cpu scale", cpu: 4, want: 40},
		{name: "cap applied", cpu: 32, want: maxQueueConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := queueConcurrencyForCPU(tt.cpu)
			if got != tt.want {
				t.Fatalf("queueConcurrencyForCPU(%d) = %d, want %d", tt.cpu, got, tt.want)
			}
		})
	}
}
