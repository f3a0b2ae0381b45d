package storage

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"

	"taskboard-api/domain"
)

const (
	defaultQueueConcurrency = 8
	queuePerCPU             = 10
	maxQueueConcurrency     = 64
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// EventQueue publishes board mutation events to an Azure Storage queue so
// external consumers can follow the change feed.
type EventQueue struct {
	queue       queueClient
	concurrency int
}

// NewEventQueue creates an EventQueue from the given connection string.
func NewEventQueue(connStr, queueName string) (*EventQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &EventQueue{
		queue:       q,
		concurrency: queueConcurrencyForCPU(runtime.NumCPU()),
	}, nil
}

func queueConcurrencyForCPU(cpu int) int {
	if cpu <= 0 {
		return defaultQueueConcurrency
	}
	n := cpu * queuePerCPU
	if n > maxQueueConcurrency {
		return maxQueueConcurrency
	}
	return n
}

// EnqueueEvents sends the given events to the queue, fanning out up to the
// configured concurrency. The first error observed is returned; remaining
// in-flight sends still run to completion.
func (q *EventQueue) EnqueueEvents(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	limit := q.concurrency
	if limit <= 0 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, ev := range events {
		data, err := sonic.ConfigStd.Marshal(ev)
		if err != nil {
			return err
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(content string) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := q.queue.EnqueueMessage(ctx, content, nil); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}(string(data))
	}

	wg.Wait()
	return firstErr
}
