// Package queue hands fully-resolved webhook jobs from the HTTP
// receiver to the asynchronous worker pool. It is in-memory, bounded,
// FIFO, and deduplicates by delivery id while a job is in flight.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/epavanello/fixodev-sub001/internal/bot"
	"github.com/epavanello/fixodev-sub001/internal/prompt"
	"github.com/epavanello/fixodev-sub001/internal/webhook"
)

// ErrQueueFull reports that the bounded queue cannot accept another
// job; the receiver maps it to an internal failure.
var ErrQueueFull = errors.New("dispatch queue is full")

// Status is the lifecycle of an accepted job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// terminal reports whether a status will never change again.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the unit of work handed to a worker: the classified event,
// the validated command, and the rendered prompt. The queue owns it
// from Enqueue until a worker dequeues it.
type Job struct {
	Delivery     webhook.Delivery
	Installation webhook.Installation
	Repo         webhook.RepositoryRef
	Command      bot.Command
	Prompt       prompt.Request
	EnqueuedAt   time.Time
}

// Receipt is the handle returned by Enqueue. Duplicate is true when
// the enqueue was absorbed by an already in-flight job with the same
// delivery id.
type Receipt struct {
	DeliveryID string
	Duplicate  bool
}

// Queue is safe for concurrent use. The dedupe check and the insert
// are atomic under one mutex, so two concurrent deliveries with the
// same id cannot both enqueue.
type Queue struct {
	mu       sync.Mutex
	jobs     chan *Job
	receipts map[string]Status
}

// New returns a Queue holding at most size pending jobs.
func New(size int) *Queue {
	return &Queue{
		jobs:     make(chan *Job, size),
		receipts: make(map[string]Status, size),
	}
}

// Enqueue accepts job for asynchronous processing. A delivery id that
// is already pending or processing is a no-op returning the existing
// receipt marked Duplicate; a delivery id whose previous job reached a
// terminal state is accepted again. A full queue returns ErrQueueFull
// with no partial side effects.
func (q *Queue) Enqueue(job *Job) (Receipt, error) {
	id := job.Delivery.ID

	q.mu.Lock()
	defer q.mu.Unlock()

	if status, ok := q.receipts[id]; ok && !status.terminal() {
		return Receipt{DeliveryID: id, Duplicate: true}, nil
	}

	select {
	case q.jobs <- job:
		q.receipts[id] = StatusPending
		return Receipt{DeliveryID: id}, nil
	default:
		return Receipt{}, ErrQueueFull
	}
}

// Dequeue blocks until a job is available or ctx is done. The
// returned job's receipt moves to processing; the caller must finish
// with Complete or Fail.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job := <-q.jobs:
		q.mu.Lock()
		q.receipts[job.Delivery.ID] = StatusProcessing
		q.mu.Unlock()
		return job, nil
	}
}

// Complete marks the job for deliveryID as successfully processed.
func (q *Queue) Complete(deliveryID string) {
	q.setTerminal(deliveryID, StatusCompleted)
}

// Fail marks the job for deliveryID as failed. Retry is the
// supervisor's decision; the queue only records the outcome.
func (q *Queue) Fail(deliveryID string) {
	q.setTerminal(deliveryID, StatusFailed)
}

func (q *Queue) setTerminal(deliveryID string, status Status) {
	q.mu.Lock()
	if current, ok := q.receipts[deliveryID]; ok && !current.terminal() {
		q.receipts[deliveryID] = status
	}
	q.mu.Unlock()
}

// Status reports the lifecycle state of a delivery id. The second
// return is false for ids the queue has never accepted.
func (q *Queue) Status(deliveryID string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	status, ok := q.receipts[deliveryID]
	return status, ok
}

// Len reports the number of jobs waiting to be dequeued.
func (q *Queue) Len() int {
	return len(q.jobs)
}
