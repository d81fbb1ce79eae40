// Package worker drains the dispatch queue. The actual processing of
// a job (the model call and any GitHub write-back) happens behind the
// Processor interface; this package only owns the dequeue loop and
// the job lifecycle bookkeeping.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/epavanello/fixodev-sub001/internal/message"
	"github.com/epavanello/fixodev-sub001/internal/queue"
)

// Processor handles one dispatched job. Implementations send the
// rendered prompt to the completion service and post results back to
// GitHub; a returned error marks the job failed.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// ProcessorFunc adapts a function to the Processor interface.
type ProcessorFunc func(ctx context.Context, job *queue.Job) error

func (f ProcessorFunc) Process(ctx context.Context, job *queue.Job) error {
	return f(ctx, job)
}

// Notifier receives job lifecycle events; the webhook hub implements
// it. A nil Notifier disables notifications.
type Notifier interface {
	Publish(ev message.JobEvent)
}

// Pool runs a fixed number of workers over a queue.
type Pool struct {
	queue    *queue.Queue
	proc     Processor
	notifier Notifier
	logger   *slog.Logger
	workers  int
}

// NewPool builds a pool of n workers; n below one is raised to one.
func NewPool(q *queue.Queue, proc Processor, notifier Notifier, logger *slog.Logger, n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{
		queue:    q,
		proc:     proc,
		notifier: notifier,
		logger:   logger,
		workers:  n,
	}
}

// Run blocks until ctx is done and every worker has drained out. A
// worker blocked in Dequeue wakes on cancellation; a worker mid-job
// finishes the job it holds.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (p *Pool) work(ctx context.Context, id int) {
	log := p.logger.With("worker", id)
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("dequeue failed", "error", err)
			}
			return
		}

		jobLog := log.With(
			"delivery_id", job.Delivery.ID,
			"event", job.Delivery.Event,
			"repository", job.Repo.FullName,
		)
		jobLog.Info("processing job", "sender", job.Command.Sender)
		p.notify(message.StatusProcessing, job)

		if err := p.proc.Process(ctx, job); err != nil {
			jobLog.Error("job failed", "error", err)
			p.queue.Fail(job.Delivery.ID)
			p.notify(message.StatusFailed, job)
			continue
		}

		jobLog.Info("job completed")
		p.queue.Complete(job.Delivery.ID)
		p.notify(message.StatusCompleted, job)
	}
}

func (p *Pool) notify(status string, job *queue.Job) {
	if p.notifier == nil {
		return
	}
	ev := message.NewJobEvent(status, job.Delivery.ID, job.Delivery.Event)
	ev.Repository = job.Repo.FullName
	ev.Sender = job.Command.Sender
	p.notifier.Publish(ev)
}
