package notification

import (
	"context"
	"log"

	"go.uber.org/fx"
)

// Job is one queued dispatch: fan-out work deferred until after the request
// that triggered it has already been answered.
type Job struct {
	Type           string
	RecipientID    string
	RecipientEmail string
	Data           map[string]string
}

// Notifier is what the reconciler depends on for fan-out. Satisfied by
// DispatchWorker; tests substitute a recorder.
type Notifier interface {
	Enqueue(job Job)
}

// DispatchWorker drains queued notification jobs on a background goroutine so
// email sending and identity lookups never sit on the request path.
type DispatchWorker struct {
	service *NotificationService
	jobs    chan Job
	done    chan bool
}

// NewDispatchWorker creates a worker with a buffered job queue.
func NewDispatchWorker(service *NotificationService) *DispatchWorker {
	return &DispatchWorker{
		service: service,
		jobs:    make(chan Job, 256),
		done:    make(chan bool),
	}
}

// Enqueue hands a job to the worker without blocking. When the queue is full
// the job is dispatched on its own goroutine instead of being dropped.
func (w *DispatchWorker) Enqueue(job Job) {
	select {
	case w.jobs <- job:
	default:
		log.Println("Notification queue full, dispatching inline")
		go w.dispatch(job)
	}
}

func (w *DispatchWorker) dispatch(job Job) {
	result := w.service.Dispatch(context.Background(), job.Type, job.RecipientID, job.RecipientEmail, job.Data)
	if !result.Success {
		log.Printf("Notification dispatch failed: type=%s recipient=%s error=%s", job.Type, job.RecipientID, result.Error)
	}
}

// StartWorker starts the background goroutine under the fx lifecycle.
func (w *DispatchWorker) StartWorker(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Println("Starting notification dispatch worker...")
			go func() {
				for {
					select {
					case job := <-w.jobs:
						w.dispatch(job)
					case <-w.done:
						w.drain()
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Stopping notification dispatch worker...")
			w.done <- true
			return nil
		},
	})
}

// drain flushes whatever is still buffered so shutdown does not lose
// already-accepted jobs.
func (w *DispatchWorker) drain() {
	for {
		select {
		case job := <-w.jobs:
			w.dispatch(job)
		default:
			return
		}
	}
}
