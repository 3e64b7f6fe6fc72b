package memgovernor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sacredbrain/memoryfabric/pkg/models"
)

// Runtime is the Governor worker (component G): it owns the working store,
// stream log, durable queue, and write-back client, and runs a single
// worker goroutine pulling from an in-memory runtime queue. Constructed
// explicitly in main rather than at module load, per spec.md 9's Design
// Notes ("replace [module-level global state] with an explicit application
// struct constructed in main").
type Runtime struct {
	Store      *WorkingStore
	Stream     *StreamLog // nil when MG_STREAM_ENABLE is false
	Queue      *DurableQueue
	WriteBack  *WriteBackClient
	RetryDelay time.Duration
	Log        *slog.Logger

	runtimeQueue chan models.QueueJob
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
}

// NewRuntime wires the Governor's components together. It does not start
// the worker; call Start for that.
func NewRuntime(store *WorkingStore, stream *StreamLog, queue *DurableQueue, wb *WriteBackClient, retryDelay time.Duration, log *slog.Logger) *Runtime {
	if log == nil {
		log = slog.Default()
	}
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	return &Runtime{
		Store:        store,
		Stream:       stream,
		Queue:        queue,
		WriteBack:    wb,
		RetryDelay:   retryDelay,
		Log:          log,
		runtimeQueue: make(chan models.QueueJob, 1024),
		stopCh:       make(chan struct{}),
	}
}

// EnqueueMemory enqueues a write-back payload on the durable queue and
// pushes it onto the runtime queue for the worker to pick up.
func (r *Runtime) EnqueueMemory(payload map[string]any) (string, error) {
	job, err := r.Queue.Enqueue(map[string]any{"type": "memory", "payload": payload})
	if err != nil {
		r.Log.Error("memgovernor: durable enqueue failed, in-memory enqueue still proceeds", "error", err)
	}
	select {
	case r.runtimeQueue <- job:
	default:
		r.Log.Warn("memgovernor: runtime queue full, job will be picked up from spool on restart", "job_id", job.ID)
	}
	return job.ID, nil
}

// Start loads pending jobs from the spool onto the runtime queue and starts
// the single worker goroutine.
func (r *Runtime) Start(ctx context.Context) {
	pending := r.Queue.Pending()
	for _, job := range pending {
		r.runtimeQueue <- job
	}
	r.Log.Info("memgovernor: worker started", "pending_jobs", len(pending))
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop signals the worker to exit after its current job resolves and waits
// for it to finish.
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Runtime) run(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case job := <-r.runtimeQueue:
			r.processJob(ctx, job)
		}
	}
}

func (r *Runtime) processJob(ctx context.Context, job models.QueueJob) {
	ok, err := r.attemptJob(ctx, job)
	if err != nil {
		r.Log.Error("memgovernor: worker job failed", "job_id", job.ID, "error", err)
	}
	if ok {
		if err := r.Queue.MarkDone(job.ID); err != nil {
			r.Log.Error("memgovernor: mark done failed", "job_id", job.ID, "error", err)
		}
		return
	}
	r.requeueAfterDelay(job)
}

func (r *Runtime) requeueAfterDelay(job models.QueueJob) {
	timer := time.NewTimer(r.RetryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-r.stopCh:
		return
	}
	select {
	case r.runtimeQueue <- job:
	default:
		r.Log.Warn("memgovernor: runtime queue full on requeue, relying on spool at next start", "job_id", job.ID)
	}
}

func (r *Runtime) attemptJob(ctx context.Context, job models.QueueJob) (bool, error) {
	payload, _ := job.Payload["payload"].(map[string]any)
	if job.Payload["type"] != "memory" {
		return true, nil
	}
	id, err := r.WriteBack.PostMemory(ctx, payload)
	if err != nil {
		return false, err
	}
	return id != "", nil
}
