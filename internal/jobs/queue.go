package jobs

import (
	"context"

	"golang.org/x/time/rate"
)

// queueBacklog bounds how many non-buffered jobs can be pending before
// Enqueue blocks the caller — matches the original's mpsc::channel(1000).
const queueBacklog = 1000

// dispatchRatePerSecond and dispatchBurst throttle how fast the consumer
// goroutine dispatches queued jobs, so a burst of enqueues (e.g. a bulk
// ingest's trailing ProposeCues/TrainLexicon/UpdateGraph fan-out) can't
// monopolize CPU against foreground Recall/AddMemory calls sharing the
// same process.
const (
	dispatchRatePerSecond = 200
	dispatchBurst         = 50
)

// Queue is the background job system's entry point: Enqueue for jobs that
// fire immediately (reinforcement, alias discovery, consolidation) and
// Buffer for jobs an IngestionSession should batch until a bulk write
// settles (cue proposal, lexicon training, graph updates).
type Queue struct {
	ch             chan Job
	SessionManager *SessionManager
	disableBgJobs  bool
	limiter        *rate.Limiter
}

// NewQueue constructs a Queue and starts its consumer goroutine and the
// session manager's auto-flush loop, both stopped by cancelling ctx. When
// disableBgJobs is true, jobs are drained from the channel but never
// processed — used by tests and by a caller that wants writes to go
// through without side effects.
func NewQueue(ctx context.Context, provider Provider, disableBgJobs bool) *Queue {
	q := &Queue{
		ch:             make(chan Job, queueBacklog),
		SessionManager: NewSessionManager(provider),
		disableBgJobs:  disableBgJobs,
		limiter:        rate.NewLimiter(rate.Limit(dispatchRatePerSecond), dispatchBurst),
	}

	go q.consume(ctx, provider)
	go q.SessionManager.RunAutoFlush(ctx)

	return q
}

func (q *Queue) consume(ctx context.Context, provider Provider) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.ch:
			if !ok {
				return
			}
			if q.disableBgJobs {
				continue
			}
			if err := q.limiter.Wait(ctx); err != nil {
				return
			}
			processJob(ctx, job, provider)
		}
	}
}

// Enqueue submits job for immediate (non-buffered) processing. Blocks if
// the backlog is full; returns early if ctx is cancelled first.
func (q *Queue) Enqueue(ctx context.Context, job Job) {
	select {
	case q.ch <- job:
	case <-ctx.Done():
	}
}

// Buffer routes job to projectID's IngestionSession instead of the
// immediate queue.
func (q *Queue) Buffer(projectID string, job Job) {
	q.SessionManager.GetOrCreate(projectID).BufferJob(job)
}

// Session returns projectID's ingestion session, if one exists.
func (q *Queue) Session(projectID string) (*IngestionSession, bool) {
	return q.SessionManager.Get(projectID)
}
