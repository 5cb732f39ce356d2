package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

var (
	// ErrQueueFull is returned when the job buffer has no free slot.
	ErrQueueFull = errors.New("indexing queue is full")
	// ErrQueueClosed is returned after Stop.
	ErrQueueClosed = errors.New("indexing queue is closed")
)

// Indexer indexes one paper, implemented by the index coordinator.
type Indexer interface {
	IndexPaper(ctx context.Context, paper *model.Paper) (*model.IndexReport, error)
}

type jobKey struct {
	paperID     string
	contentHash string
}

type entry struct {
	job   model.IndexJob
	key   jobKey
	paper *model.Paper
	done  chan struct{}
}

// Queue runs indexing jobs on a fixed pool of workers.
// Enqueue never blocks, a full buffer is reported as ErrQueueFull.
type Queue struct {
	indexer Indexer
	workers int
	logger  *slog.Logger

	tasks chan *entry

	mu      sync.Mutex
	jobs    map[uuid.UUID]*entry
	active  map[jobKey]uuid.UUID
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue creates a queue with the given number of workers and buffer capacity.
func NewQueue(indexer Indexer, workers int, capacity int, logger *slog.Logger) (*Queue, error) {
	if indexer == nil {
		return nil, helper.Wrap(helper.ErrInvalidInput, "indexer is required")
	}
	if workers <= 0 || capacity <= 0 {
		return nil, helper.Wrap(helper.ErrInvalidInput, "workers and capacity must be positive, got %d and %d", workers, capacity)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Queue{
		indexer: indexer,
		workers: workers,
		logger:  logger,
		tasks:   make(chan *entry, capacity),
		jobs:    map[uuid.UUID]*entry{},
		active:  map[jobKey]uuid.UUID{},
	}, nil
}

// Start launches the workers. Jobs enqueued before Start run once it is called.
// Cancelling ctx aborts the running jobs.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return helper.NewError("start queue", ErrQueueClosed)
	}
	if q.started {
		return nil
	}
	q.started = true

	ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}

	q.logger.Info("Started indexing queue", "workers", q.workers, "capacity", cap(q.tasks))
	return nil
}

// Stop closes the queue and waits for the workers. Running jobs are
// cancelled, jobs that did not start yet fail.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.tasks)
	started, cancel := q.started, q.cancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()

	if !started {
		for e := range q.tasks {
			q.finish(e, nil, ErrQueueClosed)
		}
	}

	q.logger.Info("Stopped indexing queue")
}

// Enqueue schedules a paper for indexing and returns the job id. A pending
// or running job for the same paper content is reused.
func (q *Queue) Enqueue(paper *model.Paper) (uuid.UUID, error) {
	if err := paper.Validate(); err != nil {
		return uuid.Nil, helper.NewError("enqueue", err)
	}
	key := jobKey{paperID: paper.ID, contentHash: paper.ContentHash()}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return uuid.Nil, helper.NewError("enqueue", ErrQueueClosed)
	}
	if id, ok := q.active[key]; ok {
		return id, nil
	}

	e := &entry{
		job: model.IndexJob{
			ID:          uuid.New(),
			PaperID:     paper.ID,
			ContentHash: key.contentHash,
			Status:      model.JobStatusQueued,
			CreatedAt:   time.Now(),
		},
		key:   key,
		paper: paper,
		done:  make(chan struct{}),
	}

	select {
	case q.tasks <- e:
	default:
		return uuid.Nil, helper.NewError("enqueue", ErrQueueFull)
	}

	q.jobs[e.job.ID] = e
	q.active[key] = e.job.ID

	return e.job.ID, nil
}

// EnqueueMany schedules several papers. It stops at the first failure and
// returns the ids enqueued so far.
func (q *Queue) EnqueueMany(papers []*model.Paper) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(papers))
	for _, paper := range papers {
		id, err := q.Enqueue(paper)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Status returns a snapshot of the job.
func (q *Queue) Status(jobID uuid.UUID) (*model.IndexJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.jobs[jobID]
	if !ok {
		return nil, helper.NewError("job status", helper.Wrap(helper.ErrNotFound, "job %s", jobID))
	}
	job := e.job
	return &job, nil
}

// Wait blocks until the job finished or ctx is done.
func (q *Queue) Wait(ctx context.Context, jobID uuid.UUID) (*model.IndexJob, error) {
	q.mu.Lock()
	e, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return nil, helper.NewError("wait job", helper.Wrap(helper.ErrNotFound, "job %s", jobID))
	}

	select {
	case <-e.done:
		return q.Status(jobID)
	case <-ctx.Done():
		return nil, helper.NewError("wait job", ctx.Err())
	}
}

func (q *Queue) work(ctx context.Context) {
	defer q.wg.Done()

	for e := range q.tasks {
		if ctx.Err() != nil {
			q.finish(e, nil, ErrQueueClosed)
			continue
		}

		q.mu.Lock()
		now := time.Now()
		e.job.Status = model.JobStatusRunning
		e.job.StartedAt = &now
		q.mu.Unlock()

		report, err := q.indexer.IndexPaper(ctx, e.paper)
		q.finish(e, report, err)
	}
}

func (q *Queue) finish(e *entry, report *model.IndexReport, err error) {
	q.mu.Lock()
	now := time.Now()
	e.job.FinishedAt = &now
	e.job.Report = report
	if err != nil {
		e.job.Status = model.JobStatusFailed
		e.job.Error = err.Error()
	} else {
		e.job.Status = model.JobStatusSucceeded
	}
	delete(q.active, e.key)
	e.paper = nil
	q.mu.Unlock()

	close(e.done)

	if err != nil {
		q.logger.Warn("Indexing job failed", "job_id", e.job.ID, "paper_id", e.job.PaperID, "error", err)
		return
	}
	q.logger.Debug("Indexing job succeeded", "job_id", e.job.ID, "paper_id", e.job.PaperID)
}
