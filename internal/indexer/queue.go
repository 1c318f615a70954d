package indexer

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// JobStatus is the lifecycle of a queued directory.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// Job is one directory waiting for or processed by the queue.
type Job struct {
	ID        string    `json:"id"`
	Directory string    `json:"directory"`
	Status    JobStatus `json:"status"`
	Result    *Result   `json:"result,omitempty"`
	Err       error     `json:"-"`
}

// JobProgressFunc reports progress of the job currently running.
type JobProgressFunc func(job Job, done, total int, message string)

// Queue runs directory jobs one at a time on a single worker, so two
// directories are never interleaved.
type Queue struct {
	ctx      context.Context
	idx      *Indexer
	progress JobProgressFunc

	mu     sync.Mutex
	jobs   []*Job
	next   int
	closed bool

	wake    chan struct{}
	done    chan struct{}
	pending sync.WaitGroup
}

// NewQueue starts the worker. Cancelling ctx cancels the running job and
// marks the remaining ones cancelled.
func NewQueue(ctx context.Context, idx *Indexer, progress JobProgressFunc) *Queue {
	q := &Queue{
		ctx:      ctx,
		idx:      idx,
		progress: progress,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue adds a directory and returns its job id, or "" once closed.
func (q *Queue) Enqueue(dir string) string {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ""
	}
	job := &Job{ID: uuid.NewString(), Directory: dir, Status: JobPending}
	q.jobs = append(q.jobs, job)
	q.pending.Add(1)
	q.mu.Unlock()

	log.Debug("Queued directory", "id", job.ID, "path", dir)
	q.signal()
	return job.ID
}

// Jobs returns a snapshot of every job in enqueue order.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]Job, len(q.jobs))
	for i, j := range q.jobs {
		jobs[i] = *j
	}
	return jobs
}

// Wait blocks until every job enqueued so far has finished.
func (q *Queue) Wait() {
	q.pending.Wait()
}

// Close stops accepting jobs, lets the queued ones finish and stops the worker.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
	<-q.done
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		job, closed := q.take()
		if job != nil {
			q.process(job)
			continue
		}
		if closed {
			return
		}
		<-q.wake
	}
}

// take returns the next pending job, marking it running.
func (q *Queue) take() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.next >= len(q.jobs) {
		return nil, q.closed
	}
	job := q.jobs[q.next]
	q.next++
	job.Status = JobRunning
	return job, q.closed
}

func (q *Queue) process(job *Job) {
	defer q.pending.Done()

	if q.ctx.Err() != nil {
		q.finish(job, nil, ErrCancelled)
		return
	}

	snapshot := q.snapshot(job)
	res, err := q.idx.IndexDirectory(q.ctx, job.Directory, func(done, total int, message string) {
		if q.progress != nil {
			q.progress(snapshot, done, total, message)
		}
	})
	q.finish(job, res, err)
}

func (q *Queue) snapshot(job *Job) Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return *job
}

func (q *Queue) finish(job *Job, res *Result, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.Result = res
	job.Err = err
	switch {
	case errors.Is(err, ErrCancelled) || (res != nil && res.Cancelled):
		job.Status = JobCancelled
	case err != nil:
		job.Status = JobFailed
		log.Error("Failed to index directory", "path", job.Directory, "error", err)
	default:
		job.Status = JobDone
	}
}
