package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	reconapp "github.com/khanhnv2901/sparrow-cli/internal/application/recon"
	"github.com/khanhnv2901/sparrow-cli/internal/metrics"
	sharedErrors "github.com/khanhnv2901/sparrow-cli/internal/shared/errors"
	"go.uber.org/zap"
)

// Job states.
const (
	JobPending = "pending"
	JobRunning = "running"
	JobDone    = "done"
	JobError   = "error"
)

// ErrQueueFull is returned when no more jobs can be queued.
var ErrQueueFull = errors.New("job queue is full")

type Job struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Target     string     `json:"target"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// JobRequest is the body of POST /api/v1/jobs.
type JobRequest = reconapp.Request

// Runner executes recon requests. *reconapp.Orchestrator satisfies it.
type Runner interface {
	Validate(req JobRequest) error
	Run(ctx context.Context, req JobRequest) (any, error)
}

// JobManagerOptions tunes a JobManager; zero values select the defaults.
type JobManagerOptions struct {
	QueueSize  int           // pending jobs accepted before ErrQueueFull
	MaxJobs    int           // finished jobs kept in memory
	JobTimeout time.Duration // per-job deadline
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// JobManager queues recon jobs and runs them one at a time on a single
// worker. Every state change is broadcast to subscribers.
type JobManager struct {
	runner  Runner
	logger  *zap.Logger
	metrics *metrics.Metrics
	timeout time.Duration

	mu          sync.RWMutex
	jobs        map[string]*Job
	requests    map[string]JobRequest
	subscribers map[chan Job]struct{}
	maxJobs     int // Maximum number of jobs to keep in memory

	queue  chan string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJobManager(runner Runner, opts JobManagerOptions) *JobManager {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 100
	}
	if opts.MaxJobs <= 0 {
		opts.MaxJobs = 1000
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &JobManager{
		runner:      runner,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		timeout:     opts.JobTimeout,
		jobs:        make(map[string]*Job),
		requests:    make(map[string]JobRequest),
		subscribers: make(map[chan Job]struct{}),
		maxJobs:     opts.MaxJobs,
		queue:       make(chan string, opts.QueueSize),
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	go m.worker(ctx)
	return m
}

// StartJob validates req and queues it. The returned job is pending.
func (m *JobManager) StartJob(ctx context.Context, req JobRequest) (*Job, error) {
	if err := m.runner.Validate(req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	job := &Job{
		ID:        uuid.NewString(),
		Type:      req.Tool,
		Target:    req.Target,
		Status:    JobPending,
		CreatedAt: time.Now(),
	}

	select {
	case m.queue <- job.ID:
	default:
		return nil, ErrQueueFull
	}
	m.jobs[job.ID] = job
	m.requests[job.ID] = req
	m.broadcast(*job)

	snapshot := *job
	return &snapshot, nil
}

func (m *JobManager) worker(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			m.execute(ctx, id)
		}
	}
}

func (m *JobManager) execute(ctx context.Context, id string) {
	m.mu.Lock()
	req, ok := m.requests[id]
	delete(m.requests, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	now := time.Now()
	m.UpdateJob(id, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = &now
	})

	jobCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	result, err := m.safeRun(jobCtx, req)
	finished := time.Now()
	status := JobDone
	if err != nil {
		status = JobError
	}
	m.UpdateJob(id, func(j *Job) {
		j.Status = status
		j.FinishedAt = &finished
		j.Result = result
		if err != nil {
			j.Error = err.Error()
		}
	})
	m.metrics.Jobs.WithLabelValues(req.Tool, status).Inc()
	m.logger.Info("job finished",
		zap.String("job_id", id),
		zap.String("type", req.Tool),
		zap.String("status", status),
		zap.Duration("duration", finished.Sub(now)),
	)
	m.prune()
}

func (m *JobManager) safeRun(ctx context.Context, req JobRequest) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("job panicked", zap.String("type", req.Tool), zap.Any("panic", r))
			result, err = nil, errors.New("job failed unexpectedly")
		}
	}()
	return m.runner.Run(ctx, req)
}

func (m *JobManager) UpdateJob(id string, update func(*Job)) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	update(job)
	m.broadcast(*job)
	snapshot := *job
	return &snapshot
}

func (m *JobManager) GetJob(ctx context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		snapshot := *job
		return &snapshot, nil
	}
	return nil, fmt.Errorf("job %s: %w", id, sharedErrors.ErrNotFound)
}

// ListJobs returns up to limit jobs, newest first.
func (m *JobManager) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.jobs) {
		limit = len(m.jobs)
	}
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	return jobs[:limit], nil
}

func (m *JobManager) Subscribe() (chan Job, func()) {
	ch := make(chan Job, 16)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

// broadcast must be called with m.mu held. Slow subscribers miss updates.
func (m *JobManager) broadcast(job Job) {
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
			m.logger.Debug("dropping job update for slow subscriber", zap.String("job_id", job.ID))
		}
	}
}

// prune removes the oldest finished jobs once more than maxJobs are held.
func (m *JobManager) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.jobs) <= m.maxJobs {
		return
	}

	var finished []*Job
	for _, job := range m.jobs {
		if job.Status == JobDone || job.Status == JobError {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].FinishedAt.Before(*finished[j].FinishedAt)
	})

	toRemove := len(m.jobs) - m.maxJobs
	if toRemove > len(finished) {
		toRemove = len(finished)
	}
	for i := 0; i < toRemove; i++ {
		delete(m.jobs, finished[i].ID)
	}
}

// SetMaxJobs configures the maximum number of jobs to retain in memory
func (m *JobManager) SetMaxJobs(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > 0 {
		m.maxJobs = max
	}
}

// Close stops the worker. Queued jobs that have not started are abandoned;
// the running job's context is cancelled.
func (m *JobManager) Close() {
	m.cancel()
	<-m.done
}
