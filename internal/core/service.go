package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/schedimport/internal/blob"
	"github.com/JonMunkholm/schedimport/internal/events"
)

const (
	DefaultMaxFileSize      int64 = 25 * 1024 * 1024
	DefaultJobTimeout             = 10 * time.Minute
	DefaultCommitMaxElapsed       = 30 * time.Second
	DefaultJobRetention           = 15 * time.Minute
)

// Service is the import orchestrator.
type Service struct {
	repo    Repository
	blobs   blob.Store
	scanner ScanWaiter
	sink    events.Sink
	limiter *JobLimiter
	opts    Options
	tracer  trace.Tracer

	mu   sync.RWMutex
	jobs map[uuid.UUID]*activeJob
}

type activeJob struct {
	Cancel context.CancelFunc
	Done   chan struct{}

	mu        sync.Mutex
	progress  JobProgress
	listeners []chan JobProgress
}

// NewService wires the orchestrator to its collaborators.
func NewService(repo Repository, blobs blob.Store, scanner ScanWaiter, sink events.Sink, opts Options) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}
	if opts.CommitMaxElapsed <= 0 {
		opts.CommitMaxElapsed = DefaultCommitMaxElapsed
	}
	if opts.JobRetention <= 0 {
		opts.JobRetention = DefaultJobRetention
	}

	return &Service{
		repo:    repo,
		blobs:   blobs,
		scanner: scanner,
		sink:    sink,
		limiter: NewJobLimiter(opts.MaxConcurrent, opts.MaxWait),
		opts:    opts,
		tracer:  otel.Tracer("github.com/JonMunkholm/schedimport/core"),
		jobs:    make(map[uuid.UUID]*activeJob),
	}
}

// Limiter exposes the job limiter for monitoring.
func (s *Service) Limiter() *JobLimiter {
	return s.limiter
}

// Shutdown waits for running jobs to finish or ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// JobStatus returns the current progress of a job.
func (s *Service) JobStatus(jobID uuid.UUID) (JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return JobProgress{}, err
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.progress, nil
}

// SubscribeProgress returns a channel that receives progress updates.
// The current state is sent immediately and the channel is closed when the
// job finishes.
func (s *Service) SubscribeProgress(jobID uuid.UUID) (<-chan JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}

	ch := make(chan JobProgress, 10)

	job.mu.Lock()
	defer job.mu.Unlock()
	ch <- job.progress
	if job.progress.Phase.Finished() {
		close(ch)
		return ch, nil
	}
	job.listeners = append(job.listeners, ch)
	return ch, nil
}

// Wait blocks until the job finishes and returns its final progress.
func (s *Service) Wait(ctx context.Context, jobID uuid.UUID) (JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return JobProgress{}, err
	}
	select {
	case <-job.Done:
	case <-ctx.Done():
		return JobProgress{}, ctx.Err()
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.progress, nil
}

func (s *Service) job(jobID uuid.UUID) (*activeJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return job, nil
}

// update applies fn to the progress and notifies all listeners.
func (job *activeJob) update(fn func(p *JobProgress)) {
	job.mu.Lock()
	defer job.mu.Unlock()

	fn(&job.progress)
	for _, ch := range job.listeners {
		select {
		case ch <- job.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

func (job *activeJob) setPhase(phase JobPhase) {
	job.update(func(p *JobProgress) { p.Phase = phase })
}

// closeListeners closes all listener channels.
func (job *activeJob) closeListeners() {
	job.mu.Lock()
	defer job.mu.Unlock()

	for _, ch := range job.listeners {
		close(ch)
	}
	job.listeners = nil
}

// cleanup removes the job from tracking after a delay.
func (s *Service) cleanup(jobID uuid.UUID, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}

func (s *Service) startSpan(ctx context.Context, name string, projectID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("project.id", projectID.String()))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
