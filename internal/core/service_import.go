package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/JonMunkholm/schedimport/internal/events"
	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/logging"
	"github.com/JonMunkholm/schedimport/internal/metrics"
	"github.com/JonMunkholm/schedimport/internal/store"
)

// EnqueueImport moves the import session to IN_PROGRESS and runs the import
// as a background job. The job id is returned immediately; use JobStatus or
// SubscribeProgress to follow it.
//
// Returns ErrTooManyImports if no job slot becomes available within the
// limiter's wait time.
func (s *Service) EnqueueImport(ctx context.Context, projectID uuid.UUID, etag int64) (_ uuid.UUID, err error) {
	ctx, span := s.startSpan(withClient(ctx), "core.EnqueueImport", projectID, attribute.Int64("import.etag", etag))
	defer func() { endSpan(span, err) }()

	imp, err := s.session(ctx, projectID, etag)
	if err != nil {
		return uuid.Nil, s.reject(ctx, "import", "", err)
	}
	if err := columnErr(imp); err != nil {
		return uuid.Nil, s.reject(ctx, "import", "", err)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return uuid.Nil, err
	}

	jobID := uuid.New()
	imp.Status = store.StatusInProgress
	imp.JobID = &jobID
	imp.FailureMessageKey = ""
	if err := s.repo.UpdateImport(ctx, imp); err != nil {
		s.limiter.Release()
		if errors.Is(err, store.ErrConflict) {
			return uuid.Nil, fmt.Errorf("import: %w", ErrVersionMismatch)
		}
		return uuid.Nil, fmt.Errorf("import: %w", err)
	}
	span.SetAttributes(attribute.String("job.id", jobID.String()))

	// The job outlives the request.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.JobTimeout)

	job := &activeJob{
		Cancel: cancel,
		Done:   make(chan struct{}),
		progress: JobProgress{
			JobID:     jobID,
			ProjectID: projectID,
			Phase:     PhaseQueued,
			StartedAt: time.Now(),
		},
	}

	s.mu.Lock()
	s.jobs[jobID] = job
	s.mu.Unlock()

	logger := logging.WithFields(ctx, "project_id", projectID, "job_id", jobID, "blob_name", imp.BlobName)
	logger.Info("import job queued")

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in import job", "panic", r)
				s.finish(jobCtx, job, imp, logger, fmt.Errorf("internal error: %v", r))
			}
		}()
		s.runJob(jobCtx, job, imp, logger)
	}()

	return jobID, nil
}

// runJob reads, builds and commits one import.
func (s *Service) runJob(ctx context.Context, job *activeJob, imp *store.ProjectImport, logger *slog.Logger) {
	metrics.JobsInProgress.Inc()
	defer metrics.JobsInProgress.Dec()

	ctx, span := s.startSpan(ctx, "core.ImportJob", imp.ProjectID, attribute.String("job.id", job.progress.JobID.String()))
	var err error
	defer func() { endSpan(span, err) }()

	job.setPhase(PhaseReading)
	f, err := s.readFile(ctx, imp)
	if err != nil {
		s.finish(ctx, job, imp, logger, err)
		return
	}

	job.setPhase(PhaseBuilding)
	if err = columnErr(imp); err != nil {
		s.finish(ctx, job, imp, logger, err)
		return
	}
	m := importer.Build(f, importer.Options{
		CraftColumn:                 imp.CraftColumn,
		WorkAreaColumn:              imp.WorkAreaColumn,
		ReadWorkAreasHierarchically: imp.ReadWorkAreasHierarchically,
	})
	if err = importer.Blocking(importer.Validate(m)); err != nil {
		s.finish(ctx, job, imp, logger, err)
		return
	}
	stats := m.Statistics()
	job.update(func(p *JobProgress) { p.Statistics = &stats })

	job.setPhase(PhaseCommitting)
	var plan events.Plan
	plan, err = s.commit(ctx, job, imp.ProjectID, m, logger)
	if err != nil {
		s.finish(ctx, job, imp, logger, err)
		return
	}

	for _, e := range plan.Events {
		metrics.ObserveEvent(string(e.AggregateType), string(e.Kind))
	}
	span.SetAttributes(attribute.Int("import.events", len(plan.Events)))
	job.update(func(p *JobProgress) { p.Events = len(plan.Events) })

	s.finish(ctx, job, imp, logger, nil)
}

// commit lowers the model against a fresh snapshot and appends the plan as
// one unit of work. Transient failures are retried with the same transaction
// id; preconditions are not.
func (s *Service) commit(ctx context.Context, job *activeJob, projectID uuid.UUID, m *importer.Model, logger *slog.Logger) (events.Plan, error) {
	txID := uuid.New()
	job.update(func(p *JobProgress) { p.TransactionID = txID })
	logger = logger.With("transaction_id", txID)

	var plan events.Plan
	op := func() error {
		job.update(func(p *JobProgress) { p.Attempts++ })

		hasData, err := s.repo.HasImportedData(ctx, projectID)
		if err != nil {
			return err
		}
		if hasData {
			return backoff.Permanent(importer.Precondition(importer.KeyExistingData))
		}

		snap, err := s.repo.Snapshot(ctx, projectID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}

		plan = events.Lower(snap, txID, m)
		if err := s.sink.Append(ctx, plan); err != nil {
			metrics.CommitAttempts.WithLabelValues("failed").Inc()
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			logger.Warn("commit attempt failed", "error", err)
			return err
		}
		metrics.CommitAttempts.WithLabelValues("committed").Inc()
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = s.opts.CommitMaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return events.Plan{}, fmt.Errorf("commit import of %s: %w", projectID, err)
	}
	return plan, nil
}

// finish records the outcome of a job. A successful import removes the file
// and the import record; a failed one keeps both and stores the message key.
func (s *Service) finish(ctx context.Context, job *activeJob, imp *store.ProjectImport, logger *slog.Logger, jobErr error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	now := time.Now()
	job.mu.Lock()
	started := job.progress.StartedAt
	job.mu.Unlock()
	duration := now.Sub(started)

	if jobErr == nil {
		s.discard(ctx, imp.BlobName)
		if err := s.repo.DeleteImport(ctx, imp.ProjectID); err != nil {
			logger.Error("failed to delete import record", "error", err)
		}
		job.update(func(p *JobProgress) {
			p.Phase = PhaseDone
			p.FinishedAt = &now
		})
		metrics.ObserveJob(string(PhaseDone), duration)
		logger.Info("import job completed", "duration", duration)
	} else {
		key := MessageKey(jobErr)
		if importer.IsPrecondition(jobErr) {
			metrics.Preconditions.WithLabelValues(key).Inc()
			logger.Warn("import job rejected", "message_key", key, "error", jobErr)
		} else {
			logger.Error("import job failed", "error", jobErr)
		}

		imp.Status = store.StatusFailed
		imp.FailureMessageKey = key
		if err := s.repo.UpdateImport(ctx, imp); err != nil {
			logger.Error("failed to mark import as failed", "error", err)
		}
		job.update(func(p *JobProgress) {
			p.Phase = PhaseFailed
			p.MessageKey = key
			p.Error = FormatUserError(jobErr)
			p.FinishedAt = &now
		})
		metrics.ObserveJob(string(PhaseFailed), duration)
	}

	job.closeListeners()
	close(job.Done)
	s.cleanup(job.progress.JobID, s.opts.JobRetention)
}

// columnErr returns the precondition of an unresolved column selection.
func columnErr(imp *store.ProjectImport) error {
	for _, col := range []*importer.AnalysisColumn{imp.CraftColumn, imp.WorkAreaColumn} {
		if col == nil {
			continue
		}
		if err := col.Err(); err != nil {
			return err
		}
	}
	return nil
}
