package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/schedimport/internal/blob"
	"github.com/JonMunkholm/schedimport/internal/events"
	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/schedule"
	"github.com/JonMunkholm/schedimport/internal/store"
)

var (
	ErrImportNotFound  = errors.New("import not found")
	ErrVersionMismatch = errors.New("import version mismatch")
	ErrJobNotFound     = errors.New("import job not found")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
)

// Repository persists import records and reads the state of target projects.
// Satisfied by *store.Store.
type Repository interface {
	Snapshot(ctx context.Context, projectID uuid.UUID) (events.ProjectSnapshot, error)
	HasImportedData(ctx context.Context, projectID uuid.UUID) (bool, error)
	FindImport(ctx context.Context, projectID uuid.UUID) (*store.ProjectImport, error)
	SaveImport(ctx context.Context, imp *store.ProjectImport) error
	UpdateImport(ctx context.Context, imp *store.ProjectImport) error
	DeleteImport(ctx context.Context, projectID uuid.UUID) error
}

// ScanWaiter blocks until a quarantined blob has a malware verdict.
// Satisfied by *blob.Scanner.
type ScanWaiter interface {
	AwaitResult(ctx context.Context, name string) (blob.ScanResult, error)
}

// Options tune the service.
type Options struct {
	MaxFileSize      int64
	MaxConcurrent    int
	MaxWait          time.Duration
	JobTimeout       time.Duration
	CommitMaxElapsed time.Duration

	// JobRetention is how long a finished job stays queryable.
	JobRetention time.Duration
}

// UploadResult is returned by Upload. Version is the etag for the next call.
type UploadResult struct {
	Version int64             `json:"version"`
	Format  schedule.Format   `json:"format"`
	Columns []importer.Column `json:"columns"`
}

// ColumnSelection is a column picked by the caller. FieldType narrows the
// match to one field key when two columns share a name.
type ColumnSelection struct {
	Name      string `json:"name"`
	FieldType string `json:"fieldType,omitempty"`
}

// AnalyzeRequest carries the caller's column choices.
type AnalyzeRequest struct {
	ReadWorkAreasHierarchically bool             `json:"readWorkAreasHierarchically"`
	CraftColumn                 *ColumnSelection `json:"craftColumn,omitempty"`
	WorkAreaColumn              *ColumnSelection `json:"workAreaColumn,omitempty"`
}

// AnalysisResult is the preview of an import with the current choices.
// The column fields hold the resolved selection, or a suggestion when
// nothing was selected.
type AnalysisResult struct {
	Statistics        importer.Statistics         `json:"statistics"`
	ValidationResults []importer.ValidationResult `json:"validationResults"`
	CraftColumn       *importer.AnalysisColumn    `json:"craftColumn,omitempty"`
	WorkAreaColumn    *importer.AnalysisColumn    `json:"workAreaColumn,omitempty"`
	Version           int64                       `json:"version"`
}

// JobPhase indicates the current stage of an import job.
type JobPhase string

const (
	PhaseQueued     JobPhase = "queued"
	PhaseReading    JobPhase = "reading"
	PhaseBuilding   JobPhase = "building"
	PhaseCommitting JobPhase = "committing"
	PhaseDone       JobPhase = "done"
	PhaseFailed     JobPhase = "failed"
)

// Finished reports whether the phase is terminal.
func (p JobPhase) Finished() bool {
	return p == PhaseDone || p == PhaseFailed
}

// JobProgress is the observable state of an import job.
type JobProgress struct {
	JobID         uuid.UUID            `json:"jobId"`
	ProjectID     uuid.UUID            `json:"projectId"`
	TransactionID uuid.UUID            `json:"transactionId"`
	Phase         JobPhase             `json:"phase"`
	Statistics    *importer.Statistics `json:"statistics,omitempty"`
	Events        int                  `json:"events"`
	Attempts      int                  `json:"attempts"`
	MessageKey    string               `json:"messageKey,omitempty"`
	Error         string               `json:"error,omitempty"`
	StartedAt     time.Time            `json:"startedAt"`
	FinishedAt    *time.Time           `json:"finishedAt,omitempty"`
}
