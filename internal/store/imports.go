package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/schedule"
)

// ImportStatus is the orchestration state of a project import.
type ImportStatus string

const (
	StatusPlanning   ImportStatus = "PLANNING"
	StatusInProgress ImportStatus = "IN_PROGRESS"
	StatusDone       ImportStatus = "DONE"
	StatusFailed     ImportStatus = "FAILED"
)

// Active reports whether a job is running the import. A PLANNING import is
// superseded by the next upload and does not block it.
func (s ImportStatus) Active() bool {
	return s == StatusInProgress
}

// ProjectImport is the single import record of a project.
type ProjectImport struct {
	ProjectID                   uuid.UUID
	BlobName                    string
	FileName                    string
	Status                      ImportStatus
	CraftColumn                 *importer.AnalysisColumn
	WorkAreaColumn              *importer.AnalysisColumn
	ReadWorkAreasHierarchically bool
	JobID                       *uuid.UUID
	FailureMessageKey           string
	CreatedAt                   time.Time
	Version                     int64
}

const importColumns = `project_id, blob_name, file_name, status,
	craft_column, craft_column_type, work_area_column, work_area_column_type,
	read_work_areas_hierarchically, job_id, failure_message_key, created_at, version`

// FindImport returns the import record of a project.
func (s *Store) FindImport(ctx context.Context, projectID uuid.UUID) (*ProjectImport, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+importColumns+` FROM project_imports WHERE project_id = $1`, projectID)
	imp, err := scanImport(row)
	if err != nil {
		return nil, fmt.Errorf("find import of %s: %w", projectID, notFound(err))
	}
	return imp, nil
}

// SaveImport creates the import record of a project, replacing any previous
// record. The stored version is returned in imp.Version.
func (s *Store) SaveImport(ctx context.Context, imp *ProjectImport) error {
	args := importArgs(imp)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO project_imports (`+importColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), 0)
		ON CONFLICT (project_id) DO UPDATE SET
			blob_name = EXCLUDED.blob_name,
			file_name = EXCLUDED.file_name,
			status = EXCLUDED.status,
			craft_column = EXCLUDED.craft_column,
			craft_column_type = EXCLUDED.craft_column_type,
			work_area_column = EXCLUDED.work_area_column,
			work_area_column_type = EXCLUDED.work_area_column_type,
			read_work_areas_hierarchically = EXCLUDED.read_work_areas_hierarchically,
			job_id = EXCLUDED.job_id,
			failure_message_key = EXCLUDED.failure_message_key,
			created_at = NOW(),
			version = project_imports.version + 1
		RETURNING created_at, version`, args...).Scan(&imp.CreatedAt, &imp.Version)
	if err != nil {
		return fmt.Errorf("save import of %s: %w", imp.ProjectID, err)
	}
	return nil
}

// UpdateImport writes imp if the stored version still equals imp.Version and
// increments it. A stale version fails with ErrConflict.
func (s *Store) UpdateImport(ctx context.Context, imp *ProjectImport) error {
	args := append(importArgs(imp), imp.Version)
	var version int64
	err := s.pool.QueryRow(ctx, `
		UPDATE project_imports SET
			blob_name = $2,
			file_name = $3,
			status = $4,
			craft_column = $5,
			craft_column_type = $6,
			work_area_column = $7,
			work_area_column_type = $8,
			read_work_areas_hierarchically = $9,
			job_id = $10,
			failure_message_key = $11,
			version = version + 1
		WHERE project_id = $1 AND version = $12
		RETURNING version`, args...).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update import of %s at version %d: %w", imp.ProjectID, imp.Version, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("update import of %s: %w", imp.ProjectID, err)
	}
	imp.Version = version
	return nil
}

// DeleteImport removes the import record of a project.
func (s *Store) DeleteImport(ctx context.Context, projectID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM project_imports WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("delete import of %s: %w", projectID, err)
	}
	return nil
}

func importArgs(imp *ProjectImport) []any {
	craft, craftType := columnArgs(imp.CraftColumn)
	workArea, workAreaType := columnArgs(imp.WorkAreaColumn)

	var jobID pgtype.UUID
	if imp.JobID != nil {
		jobID = pgtype.UUID{Bytes: *imp.JobID, Valid: true}
	}
	failure := pgtype.Text{String: imp.FailureMessageKey, Valid: imp.FailureMessageKey != ""}

	return []any{
		imp.ProjectID, imp.BlobName, imp.FileName, string(imp.Status),
		craft, craftType, workArea, workAreaType,
		imp.ReadWorkAreasHierarchically, jobID, failure,
	}
}

// columnArgs stores a column as its name and "<kind>[:<key>]".
func columnArgs(c *importer.AnalysisColumn) (pgtype.Text, pgtype.Text) {
	if c == nil {
		return pgtype.Text{}, pgtype.Text{}
	}
	typ := string(c.Type)
	if c.Key != "" {
		typ += ":" + c.Key
	}
	return pgtype.Text{String: c.Name, Valid: true}, pgtype.Text{String: typ, Valid: typ != ""}
}

// columnFrom restores a stored column. The fallback key is derived from the
// selection it was stored for, so an unresolved column keeps its precondition.
func columnFrom(name, typ pgtype.Text, intent importer.Intent) *importer.AnalysisColumn {
	if !name.Valid {
		return nil
	}
	c := &importer.AnalysisColumn{Name: name.String, FallbackMessageKey: intent.UnknownKey()}
	if typ.Valid {
		kind, key, _ := strings.Cut(typ.String, ":")
		c.Type = schedule.FieldKind(kind)
		c.Key = key
	}
	return c
}

func scanImport(row pgx.Row) (*ProjectImport, error) {
	var (
		imp                    ProjectImport
		status                 string
		craft, craftType       pgtype.Text
		workArea, workAreaType pgtype.Text
		jobID                  pgtype.UUID
		failure                pgtype.Text
	)
	err := row.Scan(&imp.ProjectID, &imp.BlobName, &imp.FileName, &status,
		&craft, &craftType, &workArea, &workAreaType,
		&imp.ReadWorkAreasHierarchically, &jobID, &failure, &imp.CreatedAt, &imp.Version)
	if err != nil {
		return nil, err
	}
	imp.Status = ImportStatus(status)
	imp.CraftColumn = columnFrom(craft, craftType, importer.IntentCraft)
	imp.WorkAreaColumn = columnFrom(workArea, workAreaType, importer.IntentWorkArea)
	if jobID.Valid {
		id := uuid.UUID(jobID.Bytes)
		imp.JobID = &id
	}
	imp.FailureMessageKey = failure.String
	return &imp, nil
}
