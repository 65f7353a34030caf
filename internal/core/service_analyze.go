package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/logging"
	"github.com/JonMunkholm/schedimport/internal/metrics"
	"github.com/JonMunkholm/schedimport/internal/schedule"
	"github.com/JonMunkholm/schedimport/internal/store"
)

// Analyze rebuilds the Import Model of the uploaded file with the given column
// choices and returns its statistics and diagnostics. The choices are saved on
// the import record, so the returned version is the etag for the next call.
//
// An unknown column is returned unresolved and left out of the build; the
// import itself is refused with the column's message key.
func (s *Service) Analyze(ctx context.Context, projectID uuid.UUID, etag int64, req AnalyzeRequest) (_ *AnalysisResult, err error) {
	ctx, span := s.startSpan(withClient(ctx), "core.Analyze", projectID,
		attribute.Int64("import.etag", etag),
		attribute.Bool("import.hierarchical", req.ReadWorkAreasHierarchically),
	)
	defer func() { endSpan(span, err) }()

	imp, err := s.session(ctx, projectID, etag)
	if err != nil {
		return nil, s.reject(ctx, "analyze", "", err)
	}

	f, err := s.readFile(ctx, imp)
	if err != nil {
		return nil, s.reject(ctx, "analyze", "", err)
	}

	craft := selectColumn(f, req.CraftColumn, importer.IntentCraft)
	workArea := selectColumn(f, req.WorkAreaColumn, importer.IntentWorkArea)

	m := importer.Build(f, importer.Options{
		CraftColumn:                 craft,
		WorkAreaColumn:              workArea,
		ReadWorkAreasHierarchically: req.ReadWorkAreasHierarchically,
	})
	results := importer.Validate(m)
	for _, r := range results {
		metrics.ValidationResults.WithLabelValues(string(r.Type)).Inc()
	}

	imp.CraftColumn = craft
	imp.WorkAreaColumn = workArea
	imp.ReadWorkAreasHierarchically = req.ReadWorkAreasHierarchically
	if err := s.repo.UpdateImport(ctx, imp); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("analyze: %w", ErrVersionMismatch)
		}
		return nil, fmt.Errorf("analyze: %w", err)
	}

	stats := m.Statistics()
	span.SetAttributes(
		attribute.Int("import.tasks", stats.Tasks),
		attribute.Int("import.milestones", stats.Milestones),
		attribute.Int("import.results", len(results)),
	)
	logging.WithFields(ctx, "project_id", projectID, "blob_name", imp.BlobName).
		Info("import analyzed", "version", imp.Version, "tasks", stats.Tasks, "results", len(results))

	result := &AnalysisResult{
		Statistics:        stats,
		ValidationResults: results,
		CraftColumn:       craft,
		WorkAreaColumn:    workArea,
		Version:           imp.Version,
	}
	if craft == nil || workArea == nil {
		suggestCraft, suggestWorkArea := importer.SuggestColumns(importer.ReadColumns(f))
		if craft == nil {
			result.CraftColumn = suggestion(f, suggestCraft, importer.IntentCraft)
		}
		if workArea == nil {
			result.WorkAreaColumn = suggestion(f, suggestWorkArea, importer.IntentWorkArea)
		}
	}
	return result, nil
}

// session loads the import record and checks etag, status and the
// existing-data guard. PLANNING and FAILED sessions can be continued.
func (s *Service) session(ctx context.Context, projectID uuid.UUID, etag int64) (*store.ProjectImport, error) {
	var (
		imp     *store.ProjectImport
		hasData bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		imp, err = s.repo.FindImport(gctx, projectID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: project %s", ErrImportNotFound, projectID)
		}
		return err
	})
	g.Go(func() error {
		var err error
		hasData, err = s.repo.HasImportedData(gctx, projectID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if imp.Status.Active() {
		return nil, importer.Precondition(importer.KeyAlreadyRunning)
	}
	if imp.Status == store.StatusDone {
		return nil, fmt.Errorf("%w: project %s", ErrImportNotFound, projectID)
	}
	if imp.Version != etag {
		return nil, fmt.Errorf("%w: have %d, got %d", ErrVersionMismatch, imp.Version, etag)
	}
	if hasData {
		return nil, importer.Precondition(importer.KeyExistingData)
	}
	return imp, nil
}

// readFile reads and parses the stored file of an import session.
func (s *Service) readFile(ctx context.Context, imp *store.ProjectImport) (*schedule.File, error) {
	data, err := s.blobs.Read(ctx, imp.BlobName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", imp.BlobName, err)
	}
	f, err := schedule.Read(data)
	if err != nil {
		logging.FromContext(ctx).Warn("stored schedule file could not be read", "blob_name", imp.BlobName, "error", err)
		return nil, importer.Precondition(importer.KeyUnsupportedFileType, imp.FileName)
	}
	return f, nil
}

func selectColumn(f *schedule.File, sel *ColumnSelection, intent importer.Intent) *importer.AnalysisColumn {
	if sel == nil {
		return nil
	}
	col := importer.AnalyzeColumn(f, sel.Name, sel.FieldType, intent)
	return &col
}

func suggestion(f *schedule.File, c *importer.Column, intent importer.Intent) *importer.AnalysisColumn {
	if c == nil {
		return nil
	}
	col := importer.AnalyzeColumn(f, c.Name, c.Key, intent)
	return &col
}
