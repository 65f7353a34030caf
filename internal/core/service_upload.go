package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/schedimport/internal/blob"
	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/logging"
	"github.com/JonMunkholm/schedimport/internal/metrics"
	"github.com/JonMunkholm/schedimport/internal/schedule"
	"github.com/JonMunkholm/schedimport/internal/store"
)

// Upload stores a schedule file for the project and starts a new import
// session. The file is sniffed by content, held in quarantine until the
// malware scanner reports it safe, and only then parsed.
//
// An earlier session that is still PLANNING is replaced and its file deleted.
// A running import fails the upload with IMPORT_IMPOSSIBLE_ALREADY_RUNNING.
func (s *Service) Upload(ctx context.Context, projectID uuid.UUID, fileName, contentType string, data []byte) (_ *UploadResult, err error) {
	if projectID == uuid.Nil {
		return nil, errors.New("upload: project id is required")
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(data)) > s.opts.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(data), s.opts.MaxFileSize)
	}

	format := schedule.Sniff(data)
	ctx, span := s.startSpan(withClient(ctx), "core.Upload", projectID,
		attribute.String("file.format", string(format)),
		attribute.Int("file.size", len(data)),
	)
	defer func() { endSpan(span, err) }()

	logger := logging.WithFields(ctx, "project_id", projectID, "format", format)

	if !schedule.Supported(data) {
		return nil, s.reject(ctx, "upload", format, importer.Precondition(importer.KeyUnsupportedFileType, fileName))
	}

	existing, err := s.checkGuards(ctx, projectID)
	if err != nil {
		return nil, s.reject(ctx, "upload", format, err)
	}

	name, err := s.blobs.Save(ctx, projectID, fileName, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	logger = logger.With("blob_name", name)
	logger.Info("file stored in quarantine", "file_name", fileName, "size", len(data))

	verdict, err := s.scanner.AwaitResult(ctx, name)
	if err != nil {
		s.discard(ctx, name)
		return nil, fmt.Errorf("upload: %w", err)
	}
	metrics.ScanResults.WithLabelValues(string(verdict)).Inc()
	if !verdict.Safe() {
		s.discard(ctx, name)
		return nil, s.reject(ctx, "upload", format, importer.Precondition(importer.KeyMaliciousFile, fileName))
	}

	if err := s.blobs.MoveFromQuarantine(ctx, name); err != nil {
		s.discard(ctx, name)
		return nil, fmt.Errorf("upload: %w", err)
	}

	f, err := schedule.Read(data)
	if err != nil {
		s.discard(ctx, name)
		logger.Warn("schedule file could not be read", "error", err)
		return nil, s.reject(ctx, "upload", format, importer.Precondition(importer.KeyUnsupportedFileType, fileName))
	}

	imp := &store.ProjectImport{
		ProjectID: projectID,
		BlobName:  name,
		FileName:  fileName,
		Status:    store.StatusPlanning,
	}
	if err := s.repo.SaveImport(ctx, imp); err != nil {
		s.discard(ctx, name)
		return nil, fmt.Errorf("upload: %w", err)
	}

	// The replaced session's file is no longer reachable.
	if existing != nil && existing.BlobName != name {
		s.discard(ctx, existing.BlobName)
	}

	metrics.Uploads.WithLabelValues(string(format), "accepted").Inc()
	logger.Info("import session planned", "version", imp.Version, "tasks", len(f.Tasks))

	return &UploadResult{
		Version: imp.Version,
		Format:  f.Format,
		Columns: importer.ReadColumns(f),
	}, nil
}

// checkGuards reads the existing-data and running-import guards in parallel.
// It returns the current import record of the project, if any.
func (s *Service) checkGuards(ctx context.Context, projectID uuid.UUID) (*store.ProjectImport, error) {
	var (
		hasData  bool
		existing *store.ProjectImport
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hasData, err = s.repo.HasImportedData(gctx, projectID)
		return err
	})
	g.Go(func() error {
		imp, err := s.repo.FindImport(gctx, projectID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		existing = imp
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("check guards of %s: %w", projectID, err)
	}

	if hasData {
		return nil, importer.Precondition(importer.KeyExistingData)
	}
	if existing != nil && existing.Status.Active() {
		return nil, importer.Precondition(importer.KeyAlreadyRunning)
	}
	return existing, nil
}

// reject counts and logs a precondition before returning it unchanged.
func (s *Service) reject(ctx context.Context, op string, format schedule.Format, err error) error {
	var pe *importer.PreconditionError
	if errors.As(err, &pe) {
		metrics.Preconditions.WithLabelValues(pe.MessageKey).Inc()
		logging.FromContext(ctx).Warn(op+" rejected", "message_key", pe.MessageKey, "args", pe.Args)
		if op == "upload" {
			metrics.Uploads.WithLabelValues(string(format), "rejected").Inc()
		}
	}
	return err
}

// discard deletes a blob on a best-effort basis.
func (s *Service) discard(ctx context.Context, name string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := s.blobs.Delete(ctx, name); err != nil && !errors.Is(err, blob.ErrNotFound) {
		logging.FromContext(ctx).Error("failed to delete blob", "blob_name", name, "error", err)
	}
}
