package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/google/uuid"

	"github.com/JonMunkholm/schedimport/internal/core"
)

// handleUpload stores a schedule file and starts an import session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	// Leave room for the multipart envelope.
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err))
			return
		}
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidForm, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, errNoFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	ctx := core.ContextWithClient(r.Context(), clientIP(r), r.UserAgent())
	result, err := s.service.Upload(ctx, projectID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("ETag", etag(result.Version))
	writeJSON(w, r, http.StatusOK, result)
}

// handleAnalyze previews the import with the client's column choices.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	version, err := ifMatch(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req analyzeRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, fmt.Errorf("%w: %v", errInvalidBody, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	ctx := core.ContextWithClient(r.Context(), clientIP(r), r.UserAgent())
	result, err := s.service.Analyze(ctx, projectID, version, req.toCore())
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("ETag", etag(result.Version))
	writeJSON(w, r, http.StatusOK, result)
}

// handleImport starts the import job of the current session.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuidParam(r, "projectID")
	if err != nil {
		respondError(w, r, err)
		return
	}
	version, err := ifMatch(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	ctx := core.ContextWithClient(r.Context(), clientIP(r), r.UserAgent())
	jobID, err := s.service.EnqueueImport(ctx, projectID, version)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/import-jobs/"+jobID.String())
	writeJSON(w, r, http.StatusAccepted, map[string]uuid.UUID{"jobId": jobID})
}

// handleJobStatus returns the current progress of an import job.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuidParam(r, "jobID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	progress, err := s.service.JobStatus(jobID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, progress)
}

// handleJobProgress streams job progress via Server-Sent Events.
// Events carry a sequence number as id; a reconnecting client gets the
// current state first.
func (s *Server) handleJobProgress(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuidParam(r, "jobID")
	if err != nil {
		respondError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errNoStreaming)
		return
	}

	progressCh, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	eventID := 0
	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - job finished
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			eventID++
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// clientIP returns the caller address without port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
