// Package blob stores uploaded schedule files. Uploads land in quarantine
// and are only readable after the malware scanner marked them safe and they
// were moved out.
package blob

import (
	"context"
	"errors"
	"regexp"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned for a blob that does not exist in the location asked for.
	ErrNotFound = errors.New("blob not found")
)

// ScanResult is the verdict of the malware scanner.
type ScanResult string

const (
	ScanSafe       ScanResult = "SAFE"
	ScanMalicious  ScanResult = "MALICIOUS"
	ScanNotScanned ScanResult = "NOT_SCANNED"
)

// Scan result tag written by the scanner on quarantined objects.
const (
	ScanResultTag      = "Malware Scanning scan result"
	ScanTagNoThreats   = "No threats found"
	ScanTagMalicious   = "Malicious"
	fileNameMetadata   = "Filename"
	importsPrefix      = "imports/"
	defaultContentType = "application/octet-stream"
)

// Info describes a stored blob.
type Info struct {
	Name        string
	FileName    string
	ContentType string
	Size        int64
}

// Store is the blob store contract used by the import orchestrator.
type Store interface {
	// Save puts data into quarantine and returns the new blob name.
	Save(ctx context.Context, projectID uuid.UUID, fileName, contentType string, data []byte) (string, error)
	// Find returns the blob metadata from the readable location.
	Find(ctx context.Context, name string) (Info, error)
	// Read returns blob content from the readable location.
	Read(ctx context.Context, name string) ([]byte, error)
	// Delete removes a blob from quarantine and the readable location.
	Delete(ctx context.Context, name string) error
	// MoveFromQuarantine makes a scanned blob readable.
	MoveFromQuarantine(ctx context.Context, name string) error
	// ScanResult returns the current scanner verdict of a quarantined blob.
	ScanResult(ctx context.Context, name string) (ScanResult, error)
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9.]+`)

// SanitizeFileName replaces every run of characters outside [a-zA-Z0-9.] with "_".
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

// NewName returns a fresh blob name in the folder of the project.
func NewName(projectID uuid.UUID) string {
	return "projects/" + projectID.String() + "/" + uuid.NewString()
}

// resultFromTag maps the scanner tag value to a ScanResult.
func resultFromTag(value string, ok bool) ScanResult {
	switch {
	case !ok || value == "":
		return ScanNotScanned
	case value == ScanTagNoThreats:
		return ScanSafe
	default:
		return ScanMalicious
	}
}
