package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/schedimport/internal/importer"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{
			name:     "nil error returns empty",
			err:      nil,
			wantCode: "",
		},
		{
			name:     "unsupported file type",
			err:      importer.Precondition(importer.KeyUnsupportedFileType),
			wantCode: "IMP001",
		},
		{
			name:     "wrapped precondition",
			err:      fmt.Errorf("upload: %w", importer.Precondition(importer.KeyAlreadyRunning)),
			wantCode: "IMP004",
		},
		{
			name:     "work area limit with arguments",
			err:      importer.Precondition(importer.KeyTooManyWorkAreas, "1001", "1000"),
			wantCode: "IMP005",
		},
		{
			name:     "stale etag",
			err:      fmt.Errorf("analyze: %w", ErrVersionMismatch),
			wantCode: "IMP101",
		},
		{
			name:     "missing import record",
			err:      ErrImportNotFound,
			wantCode: "IMP102",
		},
		{
			name:     "limiter full",
			err:      ErrTooManyImports,
			wantCode: "UPL002",
		},
		{
			name:     "file too large",
			err:      fmt.Errorf("%w: 30MB exceeds limit", ErrFileTooLarge),
			wantCode: "FILE001",
		},
		{
			name:     "cancelled",
			err:      context.Canceled,
			wantCode: "UPL004",
		},
		{
			name:     "connection refused",
			err:      errors.New("dial tcp: connection refused"),
			wantCode: "DB004",
		},
		{
			name:     "case insensitive matching",
			err:      errors.New("DUPLICATE KEY value violates"),
			wantCode: "DB001",
		},
		{
			name:     "unknown error returns default",
			err:      errors.New("some random internal error"),
			wantCode: "ERR000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMessageKey(t *testing.T) {
	if got := MessageKey(importer.Precondition(importer.KeyMaliciousFile)); got != importer.KeyMaliciousFile {
		t.Errorf("MessageKey() = %q, want %q", got, importer.KeyMaliciousFile)
	}
	if got := MessageKey(errors.New("boom")); got != "ERR000" {
		t.Errorf("MessageKey() = %q, want ERR000", got)
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(importer.Precondition(importer.KeyExistingData))
	want := "The project already contains crafts, work areas, tasks or milestones (Code: IMP002). Import the schedule into an empty project"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
}

func TestPreconditionMessagesComplete(t *testing.T) {
	keys := []string{
		importer.KeyUnsupportedFileType,
		importer.KeyExistingData,
		importer.KeyMaliciousFile,
		importer.KeyAlreadyRunning,
		importer.KeyTooManyWorkAreas,
		importer.KeyWorkAreasTooDeep,
		importer.KeyTooManyHolidays,
		importer.KeyCraftColumnUnknown,
		importer.KeyWorkAreaColumnUnknown,
	}
	seen := make(map[string]string)
	for _, k := range keys {
		msg, ok := preconditionMessages[k]
		if !ok {
			t.Errorf("no message for %s", k)
			continue
		}
		if other, dup := seen[msg.Code]; dup {
			t.Errorf("code %s used by %s and %s", msg.Code, other, k)
		}
		seen[msg.Code] = k
	}
}
