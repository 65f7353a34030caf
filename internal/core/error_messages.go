package core

// error_messages.go maps errors to user-facing messages with support codes.
//
// # Import Preconditions (IMP001-IMP099)
//
// Blocking preconditions carry a stable message key and are mapped by key:
//
//	IMP001 - IMPORT_IMPOSSIBLE_UNSUPPORTED_FILE_TYPE
//	IMP002 - IMPORT_IMPOSSIBLE_EXISTING_DATA
//	IMP003 - IMPORT_IMPOSSIBLE_MALICIOUS_FILE
//	IMP004 - IMPORT_IMPOSSIBLE_ALREADY_RUNNING
//	IMP005 - IMPORT_IMPOSSIBLE_TOO_MANY_WORK_AREAS
//	IMP006 - IMPORT_IMPOSSIBLE_WORK_AREA_HIERARCHY_TOO_DEEP
//	IMP007 - IMPORT_IMPOSSIBLE_TOO_MANY_HOLIDAYS
//	IMP008 - IMPORT_VALIDATION_CRAFT_COLUMN_NAME_UNKNOWN
//	IMP009 - IMPORT_VALIDATION_WORK_AREA_COLUMN_NAME_UNKNOWN
//
// # Import Session Errors (IMP100-IMP199)
//
//	IMP101 - The import record changed since it was read (stale etag)
//	IMP102 - No import record exists for the project
//	IMP103 - The import job is unknown or expired
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate key
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE004 - No file provided
//	FILE005 - Empty file
//
// # Job Errors (UPL001-UPL099)
//
//	UPL002 - Too many imports running
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Everything else is reported as ERR000. Support staff should check the
// application logs for the technical error behind an ERR000.
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/schedimport/internal/importer"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var preconditionMessages = map[string]UserMessage{
	importer.KeyUnsupportedFileType: {
		Message: "The file type is not supported",
		Action:  "Upload an MS Project XML (MSPDI) schedule",
		Code:    "IMP001",
	},
	importer.KeyExistingData: {
		Message: "The project already contains crafts, work areas, tasks or milestones",
		Action:  "Import the schedule into an empty project",
		Code:    "IMP002",
	},
	importer.KeyMaliciousFile: {
		Message: "The file did not pass the malware scan",
		Action:  "Check the file and upload it again",
		Code:    "IMP003",
	},
	importer.KeyAlreadyRunning: {
		Message: "An import is already running for this project",
		Action:  "Wait for the running import to finish",
		Code:    "IMP004",
	},
	importer.KeyTooManyWorkAreas: {
		Message: "The schedule contains too many work areas",
		Action:  "Reduce the number of work areas or pick another work area column",
		Code:    "IMP005",
	},
	importer.KeyWorkAreasTooDeep: {
		Message: "The work area hierarchy is nested too deeply",
		Action:  "Flatten the outline or pick a work area column",
		Code:    "IMP006",
	},
	importer.KeyTooManyHolidays: {
		Message: "The calendar contains too many holidays",
		Action:  "Remove holidays from the project calendar",
		Code:    "IMP007",
	},
	importer.KeyCraftColumnUnknown: {
		Message: "The selected craft column does not exist in the file",
		Action:  "Pick one of the detected columns",
		Code:    "IMP008",
	},
	importer.KeyWorkAreaColumnUnknown: {
		Message: "The selected work area column does not exist in the file",
		Action:  "Pick one of the detected columns",
		Code:    "IMP009",
	},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Import session
	{
		pattern: "version mismatch",
		msg: UserMessage{
			Message: "The import was changed in the meantime",
			Action:  "Reload the import and try again",
			Code:    "IMP101",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "No import was started for this project",
			Action:  "Upload a schedule file first",
			Code:    "IMP102",
		},
	},
	{
		pattern: "job not found",
		msg: UserMessage{
			Message: "Import job not found",
			Action:  "The job may have expired. Check the project for imported data",
			Code:    "IMP103",
		},
	},

	// Database
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "The data was already imported",
			Action:  "Reload the project",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Remove unused data from the schedule and export it again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a schedule file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a schedule file with tasks",
			Code:    "FILE005",
		},
	},

	// Jobs
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Please try again or check your connection",
			Code:    "UPL005",
		},
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-friendly message. Preconditions are
// mapped by message key, everything else by the first matching pattern.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var pe *importer.PreconditionError
	if errors.As(err, &pe) {
		if msg, ok := preconditionMessages[pe.MessageKey]; ok {
			return msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// MessageKey returns the precondition key carried by err, or the support code
// of its mapped message.
func MessageKey(err error) string {
	var pe *importer.PreconditionError
	if errors.As(err, &pe) {
		return pe.MessageKey
	}
	return MapError(err).Code
}

// FormatUserError creates "Message (Code: XXX). Action" for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
