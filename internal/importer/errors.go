package importer

import (
	"errors"
	"fmt"
	"strings"
)

// Message keys shared with the localization layer of the host application.
const (
	KeyUnsupportedFileType = "IMPORT_IMPOSSIBLE_UNSUPPORTED_FILE_TYPE"
	KeyExistingData        = "IMPORT_IMPOSSIBLE_EXISTING_DATA"
	KeyMaliciousFile       = "IMPORT_IMPOSSIBLE_MALICIOUS_FILE"
	KeyAlreadyRunning      = "IMPORT_IMPOSSIBLE_ALREADY_RUNNING"
	KeyTooManyWorkAreas    = "IMPORT_IMPOSSIBLE_TOO_MANY_WORK_AREAS"
	KeyWorkAreasTooDeep    = "IMPORT_IMPOSSIBLE_WORK_AREA_HIERARCHY_TOO_DEEP"
	KeyTooManyHolidays     = "IMPORT_IMPOSSIBLE_TOO_MANY_HOLIDAYS"

	KeyCraftColumnUnknown    = "IMPORT_VALIDATION_CRAFT_COLUMN_NAME_UNKNOWN"
	KeyWorkAreaColumnUnknown = "IMPORT_VALIDATION_WORK_AREA_COLUMN_NAME_UNKNOWN"

	KeyWorkAreaLimitExceeded = "IMPORT_VALIDATION_WORK_AREA_LIMIT_EXCEEDED"
	KeyWorkAreaDepthExceeded = "IMPORT_VALIDATION_WORK_AREA_DEPTH_EXCEEDED"
	KeyHolidayLimitExceeded  = "IMPORT_VALIDATION_HOLIDAY_LIMIT_EXCEEDED"

	KeyTaskNameDefaulted       = "IMPORT_VALIDATION_TASK_NAME_EMPTY_DEFAULT_SET"
	KeyTaskNameShortened       = "IMPORT_VALIDATION_TASK_NAME_WILL_BE_SHORTENED"
	KeyTaskNotesShortened      = "IMPORT_VALIDATION_TASK_NOTES_WILL_BE_SHORTENED"
	KeyTaskCraftValues         = "IMPORT_VALIDATION_TASK_CRAFT_ADDITIONAL_VALUES_NOT_CONSIDERED"
	KeyTaskWorkAreaValues      = "IMPORT_VALIDATION_TASK_WORKING_AREA_ADDITIONAL_VALUES_NOT_CONSIDERED"
	KeyMilestoneNameDefaulted  = "IMPORT_VALIDATION_MILESTONE_NAME_EMPTY_DEFAULT_SET"
	KeyMilestoneNameShortened  = "IMPORT_VALIDATION_MILESTONE_NAME_WILL_BE_SHORTENED"
	KeyMilestoneNotesShortened = "IMPORT_VALIDATION_MILESTONE_NOTES_WILL_BE_SHORTENED"
	KeyMilestoneCraftValues    = "IMPORT_VALIDATION_MILESTONE_CRAFT_ADDITIONAL_VALUES_NOT_CONSIDERED"
	KeyMilestoneWorkAreaValues = "IMPORT_VALIDATION_MILESTONE_WORKING_AREA_ADDITIONAL_VALUES_NOT_CONSIDERED"
	KeyCraftNameShortened      = "IMPORT_VALIDATION_CRAFT_NAME_WILL_BE_SHORTENED"
	KeyWorkAreaNameShortened   = "IMPORT_VALIDATION_WORK_AREA_NAME_WILL_BE_SHORTENED"
	KeyRelationTypeUnsupported = "IMPORT_VALIDATION_RELATION_TYPE_NOT_SUPPORTED"
	KeyRelationElemUnsupported = "IMPORT_VALIDATION_RELATION_ELEMENT_NOT_SUPPORTED"
)

// PreconditionError is a blocking, user-facing violation. It is raised before
// any event is emitted and carries a stable message key for localization.
type PreconditionError struct {
	MessageKey string
	Args       []string
}

// Precondition creates a PreconditionError.
func Precondition(key string, args ...string) *PreconditionError {
	if args == nil {
		args = []string{}
	}
	return &PreconditionError{MessageKey: key, Args: args}
}

func (e *PreconditionError) Error() string {
	if len(e.Args) == 0 {
		return "precondition violated: " + e.MessageKey
	}
	return fmt.Sprintf("precondition violated: %s (%s)", e.MessageKey, strings.Join(e.Args, ", "))
}

// IsPrecondition reports whether err carries a PreconditionError, optionally
// with one of the given keys.
func IsPrecondition(err error, keys ...string) bool {
	var pe *PreconditionError
	if !errors.As(err, &pe) {
		return false
	}
	if len(keys) == 0 {
		return true
	}
	for _, k := range keys {
		if pe.MessageKey == k {
			return true
		}
	}
	return false
}
