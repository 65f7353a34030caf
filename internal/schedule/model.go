// Package schedule holds the format-neutral schedule model produced by the
// file readers, plus format sniffing and the reader registry.
//
// A File is read once per import attempt and never mutated afterwards.
package schedule

import (
	"sort"
	"strings"
	"time"
)

// File is the generic representation of a decoded schedule file.
type File struct {
	Format Format

	// Tasks are in source order and include summary tasks.
	Tasks     []Task
	Resources []Resource
	Relations []Relation

	// DefaultCalendar is nil when the source file carries no calendar.
	DefaultCalendar *Calendar

	TaskFields        []Field
	CustomFields      []Field
	UserDefinedFields []Field
	ActivityCodes     []Field
}

// Task is a schedule activity, summary task or milestone.
type Task struct {
	UniqueID int
	ID       int
	GUID     string

	Name  string
	Notes string

	Start    time.Time
	Finish   time.Time
	Duration time.Duration

	Milestone       bool
	Summary         bool
	OutlineLevel    int
	ParentUniqueID  int
	PercentComplete float64

	// Values holds string field values keyed by Field.Key.
	Values map[string]string

	// ResourceUniqueIDs lists assigned resources in assignment order.
	ResourceUniqueIDs []int
}

// Value returns the value of the field with the given key.
func (t Task) Value(key string) string {
	if t.Values == nil {
		return ""
	}
	return t.Values[key]
}

// HasParent reports whether the task sits below a summary task.
func (t Task) HasParent() bool {
	return t.ParentUniqueID > 0
}

// Resource is a named resource that tasks are assigned to.
type Resource struct {
	UniqueID int
	Name     string
}

// RelationType is the dependency type between two tasks.
type RelationType int

const (
	FinishStart RelationType = iota
	StartStart
	FinishFinish
	StartFinish
)

// Label returns the human readable relation type.
func (r RelationType) Label() string {
	switch r {
	case StartStart:
		return "Start-to-Start"
	case FinishFinish:
		return "Finish-to-Finish"
	case StartFinish:
		return "Start-to-Finish"
	default:
		return "Finish-to-Start"
	}
}

// Relation links a predecessor to a successor task.
type Relation struct {
	PredecessorUniqueID int
	SuccessorUniqueID   int
	Type                RelationType
	Lag                 time.Duration
}

// Calendar describes working days and exceptions.
type Calendar struct {
	Name string

	// WorkingHours maps each weekday to its working time; absent or zero means non-working.
	WorkingHours map[time.Weekday]time.Duration

	Exceptions []CalendarException
}

// IsWorkingDay reports whether the weekday has working time.
func (c *Calendar) IsWorkingDay(d time.Weekday) bool {
	if c == nil {
		return false
	}
	return c.WorkingHours[d] > 0
}

// CalendarException is a deviation from the regular week, usually a holiday.
type CalendarException struct {
	Name    string
	From    time.Time
	To      time.Time
	Working bool

	// Recurring holds the expanded dates of a recurring exception.
	Recurring []time.Time
}

// FieldKind classifies where a field's values come from.
type FieldKind string

const (
	KindTaskField        FieldKind = "TASK_FIELD"
	KindCustomField      FieldKind = "CUSTOM_FIELD"
	KindUserDefinedField FieldKind = "USER_DEFINED_FIELD"
	KindActivityCode     FieldKind = "ACTIVITY_CODE"
	KindResource         FieldKind = "RESOURCE"
)

// Field is a column a task value can be read from.
type Field struct {
	// Key is the stable identifier used in Task.Values, for example "Text1".
	Key string
	// Name is the title shown to the user (alias for custom fields).
	Name string
	Kind FieldKind
}

// ResourceNamesKey is the key of the task field listing assigned resources.
// Its values are read with File.ResourceNames, never from Task.Values.
const ResourceNamesKey = "ResourceNames"

// ResourceNames returns the names of the resources assigned to t.
func (f *File) ResourceNames(t Task) []string {
	if len(t.ResourceUniqueIDs) == 0 {
		return nil
	}
	byID := make(map[int]string, len(f.Resources))
	for _, r := range f.Resources {
		byID[r.UniqueID] = r.Name
	}
	names := make([]string, 0, len(t.ResourceUniqueIDs))
	for _, id := range t.ResourceUniqueIDs {
		if n := strings.TrimSpace(byID[id]); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// SortedTasks returns the tasks ordered by file id, keeping source order on ties.
func (f *File) SortedTasks() []Task {
	out := make([]Task, len(f.Tasks))
	copy(out, f.Tasks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
