// Package importer turns a generic schedule file into the destination-shaped
// Import Model and validates it.
//
// Everything in this package is pure: the same file and options always
// produce the same model and the same validation results.
package importer

import (
	"time"

	"github.com/JonMunkholm/schedimport/internal/schedule"
)

// Destination limits.
const (
	MaxCraftNameLength     = 100
	MaxTaskNameLength      = 100
	MaxMilestoneNameLength = 100
	MaxWorkAreaNameLength  = 100
	MaxHolidayNameLength   = 100
	MaxDescriptionLength   = 1000

	MaxWorkAreas     = 1000
	MaxWorkAreaDepth = 25
	MaxHolidays      = 200
)

// Fallback names.
const (
	UnnamedTask          = "Unnamed Task"
	UnnamedMilestone     = "Unnamed Milestone"
	PlaceholderCraftName = "RmS-Placeholder"
	placeholderWorkArea  = "Placeholder"
	unnamedHoliday       = "---"
)

// CraftPalette is cycled in creation order to colour crafts.
var CraftPalette = []string{
	"#f5a100", "#d9c200", "#8bb727", "#3c9a3c", "#00a38c",
	"#00a6c8", "#0087d0", "#3f63b8", "#6b4aa6", "#9b3f99",
	"#c8377e", "#e0455a", "#e8602c", "#b36b00", "#8c7b2b",
	"#5f7f2e", "#2f7f5f", "#1f7a8c", "#2a5d8f", "#4b4f9c",
	"#73479c", "#9c3f7a", "#b8455c", "#c9653f", "#ffc34d",
	"#f2e05c", "#b5d65c", "#72c172", "#4dc9b0", "#4dcfe3",
	"#4db0e8", "#7d95d6", "#a08dcf", "#c787c5", "#e384ad",
	"#f08a94", "#f59d72", "#d9a866", "#a69a73", "#7f8c8d",
}

// Source is the identity an entity carried in the source file.
type Source struct {
	GUID     string
	UniqueID int
	FileID   int

	// Synthetic marks entities the source file never contained.
	Synthetic bool
}

// Object wraps a draft value with the synthetic id assigned during the first
// build pass and its source identity.
type Object[T any] struct {
	ID     int
	Source Source
	Value  T
}

// Craft is a trade classification.
type Craft struct {
	Name         string
	OriginalName string
	Color        string
	Placeholder  bool
}

// WorkArea is a node of the work area tree. ParentID is 0 for roots.
type WorkArea struct {
	Name         string
	OriginalName string
	ParentID     int
	Position     int
	Depth        int
}

// TaskStatus is derived from the source percent complete.
type TaskStatus string

const (
	StatusDraft    TaskStatus = "DRAFT"
	StatusStarted  TaskStatus = "STARTED"
	StatusAccepted TaskStatus = "ACCEPTED"
)

// Task is a schedule activity. WorkAreaID is 0 when the task has no work area.
type Task struct {
	Name          string
	OriginalName  string
	NameDefaulted bool
	Notes         string
	OriginalNotes string
	CraftID       int
	WorkAreaID    int
	Status        TaskStatus

	// CraftValues and WorkAreaValues hold every distinct value found when more
	// than one was present; only the first one was used.
	CraftValues    []string
	WorkAreaValues []string
}

// TaskSchedule carries the dates of one task.
type TaskSchedule struct {
	TaskID int
	Start  time.Time
	End    time.Time
}

// MilestoneType tells whether a milestone belongs to a craft or the project.
type MilestoneType string

const (
	MilestoneProject MilestoneType = "PROJECT"
	MilestoneCraft   MilestoneType = "CRAFT"
)

// Milestone is a zero-duration schedule entry. Header milestones have no work area.
type Milestone struct {
	Name          string
	OriginalName  string
	NameDefaulted bool
	Notes         string
	OriginalNotes string
	Date          time.Time
	Header        bool
	Type          MilestoneType
	CraftID       int
	WorkAreaID    int

	CraftValues    []string
	WorkAreaValues []string
}

// ElementKind is the kind of a relation endpoint.
type ElementKind string

const (
	ElementTask      ElementKind = "TASK"
	ElementMilestone ElementKind = "MILESTONE"
)

// Ref points to a task or milestone of the model.
type Ref struct {
	Kind ElementKind
	ID   int
}

// Relation is a finish-to-start dependency between two model elements.
type Relation struct {
	Source Ref
	Target Ref
}

// SkipReason tells why a source relation was dropped.
type SkipReason string

const (
	SkipUnsupportedType    SkipReason = "TYPE"
	SkipUnsupportedElement SkipReason = "ELEMENT"
)

// SkippedRelation records a source relation that is not imported.
type SkippedRelation struct {
	Label  string
	Source string
	Target string
	Reason SkipReason
}

// Holiday is a non-working date.
type Holiday struct {
	Name string
	Date time.Time
}

// WorkdayConfiguration is derived once per project from the default calendar.
type WorkdayConfiguration struct {
	WorkingDays               []time.Weekday
	Holidays                  []Holiday
	AllowWorkOnNonWorkingDays bool
}

// DefaultWorkingDays is used when the source file has no calendar.
var DefaultWorkingDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Model is the normalized result of reading one schedule file.
type Model struct {
	Format schedule.Format

	Crafts           []Object[Craft]
	WorkAreas        []Object[WorkArea]
	Tasks            []Object[Task]
	Schedules        []Object[TaskSchedule]
	Milestones       []Object[Milestone]
	Relations        []Object[Relation]
	SkippedRelations []SkippedRelation

	WorkdayConfiguration WorkdayConfiguration
}

// Empty reports whether nothing would be imported.
func (m *Model) Empty() bool {
	return len(m.Tasks) == 0 && len(m.Milestones) == 0 && len(m.WorkAreas) == 0
}

// Craft returns the craft with the given id.
func (m *Model) Craft(id int) (Object[Craft], bool) {
	for _, c := range m.Crafts {
		if c.ID == id {
			return c, true
		}
	}
	return Object[Craft]{}, false
}

// WorkArea returns the work area with the given id.
func (m *Model) WorkArea(id int) (Object[WorkArea], bool) {
	for _, w := range m.WorkAreas {
		if w.ID == id {
			return w, true
		}
	}
	return Object[WorkArea]{}, false
}

// Statistics counts the entities of a model.
type Statistics struct {
	WorkAreas  int `json:"workAreas"`
	Crafts     int `json:"crafts"`
	Tasks      int `json:"tasks"`
	Milestones int `json:"milestones"`
	Relations  int `json:"relations"`
}

// Statistics returns entity counts. The placeholder craft is not counted.
func (m *Model) Statistics() Statistics {
	crafts := 0
	for _, c := range m.Crafts {
		if !c.Value.Placeholder {
			crafts++
		}
	}
	return Statistics{
		WorkAreas:  len(m.WorkAreas),
		Crafts:     crafts,
		Tasks:      len(m.Tasks),
		Milestones: len(m.Milestones),
		Relations:  len(m.Relations),
	}
}
