// Package events lowers an Import Model into the ordered domain events of one
// business transaction.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/schedimport/internal/importer"
)

// AggregateType names the aggregate an event belongs to.
type AggregateType string

const (
	AggregateImport               AggregateType = "PROJECT_IMPORT"
	AggregateCraft                AggregateType = "PROJECT_CRAFT"
	AggregateCraftList            AggregateType = "PROJECT_CRAFT_LIST"
	AggregateWorkArea             AggregateType = "WORK_AREA"
	AggregateWorkAreaList         AggregateType = "WORK_AREA_LIST"
	AggregateMilestone            AggregateType = "MILESTONE"
	AggregateMilestoneList        AggregateType = "MILESTONE_LIST"
	AggregateTask                 AggregateType = "TASK"
	AggregateTaskSchedule         AggregateType = "TASK_SCHEDULE"
	AggregateRelation             AggregateType = "RELATION"
	AggregateWorkdayConfiguration AggregateType = "WORKDAY_CONFIGURATION"
	AggregateExternalID           AggregateType = "EXTERNAL_ID"
)

// Kind is the event name within its aggregate.
type Kind string

const (
	KindStarted   Kind = "STARTED"
	KindFinished  Kind = "FINISHED"
	KindCreated   Kind = "CREATED"
	KindItemAdded Kind = "ITEMADDED"
	KindUpdated   Kind = "UPDATED"
	KindAccepted  Kind = "ACCEPTED"
)

// Event is one domain event. Consumers deduplicate by aggregate id and version.
type Event struct {
	TransactionID uuid.UUID     `json:"transactionId"`
	ProjectID     uuid.UUID     `json:"projectId"`
	AggregateType AggregateType `json:"aggregateType"`
	AggregateID   uuid.UUID     `json:"aggregateId"`
	Version       int64         `json:"version"`
	Kind          Kind          `json:"kind"`
	Payload       any           `json:"payload,omitempty"`
}

// Payloads.

type ImportPayload struct {
	Format string `json:"format"`
}

type CraftPayload struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type ListItemPayload struct {
	ItemID   uuid.UUID `json:"itemId"`
	Position int       `json:"position"`
}

type WorkAreaPayload struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parentId,omitempty"`
	Position int        `json:"position"`
}

type MilestonePayload struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Date        time.Time              `json:"date"`
	Header      bool                   `json:"header"`
	Type        importer.MilestoneType `json:"type"`
	CraftID     *uuid.UUID             `json:"craftId,omitempty"`
	WorkAreaID  *uuid.UUID             `json:"workAreaId,omitempty"`
}

type MilestoneListPayload struct {
	Date        time.Time  `json:"date"`
	Header      bool       `json:"header"`
	WorkAreaID  *uuid.UUID `json:"workAreaId,omitempty"`
	MilestoneID uuid.UUID  `json:"milestoneId"`
	Position    int        `json:"position"`
}

type TaskPayload struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CraftID     uuid.UUID  `json:"craftId"`
	WorkAreaID  *uuid.UUID `json:"workAreaId,omitempty"`
	Status      string     `json:"status"`
}

type TaskSchedulePayload struct {
	TaskID uuid.UUID  `json:"taskId"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

type RelationEndpoint struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

type RelationPayload struct {
	Type   string           `json:"type"`
	Source RelationEndpoint `json:"source"`
	Target RelationEndpoint `json:"target"`
}

type HolidayPayload struct {
	Name string    `json:"name"`
	Date time.Time `json:"date"`
}

type WorkdayConfigurationPayload struct {
	WorkingDays               []string         `json:"workingDays"`
	Holidays                  []HolidayPayload `json:"holidays"`
	AllowWorkOnNonWorkingDays bool             `json:"allowWorkOnNonWorkingDays"`
}
