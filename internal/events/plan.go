package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/schedimport/internal/externalid"
	"github.com/JonMunkholm/schedimport/internal/importer"
)

// Aggregate is the current head of an aggregate that already exists.
type Aggregate struct {
	ID      uuid.UUID `json:"id"`
	Version int64     `json:"version"`
	Items   int       `json:"items"`
}

// MilestoneListKey identifies the milestone list a milestone is a member of.
type MilestoneListKey struct {
	Date       time.Time
	Header     bool
	WorkAreaID uuid.UUID
}

// ProjectSnapshot is the state of the target project the plan builds on.
// A nil aggregate does not exist yet.
type ProjectSnapshot struct {
	ProjectID            uuid.UUID
	CraftList            *Aggregate
	WorkAreaList         *Aggregate
	WorkdayConfiguration *Aggregate
	Workdays             importer.WorkdayConfiguration
	MilestoneLists       map[MilestoneListKey]Aggregate
}

// Target is resolved once per aggregate before any event is built: Create for
// an aggregate that does not exist yet, Amend for an existing one.
type Target interface {
	target()
}

// Create starts a new aggregate.
type Create struct {
	ID uuid.UUID
}

// Amend continues an existing aggregate.
type Amend struct {
	Existing Aggregate
}

func (Create) target() {}
func (Amend) target()  {}

// Resolve picks Create or Amend for an aggregate.
func Resolve(existing *Aggregate, id uuid.UUID) Target {
	if existing == nil || existing.ID == uuid.Nil {
		return Create{ID: id}
	}
	return Amend{Existing: *existing}
}

// list emits membership events for one list aggregate.
type list struct {
	id       uuid.UUID
	next     int64
	exists   bool
	position int
}

func newList(t Target) *list {
	switch t := t.(type) {
	case Amend:
		return &list{id: t.Existing.ID, next: t.Existing.Version + 1, exists: true, position: t.Existing.Items}
	case Create:
		return &list{id: t.ID}
	}
	panic(fmt.Sprintf("events: unknown target %T", t))
}

func (l *list) add() (Kind, int64, int) {
	kind := KindItemAdded
	if !l.exists {
		kind, l.exists = KindCreated, true
	}
	v, pos := l.next, l.position
	l.next++
	l.position++
	return kind, v, pos
}

func (l *list) head() *Aggregate {
	if !l.exists {
		return nil
	}
	return &Aggregate{ID: l.id, Version: l.next - 1, Items: l.position}
}

// Plan is the complete, ordered output of one commit.
type Plan struct {
	TransactionID uuid.UUID
	ProjectID     uuid.UUID
	Events        []Event
	ExternalIDs   []externalid.Record

	// Project is the snapshot after the plan has been applied.
	Project ProjectSnapshot
}

// Empty reports whether the plan writes nothing.
func (p Plan) Empty() bool {
	return len(p.Events) == 0
}

// Count returns the number of events of the given aggregate type and kind.
func (p Plan) Count(typ AggregateType, kind Kind) int {
	n := 0
	for _, e := range p.Events {
		if e.AggregateType == typ && e.Kind == kind {
			n++
		}
	}
	return n
}

// Lower turns an Import Model into the events of one business transaction.
// Aggregate ids are derived from the project and source identities, so the
// same model lowered twice maps to the same aggregates and external ids.
func Lower(snap ProjectSnapshot, txID uuid.UUID, m *importer.Model) Plan {
	plan := Plan{TransactionID: txID, ProjectID: snap.ProjectID, Project: snap}
	if m.Empty() {
		return plan
	}

	l := &lowering{
		plan:       &plan,
		project:    snap.ProjectID,
		crafts:     make(map[int]uuid.UUID, len(m.Crafts)),
		workAreas:  make(map[int]uuid.UUID, len(m.WorkAreas)),
		tasks:      make(map[int]uuid.UUID, len(m.Tasks)),
		milestones: make(map[int]uuid.UUID, len(m.Milestones)),
	}

	l.emit(AggregateImport, txID, 0, KindStarted, ImportPayload{Format: string(m.Format)})
	l.lowerCrafts(m, snap)
	l.lowerWorkAreas(m, snap)
	l.lowerMilestones(m, snap)
	l.lowerTasks(m)
	l.lowerRelations(m)
	l.lowerWorkdays(m, snap)
	l.lowerExternalIDs(m)
	l.emit(AggregateImport, txID, 1, KindFinished, nil)

	return plan
}

type lowering struct {
	plan    *Plan
	project uuid.UUID

	crafts     map[int]uuid.UUID
	workAreas  map[int]uuid.UUID
	tasks      map[int]uuid.UUID
	milestones map[int]uuid.UUID
}

func (l *lowering) emit(typ AggregateType, id uuid.UUID, version int64, kind Kind, payload any) {
	l.plan.Events = append(l.plan.Events, Event{
		TransactionID: l.plan.TransactionID,
		ProjectID:     l.project,
		AggregateType: typ,
		AggregateID:   id,
		Version:       version,
		Kind:          kind,
		Payload:       payload,
	})
}

func (l *lowering) id(typ AggregateType, name string) uuid.UUID {
	return uuid.NewSHA1(l.project, []byte(string(typ)+"/"+name))
}

func (l *lowering) sourceID(typ AggregateType, src importer.Source) uuid.UUID {
	return l.id(typ, fmt.Sprintf("%d/%d", src.FileID, src.UniqueID))
}

func (l *lowering) lowerCrafts(m *importer.Model, snap ProjectSnapshot) {
	if len(m.Crafts) == 0 {
		return
	}
	for _, c := range m.Crafts {
		id := l.id(AggregateCraft, strings.ToLower(c.Value.Name))
		l.crafts[c.ID] = id
		l.emit(AggregateCraft, id, 0, KindCreated, CraftPayload{Name: c.Value.Name, Color: c.Value.Color})
	}

	cl := newList(Resolve(snap.CraftList, l.id(AggregateCraftList, "")))
	for _, c := range m.Crafts {
		kind, v, pos := cl.add()
		l.emit(AggregateCraftList, cl.id, v, kind, ListItemPayload{ItemID: l.crafts[c.ID], Position: pos})
	}
	l.plan.Project.CraftList = cl.head()
}

func (l *lowering) lowerWorkAreas(m *importer.Model, snap ProjectSnapshot) {
	if len(m.WorkAreas) == 0 {
		return
	}
	// Parents are created before their children because the builder numbers
	// work areas in source order.
	for _, w := range m.WorkAreas {
		id := l.sourceID(AggregateWorkArea, w.Source)
		l.workAreas[w.ID] = id
		l.emit(AggregateWorkArea, id, 0, KindCreated, WorkAreaPayload{
			Name:     w.Value.Name,
			ParentID: l.optional(l.workAreas, w.Value.ParentID),
			Position: w.Value.Position,
		})
	}

	wl := newList(Resolve(snap.WorkAreaList, l.id(AggregateWorkAreaList, "")))
	for _, w := range m.WorkAreas {
		kind, v, pos := wl.add()
		l.emit(AggregateWorkAreaList, wl.id, v, kind, ListItemPayload{ItemID: l.workAreas[w.ID], Position: pos})
	}
	l.plan.Project.WorkAreaList = wl.head()
}

func (l *lowering) lowerMilestones(m *importer.Model, snap ProjectSnapshot) {
	for _, ms := range m.Milestones {
		id := l.sourceID(AggregateMilestone, ms.Source)
		l.milestones[ms.ID] = id
		l.emit(AggregateMilestone, id, 0, KindCreated, MilestonePayload{
			Name:        ms.Value.Name,
			Description: ms.Value.Notes,
			Date:        ms.Value.Date,
			Header:      ms.Value.Header,
			Type:        ms.Value.Type,
			CraftID:     l.optional(l.crafts, ms.Value.CraftID),
			WorkAreaID:  l.optional(l.workAreas, ms.Value.WorkAreaID),
		})
	}

	lists := make(map[MilestoneListKey]*list)
	for _, ms := range m.Milestones {
		key := MilestoneListKey{Date: ms.Value.Date, Header: ms.Value.Header, WorkAreaID: l.workAreas[ms.Value.WorkAreaID]}
		ml, ok := lists[key]
		if !ok {
			var existing *Aggregate
			if agg, found := snap.MilestoneLists[key]; found {
				existing = &agg
			}
			name := fmt.Sprintf("%s/%t/%s", key.Date.Format(time.DateOnly), key.Header, key.WorkAreaID)
			ml = newList(Resolve(existing, l.id(AggregateMilestoneList, name)))
			lists[key] = ml
		}
		kind, v, pos := ml.add()
		l.emit(AggregateMilestoneList, ml.id, v, kind, MilestoneListPayload{
			Date:        key.Date,
			Header:      key.Header,
			WorkAreaID:  l.optional(l.workAreas, ms.Value.WorkAreaID),
			MilestoneID: l.milestones[ms.ID],
			Position:    pos,
		})
	}

	if len(lists) > 0 {
		next := make(map[MilestoneListKey]Aggregate, len(snap.MilestoneLists)+len(lists))
		for k, v := range snap.MilestoneLists {
			next[k] = v
		}
		for k, ml := range lists {
			next[k] = *ml.head()
		}
		l.plan.Project.MilestoneLists = next
	}
}

func (l *lowering) lowerTasks(m *importer.Model) {
	for _, t := range m.Tasks {
		id := l.sourceID(AggregateTask, t.Source)
		l.tasks[t.ID] = id
		l.emit(AggregateTask, id, 0, KindCreated, TaskPayload{
			Name:        t.Value.Name,
			Description: t.Value.Notes,
			CraftID:     l.crafts[t.Value.CraftID],
			WorkAreaID:  l.optional(l.workAreas, t.Value.WorkAreaID),
			Status:      string(importer.StatusDraft),
		})
		switch t.Value.Status {
		case importer.StatusStarted:
			l.emit(AggregateTask, id, 1, KindStarted, nil)
		case importer.StatusAccepted:
			l.emit(AggregateTask, id, 1, KindAccepted, nil)
		}
	}

	for _, s := range m.Schedules {
		taskID := l.tasks[s.Value.TaskID]
		l.emit(AggregateTaskSchedule, l.id(AggregateTaskSchedule, taskID.String()), 0, KindCreated, TaskSchedulePayload{
			TaskID: taskID,
			Start:  optionalTime(s.Value.Start),
			End:    optionalTime(s.Value.End),
		})
	}
}

func (l *lowering) lowerRelations(m *importer.Model) {
	for _, r := range m.Relations {
		src := l.endpoint(r.Value.Source)
		dst := l.endpoint(r.Value.Target)
		id := l.id(AggregateRelation, src.ID.String()+"/"+dst.ID.String())
		l.emit(AggregateRelation, id, 0, KindCreated, RelationPayload{Type: "FINISH_TO_START", Source: src, Target: dst})
	}
}

func (l *lowering) endpoint(ref importer.Ref) RelationEndpoint {
	if ref.Kind == importer.ElementMilestone {
		return RelationEndpoint{Type: string(ref.Kind), ID: l.milestones[ref.ID]}
	}
	return RelationEndpoint{Type: string(ref.Kind), ID: l.tasks[ref.ID]}
}

func (l *lowering) lowerWorkdays(m *importer.Model, snap ProjectSnapshot) {
	wd := m.WorkdayConfiguration
	payload := workdayPayload(wd)

	switch t := Resolve(snap.WorkdayConfiguration, l.id(AggregateWorkdayConfiguration, "")).(type) {
	case Create:
		l.emit(AggregateWorkdayConfiguration, t.ID, 0, KindCreated, payload)
		l.plan.Project.WorkdayConfiguration = &Aggregate{ID: t.ID}
	case Amend:
		if SameWorkdays(snap.Workdays, wd) {
			return
		}
		v := t.Existing.Version + 1
		l.emit(AggregateWorkdayConfiguration, t.Existing.ID, v, KindUpdated, payload)
		l.plan.Project.WorkdayConfiguration = &Aggregate{ID: t.Existing.ID, Version: v}
	}
	l.plan.Project.Workdays = wd
}

func (l *lowering) lowerExternalIDs(m *importer.Model) {
	add := func(typ externalid.ObjectType, src importer.Source, object uuid.UUID) {
		if src.Synthetic {
			return
		}
		rec := externalid.Record{
			ProjectID:        l.project,
			IDType:           m.Format.ExternalIDType(),
			GUID:             src.GUID,
			FileUniqueID:     src.UniqueID,
			FileID:           src.FileID,
			ObjectType:       typ,
			ObjectIdentifier: object,
		}
		name := fmt.Sprintf("%s/%s/%d/%d", rec.IDType, typ, rec.FileID, rec.FileUniqueID)
		l.emit(AggregateExternalID, l.id(AggregateExternalID, name), 0, KindCreated, rec)
		l.plan.ExternalIDs = append(l.plan.ExternalIDs, rec)
	}

	for _, w := range m.WorkAreas {
		add(externalid.ObjectWorkArea, w.Source, l.workAreas[w.ID])
	}
	for _, ms := range m.Milestones {
		add(externalid.ObjectMilestone, ms.Source, l.milestones[ms.ID])
	}
	for _, t := range m.Tasks {
		add(externalid.ObjectTask, t.Source, l.tasks[t.ID])
	}
}

func (l *lowering) optional(ids map[int]uuid.UUID, id int) *uuid.UUID {
	if id == 0 {
		return nil
	}
	v, ok := ids[id]
	if !ok {
		return nil
	}
	return &v
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func workdayPayload(wd importer.WorkdayConfiguration) WorkdayConfigurationPayload {
	p := WorkdayConfigurationPayload{
		WorkingDays:               make([]string, 0, len(wd.WorkingDays)),
		Holidays:                  make([]HolidayPayload, 0, len(wd.Holidays)),
		AllowWorkOnNonWorkingDays: wd.AllowWorkOnNonWorkingDays,
	}
	for _, d := range wd.WorkingDays {
		p.WorkingDays = append(p.WorkingDays, strings.ToUpper(d.String()))
	}
	for _, h := range wd.Holidays {
		p.Holidays = append(p.Holidays, HolidayPayload{Name: h.Name, Date: h.Date})
	}
	return p
}

// SameWorkdays reports whether two configurations are equal.
func SameWorkdays(a, b importer.WorkdayConfiguration) bool {
	if a.AllowWorkOnNonWorkingDays != b.AllowWorkOnNonWorkingDays ||
		len(a.WorkingDays) != len(b.WorkingDays) ||
		len(a.Holidays) != len(b.Holidays) {
		return false
	}
	for i := range a.WorkingDays {
		if a.WorkingDays[i] != b.WorkingDays[i] {
			return false
		}
	}
	for i := range a.Holidays {
		if a.Holidays[i].Name != b.Holidays[i].Name || !a.Holidays[i].Date.Equal(b.Holidays[i].Date) {
			return false
		}
	}
	return true
}
