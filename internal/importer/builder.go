package importer

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/schedimport/internal/schedule"
)

// Options are the caller's column choices for one build.
type Options struct {
	CraftColumn    *AnalysisColumn
	WorkAreaColumn *AnalysisColumn

	// ReadWorkAreasHierarchically turns summary tasks into work areas. It is
	// ignored when a work area column is selected.
	ReadWorkAreasHierarchically bool
}

type entryKind int

const (
	entrySkipped entryKind = iota
	entryTask
	entryMilestone
	entryWorkArea
)

// entry is a source task classified in the first pass.
type entry struct {
	task      schedule.Task
	kind      entryKind
	id        int
	crafts    []string
	workAreas []string
}

// index is built by the first pass and only read by the second.
type index struct {
	entries []entry
	byUID   map[int]int // source unique id -> position in entries

	crafts         []Object[Craft]
	craftByKey     map[string]int
	placeholderID  int
	workAreas      []Object[WorkArea]
	workAreaByKey  map[string]int // column mode: lower(name) -> id
	workAreaForUID map[int]int    // hierarchy mode: summary unique id -> id
}

// Build maps a generic schedule file to an Import Model. It never fails on
// business rules; limits and corrections are surfaced by Validate.
func Build(f *schedule.File, opts Options) *Model {
	idx := identify(f, opts)
	return resolve(f, idx)
}

// identify is the first pass: classify every source task and assign synthetic
// ids to tasks, milestones, crafts and work areas.
func identify(f *schedule.File, opts Options) *index {
	idx := &index{
		byUID:          make(map[int]int),
		craftByKey:     make(map[string]int),
		workAreaByKey:  make(map[string]int),
		workAreaForUID: make(map[int]int),
	}

	craftCol := knownColumn(opts.CraftColumn)
	workAreaCol := knownColumn(opts.WorkAreaColumn)
	hierarchy := workAreaCol == nil && opts.ReadWorkAreasHierarchically

	var taskSeq, milestoneSeq, placeholderSeq int
	needsPlaceholder := false

	for _, t := range f.SortedTasks() {
		e := entry{task: t}
		switch {
		case t.Summary && hierarchy:
			e.kind = entryWorkArea
		case t.Summary:
			e.kind = entrySkipped
		case t.Milestone || t.Duration == 0:
			milestoneSeq++
			e.kind, e.id = entryMilestone, milestoneSeq
		default:
			taskSeq++
			e.kind, e.id = entryTask, taskSeq
		}

		if e.kind == entryTask || e.kind == entryMilestone {
			e.crafts = columnValues(f, t, craftCol)
			e.workAreas = columnValues(f, t, workAreaCol)

			if len(e.crafts) > 0 {
				idx.addCraft(e.crafts[0])
			} else if e.kind == entryTask {
				needsPlaceholder = true
			}
			if len(e.workAreas) > 0 {
				idx.addColumnWorkArea(e.workAreas[0])
			}
		}

		if e.kind == entryWorkArea {
			name := strings.TrimSpace(t.Name)
			if name == "" {
				placeholderSeq++
				name = fmt.Sprintf("%s%d", placeholderWorkArea, placeholderSeq)
			}
			parent := 0
			if pos, ok := idx.byUID[t.ParentUniqueID]; ok && idx.entries[pos].kind == entryWorkArea {
				parent = idx.workAreaForUID[t.ParentUniqueID]
			}
			e.id = idx.addWorkArea(name, parent, sourceOf(t))
			idx.workAreaForUID[t.UniqueID] = e.id
		}

		idx.byUID[t.UniqueID] = len(idx.entries)
		idx.entries = append(idx.entries, e)
	}

	if needsPlaceholder {
		idx.placeholderID = idx.addPlaceholderCraft()
	}
	return idx
}

func knownColumn(c *AnalysisColumn) *AnalysisColumn {
	if c == nil || !c.Known() {
		return nil
	}
	return c
}

func sourceOf(t schedule.Task) Source {
	return Source{GUID: t.GUID, UniqueID: t.UniqueID, FileID: t.ID}
}

func (idx *index) addCraft(value string) int {
	name, _ := truncate(value, MaxCraftNameLength)
	key := strings.ToLower(name)
	if id, ok := idx.craftByKey[key]; ok {
		return id
	}
	id := len(idx.crafts) + 1
	idx.crafts = append(idx.crafts, Object[Craft]{
		ID:     id,
		Source: Source{Synthetic: true},
		Value: Craft{
			Name:         name,
			OriginalName: value,
			Color:        CraftPalette[(id-1)%len(CraftPalette)],
		},
	})
	idx.craftByKey[key] = id
	return id
}

func (idx *index) addPlaceholderCraft() int {
	id := len(idx.crafts) + 1
	idx.crafts = append(idx.crafts, Object[Craft]{
		ID:     id,
		Source: Source{Synthetic: true},
		Value: Craft{
			Name:         PlaceholderCraftName,
			OriginalName: PlaceholderCraftName,
			Color:        CraftPalette[(id-1)%len(CraftPalette)],
			Placeholder:  true,
		},
	})
	return id
}

// addColumnWorkArea registers a work area taken from a column value. Such work
// areas have no source row; they get negative identities so they stay unique
// next to the task identities of the same file.
func (idx *index) addColumnWorkArea(value string) int {
	name, _ := truncate(value, MaxWorkAreaNameLength)
	key := strings.ToLower(name)
	if id, ok := idx.workAreaByKey[key]; ok {
		return id
	}
	seq := len(idx.workAreas) + 1
	id := idx.addWorkArea(value, 0, Source{UniqueID: -seq, FileID: -seq})
	idx.workAreaByKey[key] = id
	return id
}

func (idx *index) addWorkArea(value string, parent int, src Source) int {
	name, _ := truncate(value, MaxWorkAreaNameLength)
	depth := 1
	if parent != 0 {
		depth = idx.workAreas[parent-1].Value.Depth + 1
	}
	id := len(idx.workAreas) + 1
	idx.workAreas = append(idx.workAreas, Object[WorkArea]{
		ID:     id,
		Source: src,
		Value: WorkArea{
			Name:         name,
			OriginalName: value,
			ParentID:     parent,
			Depth:        depth,
		},
	})
	return id
}

// craftFor returns the craft id of an entry, falling back to the placeholder for tasks.
func (idx *index) craftFor(e entry) int {
	if len(e.crafts) > 0 {
		name, _ := truncate(e.crafts[0], MaxCraftNameLength)
		return idx.craftByKey[strings.ToLower(name)]
	}
	if e.kind == entryTask {
		return idx.placeholderID
	}
	return 0
}

// workAreaFor returns the work area id of an entry or 0.
func (idx *index) workAreaFor(e entry) int {
	if len(e.workAreas) > 0 {
		name, _ := truncate(e.workAreas[0], MaxWorkAreaNameLength)
		return idx.workAreaByKey[strings.ToLower(name)]
	}
	if id, ok := idx.workAreaForUID[e.task.ParentUniqueID]; ok {
		return id
	}
	return 0
}

// resolve is the second pass: build model entities from the immutable index.
func resolve(f *schedule.File, idx *index) *Model {
	m := &Model{Format: f.Format}

	for _, e := range idx.entries {
		switch e.kind {
		case entryTask:
			m.Tasks = append(m.Tasks, Object[Task]{ID: e.id, Source: sourceOf(e.task), Value: idx.task(e)})
			m.Schedules = append(m.Schedules, Object[TaskSchedule]{
				ID:     e.id,
				Source: sourceOf(e.task),
				Value: TaskSchedule{
					TaskID: e.id,
					Start:  dateOf(e.task.Start),
					End:    dateOf(e.task.Finish),
				},
			})
		case entryMilestone:
			m.Milestones = append(m.Milestones, Object[Milestone]{ID: e.id, Source: sourceOf(e.task), Value: idx.milestone(e)})
		}
	}

	for i, rel := range f.Relations {
		r, skipped := idx.relation(rel)
		if skipped != nil {
			m.SkippedRelations = append(m.SkippedRelations, *skipped)
			continue
		}
		m.Relations = append(m.Relations, Object[Relation]{
			ID:     i + 1,
			Source: Source{Synthetic: true},
			Value:  r,
		})
	}

	m.Crafts = usedCrafts(idx.crafts, m)
	m.WorkAreas = usedWorkAreas(idx.workAreas, m)
	m.WorkdayConfiguration = workdayConfiguration(f.DefaultCalendar, m.Schedules)
	return m
}

func (idx *index) task(e entry) Task {
	t := Task{
		OriginalName:  e.task.Name,
		OriginalNotes: e.task.Notes,
		CraftID:       idx.craftFor(e),
		WorkAreaID:    idx.workAreaFor(e),
		Status:        statusOf(e.task.PercentComplete),
	}
	t.Name, t.NameDefaulted = nameOrDefault(e.task.Name, UnnamedTask, MaxTaskNameLength)
	t.Notes, _ = truncate(e.task.Notes, MaxDescriptionLength)
	if len(e.crafts) > 1 {
		t.CraftValues = e.crafts
	}
	if len(e.workAreas) > 1 {
		t.WorkAreaValues = e.workAreas
	}
	return t
}

func (idx *index) milestone(e entry) Milestone {
	ms := Milestone{
		OriginalName:  e.task.Name,
		OriginalNotes: e.task.Notes,
		CraftID:       idx.craftFor(e),
		WorkAreaID:    idx.workAreaFor(e),
		Type:          MilestoneProject,
	}
	ms.Name, ms.NameDefaulted = nameOrDefault(e.task.Name, UnnamedMilestone, MaxMilestoneNameLength)
	ms.Notes, _ = truncate(e.task.Notes, MaxDescriptionLength)
	ms.Header = ms.WorkAreaID == 0
	if ms.CraftID != 0 {
		ms.Type = MilestoneCraft
	}
	ms.Date = dateOf(e.task.Start)
	if ms.Date.IsZero() {
		ms.Date = dateOf(e.task.Finish)
	}
	if len(e.crafts) > 1 {
		ms.CraftValues = e.crafts
	}
	if len(e.workAreas) > 1 {
		ms.WorkAreaValues = e.workAreas
	}
	return ms
}

func (idx *index) relation(rel schedule.Relation) (Relation, *SkippedRelation) {
	src, srcOK := idx.ref(rel.PredecessorUniqueID)
	dst, dstOK := idx.ref(rel.SuccessorUniqueID)

	skip := func(reason SkipReason) *SkippedRelation {
		return &SkippedRelation{
			Label:  rel.Type.Label(),
			Source: idx.elementName(rel.PredecessorUniqueID),
			Target: idx.elementName(rel.SuccessorUniqueID),
			Reason: reason,
		}
	}

	if rel.Type != schedule.FinishStart {
		return Relation{}, skip(SkipUnsupportedType)
	}
	if !srcOK || !dstOK {
		return Relation{}, skip(SkipUnsupportedElement)
	}
	return Relation{Source: src, Target: dst}, nil
}

func (idx *index) ref(uid int) (Ref, bool) {
	pos, ok := idx.byUID[uid]
	if !ok {
		return Ref{}, false
	}
	e := idx.entries[pos]
	switch e.kind {
	case entryTask:
		return Ref{Kind: ElementTask, ID: e.id}, true
	case entryMilestone:
		return Ref{Kind: ElementMilestone, ID: e.id}, true
	}
	return Ref{}, false
}

func (idx *index) elementName(uid int) string {
	pos, ok := idx.byUID[uid]
	if !ok {
		return fmt.Sprintf("#%d", uid)
	}
	e := idx.entries[pos]
	fallback := UnnamedTask
	if e.kind == entryMilestone {
		fallback = UnnamedMilestone
	}
	name, _ := nameOrDefault(e.task.Name, fallback, MaxTaskNameLength)
	return name
}

// usedCrafts keeps crafts referenced by a task or milestone.
func usedCrafts(all []Object[Craft], m *Model) []Object[Craft] {
	used := make(map[int]bool)
	for _, t := range m.Tasks {
		used[t.Value.CraftID] = true
	}
	for _, ms := range m.Milestones {
		used[ms.Value.CraftID] = true
	}
	var out []Object[Craft]
	for _, c := range all {
		if used[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// usedWorkAreas keeps work areas referenced by a task or milestone, directly or
// as an ancestor, and renumbers sibling positions.
func usedWorkAreas(all []Object[WorkArea], m *Model) []Object[WorkArea] {
	parentOf := make(map[int]int, len(all))
	for _, w := range all {
		parentOf[w.ID] = w.Value.ParentID
	}

	used := make(map[int]bool)
	mark := func(id int) {
		for id != 0 && !used[id] {
			used[id] = true
			id = parentOf[id]
		}
	}
	for _, t := range m.Tasks {
		mark(t.Value.WorkAreaID)
	}
	for _, ms := range m.Milestones {
		mark(ms.Value.WorkAreaID)
	}

	positions := make(map[int]int)
	var out []Object[WorkArea]
	for _, w := range all {
		if !used[w.ID] {
			continue
		}
		w.Value.Position = positions[w.Value.ParentID]
		positions[w.Value.ParentID]++
		out = append(out, w)
	}
	return out
}

func statusOf(percent float64) TaskStatus {
	switch {
	case percent >= 100:
		return StatusAccepted
	case percent > 0:
		return StatusStarted
	default:
		return StatusDraft
	}
}

func dateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func nameOrDefault(name, fallback string, max int) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback, true
	}
	short, _ := truncate(name, max)
	return short, false
}

// truncate shortens s to max runes.
func truncate(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]), true
}
