package importer

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/schedimport/internal/schedule"
)

var (
	craftCol    = &AnalysisColumn{Name: "Craft", Type: schedule.KindCustomField, Key: "Text1"}
	workAreaCol = &AnalysisColumn{Name: "Working Area", Type: schedule.KindCustomField, Key: "Text2"}
	day         = func(d int) time.Time { return time.Date(2022, 1, d, 8, 0, 0, 0, time.UTC) }
)

func newFile(tasks ...schedule.Task) *schedule.File {
	return &schedule.File{
		Format: schedule.FormatMSPDI,
		Tasks:  tasks,
		CustomFields: []schedule.Field{
			{Key: "Text1", Name: "Craft", Kind: schedule.KindCustomField},
			{Key: "Text2", Name: "Working Area", Kind: schedule.KindCustomField},
		},
	}
}

func task(id int, name, craft string) schedule.Task {
	return schedule.Task{
		UniqueID: id,
		ID:       id,
		Name:     name,
		Start:    day(3),
		Finish:   day(4),
		Duration: 16 * time.Hour,
		Values:   map[string]string{"Text1": craft},
	}
}

func milestone(id int, name string) schedule.Task {
	return schedule.Task{UniqueID: id, ID: id, Name: name, Start: day(10), Finish: day(10), Milestone: true}
}

func summary(id, parent int, name string) schedule.Task {
	return schedule.Task{UniqueID: id, ID: id, Name: name, Summary: true, ParentUniqueID: parent, Duration: time.Hour}
}

func child(t schedule.Task, parent int) schedule.Task {
	t.ParentUniqueID = parent
	return t
}

func TestBuild_CraftsDeduplicatedCaseInsensitive(t *testing.T) {
	f := newFile(
		task(1, "Walls", "Mason"),
		task(2, "More walls", "mason"),
		task(3, "Paint", " Painter "),
	)

	m := Build(f, Options{CraftColumn: craftCol})

	require.Len(t, m.Crafts, 2)
	assert.Equal(t, "Mason", m.Crafts[0].Value.Name, "first seen casing wins")
	assert.Equal(t, CraftPalette[0], m.Crafts[0].Value.Color)
	assert.Equal(t, "Painter", m.Crafts[1].Value.Name)
	assert.Equal(t, CraftPalette[1], m.Crafts[1].Value.Color)
	assert.True(t, m.Crafts[0].Source.Synthetic)

	require.Len(t, m.Tasks, 3)
	assert.Equal(t, m.Crafts[0].ID, m.Tasks[0].Value.CraftID)
	assert.Equal(t, m.Crafts[0].ID, m.Tasks[1].Value.CraftID)
	assert.Equal(t, m.Crafts[1].ID, m.Tasks[2].Value.CraftID)
	assert.Equal(t, 2, m.Statistics().Crafts)
}

func TestBuild_PlaceholderCraft(t *testing.T) {
	t.Run("task without craft", func(t *testing.T) {
		f := newFile(task(1, "Walls", "Mason"), task(2, "Cleanup", ""))

		m := Build(f, Options{CraftColumn: craftCol})

		require.Len(t, m.Crafts, 2)
		ph := m.Crafts[1]
		assert.True(t, ph.Value.Placeholder)
		assert.Equal(t, PlaceholderCraftName, ph.Value.Name)
		assert.Equal(t, CraftPalette[1], ph.Value.Color)
		assert.Equal(t, ph.ID, m.Tasks[1].Value.CraftID)
		assert.Equal(t, 1, m.Statistics().Crafts, "placeholder is not counted")
	})

	t.Run("no craft column", func(t *testing.T) {
		f := newFile(task(1, "Walls", "Mason"), task(2, "Paint", "Painter"))

		m := Build(f, Options{})

		require.Len(t, m.Crafts, 1)
		assert.True(t, m.Crafts[0].Value.Placeholder)
		assert.Equal(t, CraftPalette[0], m.Crafts[0].Value.Color)
	})

	t.Run("milestones never get the placeholder", func(t *testing.T) {
		f := newFile(milestone(1, "Handover"))

		m := Build(f, Options{CraftColumn: craftCol})

		assert.Empty(t, m.Crafts)
		require.Len(t, m.Milestones, 1)
		assert.Zero(t, m.Milestones[0].Value.CraftID)
	})

	t.Run("unknown column is ignored", func(t *testing.T) {
		f := newFile(task(1, "Walls", "Mason"))
		unknown := &AnalysisColumn{Name: "Nope", FallbackMessageKey: KeyCraftColumnUnknown}

		m := Build(f, Options{CraftColumn: unknown})

		require.Len(t, m.Crafts, 1)
		assert.True(t, m.Crafts[0].Value.Placeholder)
	})
}

func TestBuild_Milestones(t *testing.T) {
	zero := task(2, "Topping out", "Mason")
	zero.Duration = 0
	zero.Start = time.Time{}
	zero.Finish = day(12)

	f := newFile(milestone(1, "Handover"), zero)

	m := Build(f, Options{CraftColumn: craftCol})

	assert.Empty(t, m.Tasks)
	require.Len(t, m.Milestones, 2)

	handover := m.Milestones[0].Value
	assert.Equal(t, "Handover", handover.Name)
	assert.True(t, handover.Header)
	assert.Equal(t, MilestoneProject, handover.Type)
	assert.Equal(t, time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC), handover.Date)

	topping := m.Milestones[1].Value
	assert.Equal(t, MilestoneCraft, topping.Type, "zero duration with craft value")
	assert.Equal(t, time.Date(2022, 1, 12, 0, 0, 0, 0, time.UTC), topping.Date, "falls back to finish")
}

func TestBuild_TaskNamesAndStatus(t *testing.T) {
	long := strings.Repeat("ä", MaxTaskNameLength+5)
	unnamed := task(2, "   ", "")
	unnamed.PercentComplete = 40
	done := task(3, "Done", "")
	done.PercentComplete = 100
	withLong := task(1, long, "")
	withLong.Notes = strings.Repeat("n", MaxDescriptionLength+1)

	m := Build(newFile(withLong, unnamed, done), Options{})

	require.Len(t, m.Tasks, 3)
	first := m.Tasks[0].Value
	assert.Equal(t, strings.Repeat("ä", MaxTaskNameLength), first.Name)
	assert.Equal(t, long, first.OriginalName)
	assert.Len(t, first.Notes, MaxDescriptionLength)
	assert.Equal(t, StatusDraft, first.Status)

	second := m.Tasks[1].Value
	assert.Equal(t, UnnamedTask, second.Name)
	assert.True(t, second.NameDefaulted)
	assert.Equal(t, StatusStarted, second.Status)

	assert.Equal(t, StatusAccepted, m.Tasks[2].Value.Status)

	require.Len(t, m.Schedules, 3)
	assert.Equal(t, time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC), m.Schedules[0].Value.Start)
	assert.Equal(t, time.Date(2022, 1, 4, 0, 0, 0, 0, time.UTC), m.Schedules[0].Value.End)
}

func TestBuild_MultipleValues(t *testing.T) {
	f := newFile(task(1, "Walls", ""))
	f.Resources = []schedule.Resource{{UniqueID: 1, Name: "Mason"}, {UniqueID: 2, Name: " Painter"}, {UniqueID: 3, Name: "mason"}}
	f.Tasks[0].ResourceUniqueIDs = []int{1, 2, 3}
	col := &AnalysisColumn{Name: "Resource Names", Type: schedule.KindTaskField, Key: schedule.ResourceNamesKey}

	m := Build(f, Options{CraftColumn: col})

	require.Len(t, m.Crafts, 1, "only the first value becomes a craft")
	assert.Equal(t, "Mason", m.Crafts[0].Value.Name)
	assert.Equal(t, []string{"Mason", "Painter"}, m.Tasks[0].Value.CraftValues)
}

func TestBuild_ResourceNameWithComma(t *testing.T) {
	f := newFile(task(1, "Walls", ""))
	f.Resources = []schedule.Resource{{UniqueID: 7, Name: "Smith, John"}}
	f.Tasks[0].ResourceUniqueIDs = []int{7}
	col := &AnalysisColumn{Name: "Resource Names", Type: schedule.KindTaskField, Key: schedule.ResourceNamesKey}

	m := Build(f, Options{CraftColumn: col})

	require.Len(t, m.Crafts, 1)
	assert.Equal(t, "Smith, John", m.Crafts[0].Value.Name)
	assert.Equal(t, []string{"Smith, John"}, m.Tasks[0].Value.CraftValues)
	assert.Empty(t, Validate(m))
}

func TestBuild_Relations(t *testing.T) {
	f := newFile(
		summary(1, 0, "Shell"),
		task(2, "Walls", ""),
		task(3, "Paint", ""),
		milestone(4, "Handover"),
	)
	f.Relations = []schedule.Relation{
		{PredecessorUniqueID: 2, SuccessorUniqueID: 3, Type: schedule.FinishStart},
		{PredecessorUniqueID: 3, SuccessorUniqueID: 4, Type: schedule.FinishStart},
		{PredecessorUniqueID: 2, SuccessorUniqueID: 3, Type: schedule.StartStart},
		{PredecessorUniqueID: 1, SuccessorUniqueID: 4, Type: schedule.FinishStart},
		{PredecessorUniqueID: 3, SuccessorUniqueID: 99, Type: schedule.FinishStart},
	}

	m := Build(f, Options{})

	require.Len(t, m.Relations, 2)
	assert.Equal(t, Relation{
		Source: Ref{Kind: ElementTask, ID: 1},
		Target: Ref{Kind: ElementTask, ID: 2},
	}, m.Relations[0].Value)
	assert.Equal(t, Relation{
		Source: Ref{Kind: ElementTask, ID: 2},
		Target: Ref{Kind: ElementMilestone, ID: 1},
	}, m.Relations[1].Value)

	require.Len(t, m.SkippedRelations, 3)
	assert.Equal(t, SkippedRelation{Label: "Start-to-Start", Source: "Walls", Target: "Paint", Reason: SkipUnsupportedType}, m.SkippedRelations[0])
	assert.Equal(t, SkippedRelation{Label: "Finish-to-Start", Source: "Shell", Target: "Handover", Reason: SkipUnsupportedElement}, m.SkippedRelations[1])
	assert.Equal(t, SkipUnsupportedElement, m.SkippedRelations[2].Reason)
}

func TestBuild_HierarchicalWorkAreas(t *testing.T) {
	f := newFile(
		summary(1, 0, "Building A"),
		summary(2, 1, "Level 1"),
		child(task(3, "Walls", ""), 2),
		summary(4, 1, ""),
		child(task(5, "Roof", ""), 4),
		summary(6, 0, "Unused"),
		summary(7, 6, "Unused child"),
		task(8, "Cleanup", ""),
	)

	m := Build(f, Options{ReadWorkAreasHierarchically: true})

	require.Len(t, m.WorkAreas, 3, "unused work areas are dropped")
	a, l1, ph := m.WorkAreas[0], m.WorkAreas[1], m.WorkAreas[2]

	assert.Equal(t, "Building A", a.Value.Name)
	assert.Zero(t, a.Value.ParentID)
	assert.Equal(t, 1, a.Value.Depth)
	assert.Equal(t, 0, a.Value.Position)
	assert.Equal(t, 1, a.Source.UniqueID)
	assert.False(t, a.Source.Synthetic)

	assert.Equal(t, "Level 1", l1.Value.Name)
	assert.Equal(t, a.ID, l1.Value.ParentID)
	assert.Equal(t, 2, l1.Value.Depth)
	assert.Equal(t, 0, l1.Value.Position)

	assert.Equal(t, "Placeholder1", ph.Value.Name)
	assert.Equal(t, a.ID, ph.Value.ParentID)
	assert.Equal(t, 1, ph.Value.Position)

	require.Len(t, m.Tasks, 3)
	assert.Equal(t, l1.ID, m.Tasks[0].Value.WorkAreaID)
	assert.Equal(t, ph.ID, m.Tasks[1].Value.WorkAreaID)
	assert.Zero(t, m.Tasks[2].Value.WorkAreaID, "task without ancestors has no work area")
}

func TestBuild_SummariesSkippedWithoutHierarchy(t *testing.T) {
	f := newFile(summary(1, 0, "Shell"), child(task(2, "Walls", ""), 1))

	m := Build(f, Options{})

	assert.Empty(t, m.WorkAreas)
	require.Len(t, m.Tasks, 1)
	assert.Zero(t, m.Tasks[0].Value.WorkAreaID)
}

func TestBuild_WorkAreaColumnWinsOverHierarchy(t *testing.T) {
	walls := child(task(2, "Walls", ""), 1)
	walls.Values["Text2"] = "Level 1"
	paint := child(task(3, "Paint", ""), 1)
	paint.Values["Text2"] = "level 1"

	f := newFile(summary(1, 0, "Shell"), walls, paint)

	m := Build(f, Options{WorkAreaColumn: workAreaCol, ReadWorkAreasHierarchically: true})

	require.Len(t, m.WorkAreas, 1)
	w := m.WorkAreas[0]
	assert.Equal(t, "Level 1", w.Value.Name)
	assert.Equal(t, Source{UniqueID: -1, FileID: -1}, w.Source)
	assert.Equal(t, w.ID, m.Tasks[0].Value.WorkAreaID)
	assert.Equal(t, w.ID, m.Tasks[1].Value.WorkAreaID)
}

func TestBuild_IsDeterministic(t *testing.T) {
	f := newFile(
		summary(1, 0, "Shell"),
		child(task(2, "Walls", "Mason"), 1),
		child(task(3, "Paint", ""), 1),
		milestone(4, "Handover"),
	)
	f.Relations = []schedule.Relation{{PredecessorUniqueID: 2, SuccessorUniqueID: 3, Type: schedule.StartFinish}}
	opts := Options{CraftColumn: craftCol, ReadWorkAreasHierarchically: true}

	assert.Equal(t, Build(f, opts), Build(f, opts))
}

func TestBuild_FromMSPDI(t *testing.T) {
	data, err := os.ReadFile("../schedule/testdata/simple-ms.xml")
	require.NoError(t, err)
	f, err := schedule.Read(data)
	require.NoError(t, err)

	col := AnalyzeColumn(f, "Craft", "", IntentCraft)
	require.True(t, col.Known())

	m := Build(f, Options{CraftColumn: &col, ReadWorkAreasHierarchically: true})

	assert.Equal(t, schedule.FormatMSPDI, m.Format)
	assert.Equal(t, Statistics{WorkAreas: 1, Crafts: 2, Tasks: 3, Milestones: 1, Relations: 1}, m.Statistics())
	assert.Equal(t, "Shell", m.WorkAreas[0].Value.Name)
	assert.Equal(t, "6F0E1E4C-0000-0000-0000-000000000001", m.WorkAreas[0].Source.GUID)
	assert.True(t, m.Milestones[0].Value.Header)
	require.Len(t, m.SkippedRelations, 1)
	assert.Equal(t, "Start-to-Start", m.SkippedRelations[0].Label)

	wd := m.WorkdayConfiguration
	assert.Equal(t, DefaultWorkingDays, wd.WorkingDays)
	require.Len(t, wd.Holidays, 3)
	assert.Equal(t, Holiday{Name: "Christmas", Date: time.Date(2022, 12, 24, 0, 0, 0, 0, time.UTC)}, wd.Holidays[0])
	assert.False(t, wd.AllowWorkOnNonWorkingDays)
}
