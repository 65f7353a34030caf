package importer

import (
	"sort"
	"strings"

	"github.com/JonMunkholm/schedimport/internal/schedule"
)

// ResourcesColumnName is the artificial column offered when a file has
// resources but no Resource Names field.
const ResourcesColumnName = "Resources"

// Column is a column the user can pick for crafts or work areas.
type Column struct {
	Name string             `json:"name"`
	Type schedule.FieldKind `json:"columnType"`
	Key  string             `json:"fieldType,omitempty"`
}

// Intent tells the analyzer which selection a column is resolved for.
type Intent int

const (
	IntentCraft Intent = iota
	IntentWorkArea
)

// UnknownKey is the message key raised when a column selected for i does not
// exist in the file.
func (i Intent) UnknownKey() string {
	if i == IntentWorkArea {
		return KeyWorkAreaColumnUnknown
	}
	return KeyCraftColumnUnknown
}

// AnalysisColumn is a resolved column selection. Type is empty when the
// requested column does not exist; FallbackMessageKey then names the problem.
type AnalysisColumn struct {
	Name               string             `json:"name"`
	Type               schedule.FieldKind `json:"columnType,omitempty"`
	Key                string             `json:"fieldType,omitempty"`
	FallbackMessageKey string             `json:"fallbackMessageKey"`
}

// Known reports whether the column was found in the file.
func (c AnalysisColumn) Known() bool {
	return c.Type != ""
}

// Err returns the precondition raised for an unknown column, or nil.
func (c AnalysisColumn) Err() error {
	if c.Known() {
		return nil
	}
	return Precondition(c.FallbackMessageKey, c.Name)
}

// ReadColumns lists the selectable columns of a file, sorted by name.
// Activity codes and the artificial resources column are only offered when the
// file has no task, custom or user-defined field columns.
func ReadColumns(f *schedule.File) []Column {
	seen := make(map[string]bool)
	var cols []Column
	add := func(fd schedule.Field) {
		if fd.Name == "" || seen[fd.Name] {
			return
		}
		if fd.Kind == schedule.KindTaskField && strings.EqualFold(fd.Name, "WBS") {
			return
		}
		seen[fd.Name] = true
		cols = append(cols, Column{Name: fd.Name, Type: fd.Kind, Key: fd.Key})
	}

	for _, fd := range f.TaskFields {
		add(fd)
	}
	for _, fd := range f.CustomFields {
		add(fd)
	}
	for _, fd := range userDefinedFields(f) {
		add(fd)
	}

	if len(cols) == 0 {
		for _, fd := range f.ActivityCodes {
			add(fd)
		}
		if len(f.Resources) > 0 && !hasResourceNames(f) {
			add(schedule.Field{Key: ResourcesColumnName, Name: ResourcesColumnName, Kind: schedule.KindResource})
		}
	}

	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Name < cols[j].Name })
	return cols
}

// userDefinedFields drops duplicate names, keeping the field that carries task values.
func userDefinedFields(f *schedule.File) []schedule.Field {
	count := make(map[string]int)
	for _, fd := range f.UserDefinedFields {
		count[fd.Name]++
	}
	var out []schedule.Field
	for _, fd := range f.UserDefinedFields {
		if count[fd.Name] == 1 {
			out = append(out, fd)
			continue
		}
		if fieldHasValues(f, fd) {
			out = append(out, fd)
		}
	}
	return out
}

func fieldHasValues(f *schedule.File, fd schedule.Field) bool {
	for _, t := range f.Tasks {
		if strings.TrimSpace(t.Value(fd.Key)) != "" {
			return true
		}
	}
	return false
}

func hasResourceNames(f *schedule.File) bool {
	for _, fd := range f.TaskFields {
		if fd.Key == schedule.ResourceNamesKey {
			return true
		}
	}
	return false
}

// AnalyzeColumn resolves a column name (and optional field type) against the
// file. Candidates are searched in the order user-defined field, resource,
// task field, custom field, activity code.
func AnalyzeColumn(f *schedule.File, name, fieldType string, intent Intent) AnalysisColumn {
	result := AnalysisColumn{Name: name, FallbackMessageKey: intent.UnknownKey()}
	if strings.TrimSpace(name) == "" {
		return result
	}

	var resources []schedule.Field
	if len(f.Resources) > 0 {
		resources = []schedule.Field{{Key: ResourcesColumnName, Name: ResourcesColumnName, Kind: schedule.KindResource}}
	}

	groups := [][]schedule.Field{
		userDefinedFields(f),
		resources,
		f.TaskFields,
		f.CustomFields,
		f.ActivityCodes,
	}
	for _, group := range groups {
		for _, fd := range group {
			if !columnMatches(fd, name, fieldType) {
				continue
			}
			result.Type = fd.Kind
			result.Key = fd.Key
			return result
		}
	}
	return result
}

func columnMatches(fd schedule.Field, name, fieldType string) bool {
	if fieldType != "" && normalizeColumn(fieldType) != normalizeColumn(fd.Key) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(name), fd.Name) ||
		normalizeColumn(name) == normalizeColumn(fd.Key)
}

func normalizeColumn(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", " ", "", "-", "").Replace(s)
}

var (
	craftHints    = []string{"craft", "gewerk", "trade", "discipline"}
	workAreaHints = []string{"work area", "working area", "working_area", "workarea", "location", "arbeitsbereich"}
)

// SuggestColumns proposes a craft and a work area column by name.
func SuggestColumns(cols []Column) (craft, workArea *Column) {
	for i := range cols {
		name := strings.ToLower(cols[i].Name)
		if craft == nil && containsAny(name, craftHints) {
			craft = &cols[i]
			continue
		}
		if workArea == nil && containsAny(name, workAreaHints) {
			workArea = &cols[i]
		}
	}
	return craft, workArea
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// columnValues returns the distinct, trimmed values of col for t in source order.
func columnValues(f *schedule.File, t schedule.Task, col *AnalysisColumn) []string {
	if col == nil || !col.Known() {
		return nil
	}

	var raw []string
	switch {
	case col.Type == schedule.KindResource, col.Key == schedule.ResourceNamesKey:
		raw = f.ResourceNames(t)
	default:
		raw = []string{t.Value(col.Key)}
	}

	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		k := strings.ToLower(v)
		if v == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}
