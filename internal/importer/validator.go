package importer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ResultType tells whether a diagnostic blocks the import.
type ResultType string

const (
	ResultInfo  ResultType = "INFO"
	ResultError ResultType = "ERROR"
)

// ValidationResult is one diagnostic of an Import Model.
type ValidationResult struct {
	Type             ResultType `json:"type"`
	Element          string     `json:"element"`
	MessageKey       string     `json:"messageKey"`
	MessageArguments []string   `json:"messageArguments"`
}

// blockingKeys maps an ERROR diagnostic to the precondition raised at commit.
var blockingKeys = map[string]string{
	KeyWorkAreaLimitExceeded: KeyTooManyWorkAreas,
	KeyWorkAreaDepthExceeded: KeyWorkAreasTooDeep,
	KeyHolidayLimitExceeded:  KeyTooManyHolidays,
}

// Validate runs the rule battery over m. It only inspects the model, so the
// same model always yields the same results in the same order.
func Validate(m *Model) []ValidationResult {
	v := &validator{}

	v.limits(m)

	for _, c := range m.Crafts {
		if !c.Value.Placeholder && exceeds(c.Value.OriginalName, MaxCraftNameLength) {
			v.info(c.Value.OriginalName, KeyCraftNameShortened)
		}
	}
	for _, w := range m.WorkAreas {
		if exceeds(w.Value.OriginalName, MaxWorkAreaNameLength) {
			v.info(w.Value.OriginalName, KeyWorkAreaNameShortened)
		}
	}

	for _, t := range m.Tasks {
		v.element(element{
			name:          t.Value.Name,
			original:      t.Value.OriginalName,
			defaulted:     t.Value.NameDefaulted,
			originalNotes: t.Value.OriginalNotes,
			crafts:        t.Value.CraftValues,
			workAreas:     t.Value.WorkAreaValues,
		}, taskKeys, MaxTaskNameLength)
	}
	for _, ms := range m.Milestones {
		v.element(element{
			name:          ms.Value.Name,
			original:      ms.Value.OriginalName,
			defaulted:     ms.Value.NameDefaulted,
			originalNotes: ms.Value.OriginalNotes,
			crafts:        ms.Value.CraftValues,
			workAreas:     ms.Value.WorkAreaValues,
		}, milestoneKeys, MaxMilestoneNameLength)
	}

	for _, r := range m.SkippedRelations {
		key := KeyRelationTypeUnsupported
		if r.Reason == SkipUnsupportedElement {
			key = KeyRelationElemUnsupported
		}
		v.info(fmt.Sprintf("%s: \"%s\" → \"%s\"", r.Label, r.Source, r.Target), key)
	}

	return v.results
}

// Blocking returns the precondition for the first ERROR result, or nil.
func Blocking(results []ValidationResult) error {
	for _, r := range results {
		if r.Type != ResultError {
			continue
		}
		key, ok := blockingKeys[r.MessageKey]
		if !ok {
			key = r.MessageKey
		}
		return Precondition(key, r.MessageArguments...)
	}
	return nil
}

type validator struct {
	results []ValidationResult
}

func (v *validator) add(typ ResultType, elem, key string, args ...string) {
	if args == nil {
		args = []string{}
	}
	v.results = append(v.results, ValidationResult{
		Type:             typ,
		Element:          elem,
		MessageKey:       key,
		MessageArguments: args,
	})
}

func (v *validator) info(elem, key string) {
	v.add(ResultInfo, elem, key)
}

func (v *validator) limits(m *Model) {
	if n := len(m.WorkAreas); n > MaxWorkAreas {
		v.add(ResultError, "", KeyWorkAreaLimitExceeded, strconv.Itoa(n), strconv.Itoa(MaxWorkAreas))
	}

	depth := 0
	for _, w := range m.WorkAreas {
		if w.Value.Depth > depth {
			depth = w.Value.Depth
		}
	}
	if depth > MaxWorkAreaDepth {
		v.add(ResultError, "", KeyWorkAreaDepthExceeded, strconv.Itoa(depth), strconv.Itoa(MaxWorkAreaDepth))
	}

	if n := len(m.WorkdayConfiguration.Holidays); n > MaxHolidays {
		v.add(ResultError, "", KeyHolidayLimitExceeded, strconv.Itoa(n), strconv.Itoa(MaxHolidays))
	}
}

type element struct {
	name          string
	original      string
	defaulted     bool
	originalNotes string
	crafts        []string
	workAreas     []string
}

type elementKeys struct {
	defaulted, nameShortened, notesShortened, crafts, workAreas string
}

var (
	taskKeys = elementKeys{
		defaulted:      KeyTaskNameDefaulted,
		nameShortened:  KeyTaskNameShortened,
		notesShortened: KeyTaskNotesShortened,
		crafts:         KeyTaskCraftValues,
		workAreas:      KeyTaskWorkAreaValues,
	}
	milestoneKeys = elementKeys{
		defaulted:      KeyMilestoneNameDefaulted,
		nameShortened:  KeyMilestoneNameShortened,
		notesShortened: KeyMilestoneNotesShortened,
		crafts:         KeyMilestoneCraftValues,
		workAreas:      KeyMilestoneWorkAreaValues,
	}
)

func (v *validator) element(e element, keys elementKeys, maxName int) {
	original := strings.TrimSpace(e.original)
	switch {
	case e.defaulted:
		v.info(e.name, keys.defaulted)
	case exceeds(original, maxName):
		v.info(original, keys.nameShortened)
	}
	if exceeds(e.originalNotes, MaxDescriptionLength) {
		v.info(e.originalNotes, keys.notesShortened)
	}
	if len(e.crafts) > 1 {
		v.info(strings.Join(e.crafts, ", "), keys.crafts)
	}
	if len(e.workAreas) > 1 {
		v.info(strings.Join(e.workAreas, ", "), keys.workAreas)
	}
}

func exceeds(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}
