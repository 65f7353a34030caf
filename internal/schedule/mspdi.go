package schedule

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

func init() {
	Register(MSPDIReader{})
}

// MSPDIReader reads Microsoft Project XML (MSPDI) files.
type MSPDIReader struct{}

// Format implements Reader.
func (MSPDIReader) Format() Format { return FormatMSPDI }

type mspdiProject struct {
	XMLName     xml.Name          `xml:"Project"`
	Name        string            `xml:"Name"`
	CalendarUID int               `xml:"CalendarUID"`
	Attributes  []mspdiAttribute  `xml:"ExtendedAttributes>ExtendedAttribute"`
	Calendars   []mspdiCalendar   `xml:"Calendars>Calendar"`
	Tasks       []mspdiTask       `xml:"Tasks>Task"`
	Resources   []mspdiResource   `xml:"Resources>Resource"`
	Assignments []mspdiAssignment `xml:"Assignments>Assignment"`
}

type mspdiAttribute struct {
	FieldID   string `xml:"FieldID"`
	FieldName string `xml:"FieldName"`
	Alias     string `xml:"Alias"`
}

type mspdiCalendar struct {
	UID        int              `xml:"UID"`
	Name       string           `xml:"Name"`
	WeekDays   []mspdiWeekDay   `xml:"WeekDays>WeekDay"`
	Exceptions []mspdiException `xml:"Exceptions>Exception"`
}

type mspdiWeekDay struct {
	DayType      int                `xml:"DayType"`
	DayWorking   int                `xml:"DayWorking"`
	TimePeriod   *mspdiTimePeriod   `xml:"TimePeriod"`
	WorkingTimes []mspdiWorkingTime `xml:"WorkingTimes>WorkingTime"`
}

type mspdiException struct {
	Name         string             `xml:"Name"`
	DayWorking   int                `xml:"DayWorking"`
	TimePeriod   mspdiTimePeriod    `xml:"TimePeriod"`
	Type         int                `xml:"Type"`
	Occurrences  int                `xml:"Occurrences"`
	WorkingTimes []mspdiWorkingTime `xml:"WorkingTimes>WorkingTime"`
}

type mspdiTimePeriod struct {
	FromDate string `xml:"FromDate"`
	ToDate   string `xml:"ToDate"`
}

type mspdiWorkingTime struct {
	FromTime string `xml:"FromTime"`
	ToTime   string `xml:"ToTime"`
}

type mspdiTask struct {
	UID             int              `xml:"UID"`
	ID              int              `xml:"ID"`
	GUID            string           `xml:"GUID"`
	Name            string           `xml:"Name"`
	Notes           string           `xml:"Notes"`
	Start           string           `xml:"Start"`
	Finish          string           `xml:"Finish"`
	Duration        string           `xml:"Duration"`
	Milestone       int              `xml:"Milestone"`
	Summary         int              `xml:"Summary"`
	OutlineLevel    int              `xml:"OutlineLevel"`
	PercentComplete float64          `xml:"PercentComplete"`
	Predecessors    []mspdiLink      `xml:"PredecessorLink"`
	Attributes      []mspdiAttrValue `xml:"ExtendedAttribute"`
}

type mspdiLink struct {
	PredecessorUID int `xml:"PredecessorUID"`
	Type           int `xml:"Type"`
	LinkLag        int `xml:"LinkLag"`
}

type mspdiAttrValue struct {
	FieldID string `xml:"FieldID"`
	Value   string `xml:"Value"`
}

type mspdiResource struct {
	UID  int    `xml:"UID"`
	Name string `xml:"Name"`
}

type mspdiAssignment struct {
	TaskUID     int `xml:"TaskUID"`
	ResourceUID int `xml:"ResourceUID"`
}

// Read implements Reader.
func (MSPDIReader) Read(r io.Reader) (*File, error) {
	var p mspdiProject
	dec := xml.NewDecoder(r)
	dec.Strict = false
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode mspdi: %w", err)
	}

	f := &File{Format: FormatMSPDI}

	attrKeys := make(map[string]string, len(p.Attributes))
	for _, a := range p.Attributes {
		key := a.FieldName
		if key == "" {
			key = a.FieldID
		}
		attrKeys[a.FieldID] = key
		if strings.TrimSpace(a.Alias) != "" {
			f.CustomFields = append(f.CustomFields, Field{Key: key, Name: strings.TrimSpace(a.Alias), Kind: KindCustomField})
		}
	}

	for _, res := range p.Resources {
		if res.UID == 0 && res.Name == "" {
			continue
		}
		f.Resources = append(f.Resources, Resource{UniqueID: res.UID, Name: res.Name})
	}

	assigned := make(map[int][]int)
	for _, a := range p.Assignments {
		if a.ResourceUID <= 0 {
			continue
		}
		assigned[a.TaskUID] = append(assigned[a.TaskUID], a.ResourceUID)
	}
	if len(assigned) > 0 {
		f.TaskFields = append(f.TaskFields, Field{Key: ResourceNamesKey, Name: "Resource Names", Kind: KindTaskField})
	}

	// Parents are implied by outline levels in document order.
	var stack []mspdiTask
	for _, t := range p.Tasks {
		if t.OutlineLevel == 0 && t.UID == 0 {
			continue
		}
		for len(stack) > 0 && stack[len(stack)-1].OutlineLevel >= t.OutlineLevel {
			stack = stack[:len(stack)-1]
		}
		parent := 0
		if len(stack) > 0 {
			parent = stack[len(stack)-1].UID
		}

		task := Task{
			UniqueID:          t.UID,
			ID:                t.ID,
			GUID:              strings.Trim(t.GUID, "{}"),
			Name:              t.Name,
			Notes:             t.Notes,
			Start:             parseMSPDITime(t.Start),
			Finish:            parseMSPDITime(t.Finish),
			Duration:          parseMSPDIDuration(t.Duration),
			Milestone:         t.Milestone == 1,
			Summary:           t.Summary == 1,
			OutlineLevel:      t.OutlineLevel,
			ParentUniqueID:    parent,
			PercentComplete:   t.PercentComplete,
			ResourceUniqueIDs: assigned[t.UID],
		}
		if len(t.Attributes) > 0 {
			task.Values = make(map[string]string, len(t.Attributes))
			for _, v := range t.Attributes {
				key, ok := attrKeys[v.FieldID]
				if !ok {
					key = v.FieldID
				}
				task.Values[key] = v.Value
			}
		}
		f.Tasks = append(f.Tasks, task)

		// LinkLag is in tenths of a minute.
		for _, link := range t.Predecessors {
			f.Relations = append(f.Relations, Relation{
				PredecessorUniqueID: link.PredecessorUID,
				SuccessorUniqueID:   t.UID,
				Type:                mspdiRelationType(link.Type),
				Lag:                 time.Duration(link.LinkLag) * 6 * time.Second,
			})
		}

		if task.Summary {
			stack = append(stack, t)
		}
	}

	f.DefaultCalendar = mspdiDefaultCalendar(p)
	return f, nil
}

func mspdiRelationType(t int) RelationType {
	switch t {
	case 0:
		return FinishFinish
	case 2:
		return StartFinish
	case 3:
		return StartStart
	default:
		return FinishStart
	}
}

func mspdiDefaultCalendar(p mspdiProject) *Calendar {
	if len(p.Calendars) == 0 {
		return nil
	}
	src := p.Calendars[0]
	for _, c := range p.Calendars {
		if c.UID == p.CalendarUID {
			src = c
			break
		}
	}

	cal := &Calendar{Name: src.Name, WorkingHours: make(map[time.Weekday]time.Duration, 7)}
	for _, wd := range src.WeekDays {
		if wd.DayType == 0 {
			// Legacy exception encoding inside WeekDays.
			if wd.TimePeriod != nil {
				cal.Exceptions = append(cal.Exceptions, CalendarException{
					From:    parseMSPDIDate(wd.TimePeriod.FromDate),
					To:      parseMSPDIDate(wd.TimePeriod.ToDate),
					Working: wd.DayWorking == 1,
				})
			}
			continue
		}
		if wd.DayType < 1 || wd.DayType > 7 {
			continue
		}
		day := time.Weekday(wd.DayType - 1)
		if wd.DayWorking != 1 {
			cal.WorkingHours[day] = 0
			continue
		}
		hours := workingTime(wd.WorkingTimes)
		if hours == 0 {
			hours = 8 * time.Hour
		}
		cal.WorkingHours[day] = hours
	}

	for _, ex := range src.Exceptions {
		cal.Exceptions = append(cal.Exceptions, CalendarException{
			Name:    ex.Name,
			From:    parseMSPDIDate(ex.TimePeriod.FromDate),
			To:      parseMSPDIDate(ex.TimePeriod.ToDate),
			Working: ex.DayWorking == 1,
		})
	}
	sort.SliceStable(cal.Exceptions, func(i, j int) bool { return cal.Exceptions[i].From.Before(cal.Exceptions[j].From) })
	return cal
}

func workingTime(periods []mspdiWorkingTime) time.Duration {
	var total time.Duration
	for _, p := range periods {
		from, err1 := time.Parse("15:04:05", p.FromTime)
		to, err2 := time.Parse("15:04:05", p.ToTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if !to.After(from) {
			to = to.Add(24 * time.Hour)
		}
		total += to.Sub(from)
	}
	return total
}

const mspdiTimeLayout = "2006-01-02T15:04:05"

func parseMSPDITime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(mspdiTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseMSPDIDate(s string) time.Time {
	t := parseMSPDITime(s)
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// parseMSPDIDuration parses the ISO 8601 subset MSPDI uses, e.g. PT8H0M0S.
func parseMSPDIDuration(s string) time.Duration {
	m := isoDuration.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	var d time.Duration
	if m[1] != "" {
		n, _ := strconv.Atoi(m[1])
		d += time.Duration(n) * 24 * time.Hour
	}
	if m[2] != "" {
		n, _ := strconv.Atoi(m[2])
		d += time.Duration(n) * time.Hour
	}
	if m[3] != "" {
		n, _ := strconv.Atoi(m[3])
		d += time.Duration(n) * time.Minute
	}
	if m[4] != "" {
		secs, _ := strconv.ParseFloat(m[4], 64)
		d += time.Duration(secs * float64(time.Second))
	}
	return d
}
