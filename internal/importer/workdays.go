package importer

import (
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/schedimport/internal/schedule"
)

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// workdayConfiguration derives working days and holidays from the default
// calendar. Work on non-working days is allowed as soon as one schedule starts
// or ends on such a day.
func workdayConfiguration(cal *schedule.Calendar, schedules []Object[TaskSchedule]) WorkdayConfiguration {
	cfg := WorkdayConfiguration{}

	if cal == nil {
		cfg.WorkingDays = append([]time.Weekday(nil), DefaultWorkingDays...)
	} else {
		for _, d := range weekdays {
			if cal.IsWorkingDay(d) {
				cfg.WorkingDays = append(cfg.WorkingDays, d)
			}
		}
		cfg.Holidays = holidays(cal.Exceptions)
	}

	off := make(map[time.Time]bool, len(cfg.Holidays))
	for _, h := range cfg.Holidays {
		off[h.Date] = true
	}
	working := make(map[time.Weekday]bool, len(cfg.WorkingDays))
	for _, d := range cfg.WorkingDays {
		working[d] = true
	}
	nonWorking := func(t time.Time) bool {
		return !t.IsZero() && (!working[t.Weekday()] || off[t])
	}

	for _, s := range schedules {
		if nonWorking(s.Value.Start) || nonWorking(s.Value.End) {
			cfg.AllowWorkOnNonWorkingDays = true
			break
		}
	}
	return cfg
}

// holidays expands non-working exceptions into distinct dated holidays,
// sorted by date then name. Expansion stops after MaxHolidays+1 entries;
// the validator rejects the model anyway and a single exception may span
// millennia.
func holidays(exceptions []schedule.CalendarException) []Holiday {
	type key struct {
		name string
		date time.Time
	}
	seen := make(map[key]bool)
	var out []Holiday
	full := func() bool { return len(out) > MaxHolidays }
	add := func(name string, d time.Time) {
		if d.IsZero() || full() {
			return
		}
		d = dateOf(d)
		k := key{strings.ToLower(name), d}
		if seen[k] {
			return
		}
		seen[k] = true
		out = append(out, Holiday{Name: name, Date: d})
	}

	for _, ex := range exceptions {
		if ex.Working || full() {
			continue
		}
		name := strings.TrimSpace(ex.Name)
		if name == "" {
			name = unnamedHoliday
		}
		name, _ = truncate(name, MaxHolidayNameLength)

		from, to := dateOf(ex.From), dateOf(ex.To)
		switch {
		case !from.IsZero() && !to.IsZero():
			for d := from; !d.After(to) && !full(); d = d.AddDate(0, 0, 1) {
				add(name, d)
			}
		case !from.IsZero():
			add(name, from)
		default:
			add(name, to)
		}
		for _, d := range ex.Recurring {
			add(name, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out
}
