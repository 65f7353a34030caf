package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/schedimport/internal/events"
	"github.com/JonMunkholm/schedimport/internal/importer"
)

// CreateProject inserts an empty project with its craft list, work area list
// and a default workday configuration.
func (s *Store) CreateProject(ctx context.Context, id uuid.UUID, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (id, name, craft_list_id, work_area_list_id, workday_configuration_id)
		VALUES ($1, $2, $3, $4, $5)`,
		id, name, uuid.New(), uuid.New(), uuid.New())
	if uniqueViolation(err) {
		return fmt.Errorf("project %s: %w", id, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// Snapshot loads the aggregate heads of a project that an import builds on.
func (s *Store) Snapshot(ctx context.Context, projectID uuid.UUID) (events.ProjectSnapshot, error) {
	var (
		craftList, workAreaList, workdays pgtype.UUID
		craftVersion, workAreaVersion     int64
		craftItems, workAreaItems         int
		workdaysVersion                   int64
		workingDays                       []string
		holidays                          []byte
		allowWork                         bool
	)
	err := s.pool.QueryRow(ctx, `
		SELECT craft_list_id, craft_list_version, craft_list_items,
		       work_area_list_id, work_area_list_version, work_area_list_items,
		       workday_configuration_id, workday_configuration_version,
		       working_days, holidays, allow_work_on_non_working_days
		FROM projects WHERE id = $1`, projectID).Scan(
		&craftList, &craftVersion, &craftItems,
		&workAreaList, &workAreaVersion, &workAreaItems,
		&workdays, &workdaysVersion,
		&workingDays, &holidays, &allowWork,
	)
	if err != nil {
		return events.ProjectSnapshot{}, fmt.Errorf("load project %s: %w", projectID, notFound(err))
	}

	snap := events.ProjectSnapshot{
		ProjectID:            projectID,
		CraftList:            aggregate(craftList, craftVersion, craftItems),
		WorkAreaList:         aggregate(workAreaList, workAreaVersion, workAreaItems),
		WorkdayConfiguration: aggregate(workdays, workdaysVersion, 0),
	}

	snap.Workdays.AllowWorkOnNonWorkingDays = allowWork
	for _, d := range workingDays {
		if wd, ok := parseWeekday(d); ok {
			snap.Workdays.WorkingDays = append(snap.Workdays.WorkingDays, wd)
		}
	}
	var hs []events.HolidayPayload
	if err := json.Unmarshal(holidays, &hs); err != nil {
		return events.ProjectSnapshot{}, fmt.Errorf("decode holidays: %w", err)
	}
	for _, h := range hs {
		snap.Workdays.Holidays = append(snap.Workdays.Holidays, importer.Holiday{Name: h.Name, Date: h.Date.UTC()})
	}

	snap.MilestoneLists, err = s.milestoneLists(ctx, projectID)
	if err != nil {
		return events.ProjectSnapshot{}, err
	}
	return snap, nil
}

func (s *Store) milestoneLists(ctx context.Context, projectID uuid.UUID) (map[events.MilestoneListKey]events.Aggregate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.aggregate_id, c.payload, MAX(e.aggregate_version), COUNT(*)
		FROM domain_events e
		JOIN domain_events c ON c.aggregate_id = e.aggregate_id AND c.kind = 'CREATED'
		WHERE e.project_id = $1 AND e.aggregate_type = $2
		GROUP BY e.aggregate_id, c.payload`, projectID, string(events.AggregateMilestoneList))
	if err != nil {
		return nil, fmt.Errorf("query milestone lists: %w", err)
	}
	defer rows.Close()

	lists := make(map[events.MilestoneListKey]events.Aggregate)
	for rows.Next() {
		var (
			id      uuid.UUID
			payload []byte
			version int64
			items   int
		)
		if err := rows.Scan(&id, &payload, &version, &items); err != nil {
			return nil, fmt.Errorf("scan milestone list: %w", err)
		}
		var p events.MilestoneListPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode milestone list: %w", err)
		}
		key := events.MilestoneListKey{Date: p.Date.UTC(), Header: p.Header}
		if p.WorkAreaID != nil {
			key.WorkAreaID = *p.WorkAreaID
		}
		lists[key] = events.Aggregate{ID: id, Version: version, Items: items}
	}
	return lists, rows.Err()
}

// HasImportedData reports whether crafts, work areas, tasks or milestones were
// ever created in the project.
func (s *Store) HasImportedData(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM domain_events
			WHERE project_id = $1 AND kind = $2 AND aggregate_type = ANY($3)
		)`, projectID, string(events.KindCreated), []string{
		string(events.AggregateCraft),
		string(events.AggregateWorkArea),
		string(events.AggregateTask),
		string(events.AggregateMilestone),
	}).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check existing data: %w", err)
	}
	return exists, nil
}

// updateProject stores the aggregate heads after a plan was applied.
func updateProject(ctx context.Context, db DBTX, snap events.ProjectSnapshot) error {
	workingDays := make([]string, 0, len(snap.Workdays.WorkingDays))
	for _, d := range snap.Workdays.WorkingDays {
		workingDays = append(workingDays, strings.ToUpper(d.String()))
	}
	holidays := make([]events.HolidayPayload, 0, len(snap.Workdays.Holidays))
	for _, h := range snap.Workdays.Holidays {
		holidays = append(holidays, events.HolidayPayload{Name: h.Name, Date: h.Date})
	}
	holidayJSON, err := json.Marshal(holidays)
	if err != nil {
		return fmt.Errorf("encode holidays: %w", err)
	}

	craft := head(snap.CraftList)
	workArea := head(snap.WorkAreaList)
	workdays := head(snap.WorkdayConfiguration)

	tag, err := db.Exec(ctx, `
		UPDATE projects SET
			craft_list_id = $2, craft_list_version = $3, craft_list_items = $4,
			work_area_list_id = $5, work_area_list_version = $6, work_area_list_items = $7,
			workday_configuration_id = $8, workday_configuration_version = $9,
			working_days = $10, holidays = $11, allow_work_on_non_working_days = $12
		WHERE id = $1`,
		snap.ProjectID,
		craft.id, craft.version, craft.items,
		workArea.id, workArea.version, workArea.items,
		workdays.id, workdays.version,
		workingDays, holidayJSON, snap.Workdays.AllowWorkOnNonWorkingDays,
	)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update project %s: %w", snap.ProjectID, ErrNotFound)
	}
	return nil
}

type aggregateHead struct {
	id      pgtype.UUID
	version int64
	items   int
}

func head(a *events.Aggregate) aggregateHead {
	if a == nil {
		return aggregateHead{}
	}
	return aggregateHead{id: pgtype.UUID{Bytes: a.ID, Valid: true}, version: a.Version, items: a.Items}
}

func aggregate(id pgtype.UUID, version int64, items int) *events.Aggregate {
	if !id.Valid {
		return nil
	}
	return &events.Aggregate{ID: uuid.UUID(id.Bytes), Version: version, Items: items}
}

func parseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), s) {
			return d, true
		}
	}
	return 0, false
}
