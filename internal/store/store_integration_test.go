//go:build integration

package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JonMunkholm/schedimport/internal/events"
	"github.com/JonMunkholm/schedimport/internal/externalid"
	"github.com/JonMunkholm/schedimport/internal/importer"
	"github.com/JonMunkholm/schedimport/internal/schedule"
	"github.com/JonMunkholm/schedimport/internal/store"
)

// setupStore starts PostgreSQL in a container and applies the migrations.
func setupStore(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	_, currentFile, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(currentFile), "..", "..", "migrations")

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(connStr, migrationsPath))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := store.New(pool)
	require.NoError(t, s.Ping(ctx))
	return s
}

func scheduleFile() *schedule.File {
	start := time.Date(2022, 1, 3, 8, 0, 0, 0, time.UTC)
	task := func(id int, craft string) schedule.Task {
		return schedule.Task{
			UniqueID: id,
			ID:       id,
			Name:     "Task",
			Start:    start,
			Finish:   start.Add(32 * time.Hour),
			Duration: 16 * time.Hour,
			Values:   map[string]string{"Text1": craft},
		}
	}
	return &schedule.File{
		Format:       schedule.FormatMSPDI,
		Tasks:        []schedule.Task{task(1, "Mason"), task(2, "Painter"), task(3, "mason")},
		CustomFields: []schedule.Field{{Key: "Text1", Name: "Craft", Kind: schedule.KindCustomField}},
	}
}

func TestStore_Imports(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	projectID := uuid.New()
	require.NoError(t, s.CreateProject(ctx, projectID, "Tower"))

	_, err := s.FindImport(ctx, projectID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	imp := &store.ProjectImport{
		ProjectID: projectID,
		BlobName:  "projects/" + projectID.String() + "/a",
		FileName:  "plan.xml",
		Status:    store.StatusPlanning,
	}
	require.NoError(t, s.SaveImport(ctx, imp))
	assert.Equal(t, int64(0), imp.Version)

	imp.CraftColumn = &importer.AnalysisColumn{Name: "Craft", Type: schedule.KindCustomField, Key: "Text1", FallbackMessageKey: importer.KeyCraftColumnUnknown}
	imp.WorkAreaColumn = &importer.AnalysisColumn{Name: "Bauabschnitt", FallbackMessageKey: importer.KeyWorkAreaColumnUnknown}
	require.NoError(t, s.UpdateImport(ctx, imp))
	assert.Equal(t, int64(1), imp.Version)

	stale := *imp
	stale.Version = 0
	assert.ErrorIs(t, s.UpdateImport(ctx, &stale), store.ErrConflict)

	found, err := s.FindImport(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPlanning, found.Status)
	assert.Equal(t, imp.CraftColumn, found.CraftColumn)
	assert.Equal(t, imp.WorkAreaColumn, found.WorkAreaColumn)
	assert.True(t, importer.IsPrecondition(found.WorkAreaColumn.Err(), importer.KeyWorkAreaColumnUnknown))

	// A new upload replaces the record.
	replaced := &store.ProjectImport{ProjectID: projectID, BlobName: "projects/b", Status: store.StatusPlanning}
	require.NoError(t, s.SaveImport(ctx, replaced))
	assert.Equal(t, int64(2), replaced.Version)

	require.NoError(t, s.DeleteImport(ctx, projectID))
	_, err = s.FindImport(ctx, projectID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_Append(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	projectID := uuid.New()
	require.NoError(t, s.CreateProject(ctx, projectID, "Tower"))

	has, err := s.HasImportedData(ctx, projectID)
	require.NoError(t, err)
	assert.False(t, has)

	snap, err := s.Snapshot(ctx, projectID)
	require.NoError(t, err)
	require.NotNil(t, snap.CraftList)
	assert.Equal(t, importer.DefaultWorkingDays, snap.Workdays.WorkingDays)

	craftCol := &importer.AnalysisColumn{Name: "Craft", Type: schedule.KindCustomField, Key: "Text1"}
	m := importer.Build(scheduleFile(), importer.Options{CraftColumn: craftCol})
	plan := events.Lower(snap, uuid.New(), m)
	require.NoError(t, s.Append(ctx, plan))

	stored, err := s.Events(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, stored, len(plan.Events))
	for i, e := range stored {
		assert.Equal(t, plan.Events[i].AggregateID, e.AggregateID)
		assert.Equal(t, plan.Events[i].Kind, e.Kind)
		assert.Equal(t, plan.TransactionID, e.TransactionID)
	}

	has, err = s.HasImportedData(ctx, projectID)
	require.NoError(t, err)
	assert.True(t, has)

	ids, err := s.ExternalIDs().List(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	for _, rec := range ids {
		assert.Equal(t, externalid.ObjectTask, rec.ObjectType)
		assert.Equal(t, schedule.ExternalIDMSProject, rec.IDType)
	}

	after, err := s.Snapshot(ctx, projectID)
	require.NoError(t, err)
	assert.Equal(t, plan.Project.CraftList, after.CraftList)

	// Appending the same plan again collides on aggregate versions and keeps nothing.
	assert.ErrorIs(t, s.Append(ctx, plan), store.ErrConflict)
	again, err := s.Events(ctx, projectID)
	require.NoError(t, err)
	assert.Len(t, again, len(stored))
}

func TestStore_ExternalIDs(t *testing.T) {
	ctx := context.Background()
	s := setupStore(t)
	projectID := uuid.New()
	require.NoError(t, s.CreateProject(ctx, projectID, "Tower"))

	rec := externalid.Record{
		ProjectID:        projectID,
		IDType:           schedule.ExternalIDMSProject,
		FileUniqueID:     7,
		FileID:           3,
		ObjectType:       externalid.ObjectTask,
		ObjectIdentifier: uuid.New(),
	}
	reg := s.ExternalIDs()
	require.NoError(t, reg.Save(ctx, []externalid.Record{rec}))
	require.NoError(t, reg.Save(ctx, []externalid.Record{rec}), "same mapping is accepted")

	conflicting := rec
	conflicting.ObjectIdentifier = uuid.New()
	assert.ErrorIs(t, reg.Save(ctx, []externalid.Record{conflicting}), externalid.ErrDuplicate)

	list, err := reg.List(ctx, projectID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ObjectIdentifier, list[0].ObjectIdentifier)
}
