package externalid

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/schedimport/internal/schedule"
)

func record(project uuid.UUID, typ ObjectType, fileID int) Record {
	return Record{
		ProjectID:        project,
		IDType:           schedule.ExternalIDMSProject,
		FileUniqueID:     fileID * 10,
		FileID:           fileID,
		ObjectType:       typ,
		ObjectIdentifier: uuid.NewSHA1(project, []byte{byte(fileID), typ[0]}),
	}
}

func TestMemoryRegistry_SaveAndList(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	p1, p2 := uuid.New(), uuid.New()

	require.NoError(t, reg.Save(ctx, []Record{
		record(p1, ObjectTask, 2),
		record(p1, ObjectTask, 1),
		record(p1, ObjectMilestone, 3),
		record(p2, ObjectTask, 1),
	}))

	got, err := reg.List(ctx, p1)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, ObjectMilestone, got[0].ObjectType)
	assert.Equal(t, 1, got[1].FileID)
	assert.Equal(t, 2, got[2].FileID)
}

func TestMemoryRegistry_SaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	p := uuid.New()
	rec := record(p, ObjectWorkArea, 1)

	require.NoError(t, reg.Save(ctx, []Record{rec}))
	require.NoError(t, reg.Save(ctx, []Record{rec}))

	got, err := reg.List(ctx, p)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryRegistry_Conflict(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()
	p := uuid.New()
	rec := record(p, ObjectTask, 1)
	require.NoError(t, reg.Save(ctx, []Record{rec}))

	other := rec
	other.ObjectIdentifier = uuid.New()
	fresh := record(p, ObjectTask, 5)

	err := reg.Save(ctx, []Record{fresh, other})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := reg.List(ctx, p)
	require.NoError(t, err)
	assert.Len(t, got, 1, "a failed save stores nothing")
}

func TestRecord_KeyIncludesObjectType(t *testing.T) {
	p := uuid.New()
	assert.NotEqual(t, record(p, ObjectTask, 1).Key(), record(p, ObjectMilestone, 1).Key())
}
