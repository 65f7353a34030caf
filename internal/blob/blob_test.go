package blob

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"schedule.xml", "schedule.xml"},
		{"Bauzeitenplan Haus 2 (final).xml", "Bauzeitenplan_Haus_2_final_.xml"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"Ünïcödé.mpp", "_n_c_d_.mpp"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFileName(tt.in))
		})
	}
}

func TestNewName(t *testing.T) {
	p := uuid.New()
	name := NewName(p)
	assert.True(t, strings.HasPrefix(name, "projects/"+p.String()+"/"))
	assert.NotEqual(t, name, NewName(p))
}

func TestResultFromTag(t *testing.T) {
	assert.Equal(t, ScanNotScanned, resultFromTag("", false))
	assert.Equal(t, ScanNotScanned, resultFromTag("", true))
	assert.Equal(t, ScanSafe, resultFromTag(ScanTagNoThreats, true))
	assert.Equal(t, ScanMalicious, resultFromTag(ScanTagMalicious, true))
	assert.Equal(t, ScanMalicious, resultFromTag("Something unexpected", true))
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(false)

	name, err := s.Save(ctx, uuid.New(), "my plan.xml", "", []byte("<Project/>"))
	require.NoError(t, err)
	assert.True(t, s.Quarantined(name))

	_, err = s.Read(ctx, name)
	assert.ErrorIs(t, err, ErrNotFound, "quarantined blobs are not readable")

	result, err := s.ScanResult(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, ScanNotScanned, result)

	require.NoError(t, s.MoveFromQuarantine(ctx, name))
	assert.False(t, s.Quarantined(name))

	data, err := s.Read(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "<Project/>", string(data))

	info, err := s.Find(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, "my_plan.xml", info.FileName)
	assert.Equal(t, defaultContentType, info.ContentType)
	assert.Equal(t, int64(10), info.Size)

	require.NoError(t, s.Delete(ctx, name))
	_, err = s.Find(ctx, name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_AutoSafe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(true)

	name, err := s.Save(ctx, uuid.New(), "a.xml", "text/xml", nil)
	require.NoError(t, err)

	result, err := s.ScanResult(ctx, name)
	require.NoError(t, err)
	assert.True(t, result.Safe())
}

// delayedStore reports NOT_SCANNED for the first polls.
type delayedStore struct {
	*MemoryStore
	pending int32
	calls   atomic.Int32
	final   ScanResult
}

func (d *delayedStore) ScanResult(ctx context.Context, name string) (ScanResult, error) {
	if d.calls.Add(1) <= d.pending {
		return ScanNotScanned, nil
	}
	return d.final, nil
}

func TestScanner_AwaitResult(t *testing.T) {
	ctx := context.Background()

	t.Run("verdict arrives", func(t *testing.T) {
		store := &delayedStore{MemoryStore: NewMemoryStore(false), pending: 2, final: ScanSafe}
		s := NewScanner(store, 5, time.Millisecond)

		result, err := s.AwaitResult(ctx, "blob")
		require.NoError(t, err)
		assert.Equal(t, ScanSafe, result)
		assert.Equal(t, int32(3), store.calls.Load())
	})

	t.Run("malicious", func(t *testing.T) {
		store := &delayedStore{MemoryStore: NewMemoryStore(false), final: ScanMalicious}
		s := NewScanner(store, 5, time.Millisecond)

		result, err := s.AwaitResult(ctx, "blob")
		require.NoError(t, err)
		assert.Equal(t, ScanMalicious, result)
		assert.False(t, result.Safe())
	})

	t.Run("never scanned", func(t *testing.T) {
		store := &delayedStore{MemoryStore: NewMemoryStore(false), pending: 100, final: ScanSafe}
		s := NewScanner(store, 3, time.Millisecond)

		result, err := s.AwaitResult(ctx, "blob")
		require.NoError(t, err)
		assert.Equal(t, ScanNotScanned, result)
		assert.False(t, result.Safe())
		assert.Equal(t, int32(4), store.calls.Load(), "first attempt plus retries")
	})

	t.Run("missing blob", func(t *testing.T) {
		s := NewScanner(NewMemoryStore(false), 3, time.Millisecond)

		result, err := s.AwaitResult(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, ScanNotScanned, result)
	})

	t.Run("context cancelled", func(t *testing.T) {
		store := &delayedStore{MemoryStore: NewMemoryStore(false), pending: 100}
		s := NewScanner(store, 100, 50*time.Millisecond)
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := s.AwaitResult(cctx, "blob")
		assert.Error(t, err)
	})
}
