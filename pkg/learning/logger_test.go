package learning

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/powercast/powercast/pkg/storage"
	"github.com/powercast/powercast/pkg/storage/storagemock"
	"github.com/powercast/powercast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) storage.Database {
	t.Helper()
	db, err := storage.NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoggerLog(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	l := NewLogger(db, nil)
	l.now = func() time.Time { return time.Date(2025, 6, 1, 13, 4, 5, 0, time.UTC) }

	event, err := l.Log(ctx, LogRequest{HorizonHours: 24})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^fc_SWISS_GRID_20250601_130405_[0-9a-f]{8}$`), event.ForecastID)
	assert.Equal(t, types.DefaultModelVersion, event.ModelVersion)

	got, err := l.Get(ctx, event.ForecastID)
	require.NoError(t, err)
	assert.Equal(t, event.ForecastID, got.ForecastID)

	recent, err := l.Recent(ctx, types.DefaultRegionCode, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	assert.Equal(t, "healthy", l.Health().Status)
}

func TestLoggerFallback(t *testing.T) {
	ctx := context.Background()
	db := &storagemock.MockDatabase{}
	db.On("InsertForecastEvent", mock.Anything, mock.Anything).Return(errors.New("db down"))
	db.On("ListForecastEvents", mock.Anything, "NORTH", 10).Return([]types.ForecastEvent{}, nil)

	l := NewLogger(db, nil)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 3 {
		l.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		e, err := l.Log(ctx, LogRequest{RegionCode: "NORTH"})
		require.NoError(t, err)
		ids = append(ids, e.ForecastID)
	}

	h := l.Health()
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, 3, h.FallbackLogCount)

	recent, err := l.Recent(ctx, "NORTH", 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[2], recent[0].ForecastID)

	got, err := l.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, ids[1], got.ForecastID)

	t.Run("Flush", func(t *testing.T) {
		n, err := l.Flush(ctx)
		assert.Error(t, err)
		assert.Zero(t, n)
		assert.Equal(t, 3, l.Health().FallbackLogCount)

		db.ExpectedCalls = nil
		db.On("InsertForecastEvent", mock.Anything, mock.Anything).Return(nil)
		n, err = l.Flush(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Zero(t, l.Health().FallbackLogCount)
	})
}

func TestLoggerFlushEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLogger(newTestDB(t), nil)
	l.buffer(ctx, types.ForecastEvent{ForecastID: "fc_a", RegionCode: types.DefaultRegionCode})
	l.buffer(ctx, types.ForecastEvent{ForecastID: "fc_b", RegionCode: types.DefaultRegionCode})
	require.Equal(t, 2, l.Health().FallbackLogCount)

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.FlushEvery(ctx, 5*time.Millisecond)
	}()

	assert.Eventually(t, func() bool {
		return l.Health().FallbackLogCount == 0
	}, time.Second, 5*time.Millisecond)
	_, err := l.db.GetForecastEvent(ctx, "fc_b")
	assert.NoError(t, err)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("FlushEvery did not return after cancel")
	}
}

func TestLoggerBufferBounded(t *testing.T) {
	ctx := context.Background()
	l := NewLogger(nil, nil)
	for range maxFallbackEvents + 5 {
		_, err := l.Log(ctx, LogRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, maxFallbackEvents, l.Health().FallbackLogCount)

	_, err := l.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestClampRecent(t *testing.T) {
	assert.Equal(t, 10, ClampRecent(0))
	assert.Equal(t, 5, ClampRecent(5))
	assert.Equal(t, 50, ClampRecent(500))
}
