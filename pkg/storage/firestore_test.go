package storage

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/powercast/powercast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const firestoreEmulatorAddr = "127.0.0.1:8087"

func TestFirestoreProvider(t *testing.T) {
	conn, err := net.DialTimeout("tcp", firestoreEmulatorAddr, time.Second)
	if err != nil {
		t.Skipf("firestore emulator not running on %s", firestoreEmulatorAddr)
	}
	conn.Close()
	os.Setenv("FIRESTORE_EMULATOR_HOST", firestoreEmulatorAddr)

	// Use a random database for isolation
	randDB := fmt.Sprintf("test-db-%d", time.Now().UnixNano())
	f := &FirestoreProvider{
		projectID: "test-project-id",
		database:  randDB,
	}

	ctx := context.Background()
	require.NoError(t, f.Init(ctx))
	defer f.Close()

	t.Run("Validate", func(t *testing.T) {
		require.NoError(t, f.Validate())
	})

	now := time.Now().Truncate(time.Millisecond).UTC()

	t.Run("Plants", func(t *testing.T) {
		require.NoError(t, f.CreatePlant(ctx, testPlant("p1", "u1", types.PlantTypeSolar, now)))
		require.NoError(t, f.CreatePlant(ctx, testPlant("p2", "u1", types.PlantTypeHydro, now.Add(time.Second))))

		plants, total, err := f.ListPlants(ctx, "u1", PlantFilter{})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, plants, 2)
		assert.Equal(t, "p2", plants[0].ID)

		p, err := f.GetPlant(ctx, "p1")
		require.NoError(t, err)
		p.Name = "Updated"
		require.NoError(t, f.UpdatePlant(ctx, p))
		got, err := f.GetPlant(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, "Updated", got.Name)

		assert.ErrorIs(t, f.UpdatePlant(ctx, testPlant("missing", "u1", types.PlantTypeSolar, now)), ErrNotFound)

		require.NoError(t, f.ReplacePlantForecast(ctx, "p1", []types.PlantForecastPoint{
			{Timestamp: now.Add(15 * time.Minute), PredictedOutputMW: 2},
			{Timestamp: now, PredictedOutputMW: 1},
		}))
		points, err := f.GetPlantForecast(ctx, "p1", 0)
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, 1.0, points[0].PredictedOutputMW)

		require.NoError(t, f.DeletePlant(ctx, "p1"))
		_, err = f.GetPlant(ctx, "p1")
		assert.ErrorIs(t, err, ErrNotFound)
		points, err = f.GetPlantForecast(ctx, "p1", 0)
		require.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("Suggestions", func(t *testing.T) {
		require.NoError(t, f.InsertSuggestions(ctx, []types.Suggestion{
			{ID: "s1", UserID: "u1", Type: types.SuggestionCost, Priority: types.PriorityHigh, Status: types.SuggestionPending, CreatedAt: now},
		}))
		sg, err := f.GetSuggestion(ctx, "s1")
		require.NoError(t, err)
		sg.Dismiss(now)
		require.NoError(t, f.UpdateSuggestion(ctx, sg))

		list, total, err := f.ListSuggestions(ctx, "u1", SuggestionFilter{Status: types.SuggestionDismissed})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, list, 1)

		require.NoError(t, f.DeleteSuggestion(ctx, "s1"))
		assert.ErrorIs(t, f.DeleteSuggestion(ctx, "s1"), ErrNotFound)
	})

	t.Run("Uploads", func(t *testing.T) {
		require.NoError(t, f.CreateUpload(ctx, types.Upload{ID: "up1", UserID: "u1", Status: types.UploadProcessing, UploadedAt: now}))
		require.NoError(t, f.InsertSeries(ctx, "up1", []types.SeriesPoint{{Timestamp: now, OutputMW: 5}}))

		list, total, err := f.ListUploads(ctx, "u1", UploadFilter{})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, list, 1)

		require.NoError(t, f.DeleteUpload(ctx, "up1"))
		_, err = f.GetUpload(ctx, "up1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Learning", func(t *testing.T) {
		require.NoError(t, f.InsertForecastEvent(ctx, types.ForecastEvent{ForecastID: "fc1", RegionCode: "SWISS_GRID", CreatedAt: now}))
		e, err := f.GetForecastEvent(ctx, "fc1")
		require.NoError(t, err)
		assert.Equal(t, "SWISS_GRID", e.RegionCode)

		events, err := f.ListForecastEvents(ctx, "SWISS_GRID", 5)
		require.NoError(t, err)
		assert.Len(t, events, 1)

		require.NoError(t, f.InsertForecastError(ctx, types.ForecastError{ID: "e1", ForecastID: "fc1", RegionCode: "SWISS_GRID", Severity: types.SeverityCritical, AnalysisTriggered: true, ObservedAt: now}))
		errs, err := f.ListForecastErrors(ctx, ErrorFilter{PendingOnly: true})
		require.NoError(t, err)
		require.Len(t, errs, 1)
		assert.Equal(t, types.SeverityCritical, errs[0].Severity)
	})
}
