package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/powercast/powercast/pkg/storage/storagemock"
	"github.com/powercast/powercast/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	uploadID string
	points   []types.SeriesPoint
	err      error
}

func (r *recordingPublisher) PublishSeries(ctx context.Context, uploadID string, points []types.SeriesPoint) error {
	r.uploadID = uploadID
	r.points = points
	return r.err
}

const gappyCSV = "timestamp,output_mw,region_code\n" +
	"2025-01-01T00:00:00Z,100,NORTH\n" +
	"2025-01-01T00:15:00Z,110,NORTH\n" +
	"2025-01-01T01:00:00Z,140,NORTH\n"

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	t.Run("Forecast", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		pub := &recordingPublisher{err: errors.New("sink down")}
		p := NewProcessor(db, pub)
		p.now = func() time.Time { return now }

		var stored []types.SeriesPoint
		db.On("CreateUpload", mock.Anything, mock.MatchedBy(func(u types.Upload) bool {
			return u.Status == types.UploadProcessing && u.UserID == "u1"
		})).Return(nil)
		db.On("InsertSeries", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			stored = args.Get(2).([]types.SeriesPoint)
		}).Return(nil)
		db.On("UpdateUpload", mock.Anything, mock.MatchedBy(func(u types.Upload) bool {
			return u.Status == types.UploadCompleted
		})).Return(nil)

		up, err := p.Process(ctx, "u1", File{Name: "plant.csv", Content: []byte(gappyCSV), Region: "SOUTH"})
		require.NoError(t, err)
		db.AssertExpectations(t)

		assert.Equal(t, types.UploadCompleted, up.Status)
		assert.Equal(t, 5, up.RowsCount)
		require.NotNil(t, up.ProcessedAt)
		assert.Equal(t, now, *up.ProcessedAt)
		assert.Equal(t, "NORTH", up.Metadata["region_code"])
		assert.Equal(t, true, up.Metadata["gaps_filled"])
		assert.Equal(t, 2, up.Metadata["interpolated_rows"])
		assert.Equal(t, 5, up.Metadata["rows_stored"])
		assert.Equal(t, DataForecast, up.Metadata["data_type"])

		require.Len(t, stored, 5)
		for _, sp := range stored {
			assert.Equal(t, up.ID, sp.UploadID)
			assert.Equal(t, "NORTH", sp.RegionCode)
		}
		// publish failures are not fatal
		assert.Equal(t, up.ID, pub.uploadID)
	})

	t.Run("Weather", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		p := NewProcessor(db, nil)
		db.On("CreateUpload", mock.Anything, mock.Anything).Return(nil)
		db.On("UpdateUpload", mock.Anything, mock.Anything).Return(nil)

		up, err := p.Process(ctx, "u1", File{Name: "w.csv", Content: []byte("timestamp,temperature\n2025-01-01T00:00:00Z,4\n")})
		require.NoError(t, err)
		db.AssertNotCalled(t, "InsertSeries", mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, 1, up.RowsCount)
		assert.Equal(t, DefaultRegion, up.Metadata["region_code"])
		assert.Equal(t, 0, up.Metadata["rows_stored"])
	})

	t.Run("Rejected", func(t *testing.T) {
		p := NewProcessor(&storagemock.MockDatabase{}, nil)

		_, err := p.Process(ctx, "u1", File{Name: "x.txt", Content: []byte(gappyCSV)})
		assert.ErrorIs(t, err, ErrNotCSV)

		_, err = p.Process(ctx, "u1", File{Name: "x.csv", Content: []byte("a,b\n1,2\n")})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.False(t, verr.Result.Valid)

		_, err = p.Process(ctx, "u1", File{Name: "x.csv", Content: []byte("timestamp,output_mw\n2025-01-01T00:00:00Z,1\n2025-01-01T05:00:00Z,2\n")})
		var qerr *QualityError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, StatusMajorGaps, qerr.Quality.Status)
	})

	t.Run("StoreFails", func(t *testing.T) {
		db := &storagemock.MockDatabase{}
		p := NewProcessor(db, nil)
		db.On("CreateUpload", mock.Anything, mock.Anything).Return(nil)
		db.On("InsertSeries", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
		db.On("UpdateUpload", mock.Anything, mock.MatchedBy(func(u types.Upload) bool {
			return u.Status == types.UploadFailed && u.ErrorMessage != nil && *u.ErrorMessage == "disk full"
		})).Return(nil)

		up, err := p.Process(ctx, "u1", File{Name: "plant.csv", Content: []byte(gappyCSV)})
		assert.ErrorContains(t, err, "disk full")
		assert.Equal(t, types.UploadFailed, up.Status)
		db.AssertExpectations(t)
	})
}
