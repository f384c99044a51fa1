package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stridelog/server/pkg/testing/mocks"
	"github.com/stridelog/server/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDecoder struct {
	tree  *types.DecodedActivity
	err   error
	calls int
}

func (f *fakeDecoder) Decode(data []byte) (*types.DecodedActivity, error) {
	f.calls++
	return f.tree, f.err
}

var pipeStart = time.Date(2025, 6, 14, 8, 30, 0, 0, time.UTC)

func pipelineTree(sampleCount int) *types.DecodedActivity {
	lap := &types.DecodedLap{StartTime: pipeStart}
	for i := 0; i < sampleCount; i++ {
		speed := 3.5
		lap.Samples = append(lap.Samples, &types.Sample{
			Timestamp: pipeStart.Add(time.Duration(i) * time.Second),
			Speed:     &speed,
		})
	}
	return &types.DecodedActivity{
		StartTime: pipeStart,
		Sessions: []*types.DecodedSession{{
			StartTime:        pipeStart,
			Sport:            "running",
			TotalElapsedTime: float64(sampleCount),
			Laps:             []*types.DecodedLap{lap},
		}},
	}
}

func newTestPipeline(dec Decoder, db *mocks.MockDatabase, blobs *mocks.MockBlobStore) *Pipeline {
	p := NewPipeline(dec, db, blobs, "uploads", testLogger())
	p.BatchPause = 0
	return p
}

func TestUpload_Success(t *testing.T) {
	dec := &fakeDecoder{tree: pipelineTree(1200)}
	db := &mocks.MockDatabase{}
	blobs := &mocks.MockBlobStore{}

	var events []types.ProgressEvent
	result := newTestPipeline(dec, db, blobs).Upload(
		context.Background(), []byte("fit-bytes"), "morning_run.fit", "user-1",
		Options{OnProgress: func(ev types.ProgressEvent) { events = append(events, ev) }},
	)

	require.True(t, result.Success, "upload should succeed: %s", result.Error)
	assert.Equal(t, "user-1_1749889800", result.ActivityID)
	require.NotNil(t, result.Stats)
	assert.Equal(t, 1200, result.Stats.RecordsStored)
	assert.Equal(t, 1, result.Stats.LapsStored)
	require.NotNil(t, result.FileMetadata)
	assert.Equal(t, "running", result.FileMetadata.Sport)
	assert.Equal(t, 1200, result.FileMetadata.RecordCount)
	require.NotNil(t, result.FilePath)
	assert.Equal(t, "user-1/2025/06/14/1749889800_morning_run.fit", *result.FilePath)
	assert.Empty(t, result.Error)

	// Stage order and monotonic progress.
	var stages []types.Stage
	last := -1
	for _, ev := range events {
		stages = append(stages, ev.Stage)
		require.GreaterOrEqual(t, ev.Progress, last, "progress must be monotonic")
		last = ev.Progress
	}
	assert.Equal(t, types.StageValidation, stages[0])
	assert.Equal(t, types.StageComplete, stages[len(stages)-1])
	assert.Contains(t, stages, types.StageStoringRecords)

	// 1200 records at batch size 500 interpolate three reports into 40..80.
	var recordEvents []types.ProgressEvent
	for _, ev := range events {
		if ev.Stage == types.StageStoringRecords {
			recordEvents = append(recordEvents, ev)
		}
	}
	require.Len(t, recordEvents, 3)
	for _, ev := range recordEvents {
		assert.GreaterOrEqual(t, ev.Progress, 40)
		assert.LessOrEqual(t, ev.Progress, 80)
	}
}

func TestUpload_ValidationFailsBeforeParsing(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		filename string
		userID   string
	}{
		{"wrong suffix", []byte("x"), "workout.gpx", "user-1"},
		{"empty user", []byte("x"), "workout.fit", ""},
		{"oversize", make([]byte, 10*1024*1024+1), "workout.fit", "user-1"},
		{"empty file", nil, "workout.fit", "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := &fakeDecoder{tree: pipelineTree(3)}
			result := newTestPipeline(dec, &mocks.MockDatabase{}, &mocks.MockBlobStore{}).Upload(
				context.Background(), tt.data, tt.filename, tt.userID, Options{})

			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
			assert.Zero(t, dec.calls, "decoder must not run on invalid input")
		})
	}
}

func TestUpload_DecoderFailureIsParsingError(t *testing.T) {
	dec := &fakeDecoder{err: errors.New("truncated file header")}
	result := newTestPipeline(dec, &mocks.MockDatabase{}, &mocks.MockBlobStore{}).Upload(
		context.Background(), []byte("x"), "workout.fit", "user-1", Options{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "parsing failed")
	assert.Contains(t, result.Error, "truncated file header")
}

func TestUpload_DuplicateRejectedBeforeStorage(t *testing.T) {
	created := 0
	db := &mocks.MockDatabase{
		FindActivityByStartFunc: func(ctx context.Context, userID string, start time.Time) (*types.Activity, error) {
			return &types.Activity{ID: "existing"}, nil
		},
		CreateActivityFunc: func(ctx context.Context, activity *types.Activity) (string, error) {
			created++
			return "should-not-happen", nil
		},
	}

	result := newTestPipeline(&fakeDecoder{tree: pipelineTree(5)}, db, &mocks.MockBlobStore{}).Upload(
		context.Background(), []byte("x"), "workout.fit", "user-1", Options{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "duplicate activity")
	assert.Contains(t, result.Error, "2025-06-14", "conflict should carry the conflicting date")
	assert.Zero(t, created, "no storage mutation may happen for a duplicate")
}

func TestUpload_AllowDuplicatesSkipsCheck(t *testing.T) {
	queried := 0
	db := &mocks.MockDatabase{
		FindActivityByStartFunc: func(ctx context.Context, userID string, start time.Time) (*types.Activity, error) {
			queried++
			return &types.Activity{ID: "existing"}, nil
		},
	}

	result := newTestPipeline(&fakeDecoder{tree: pipelineTree(5)}, db, &mocks.MockBlobStore{}).Upload(
		context.Background(), []byte("x"), "workout.fit", "user-1", Options{AllowDuplicates: true})

	assert.True(t, result.Success, "duplicate check should be skipped entirely")
	assert.Zero(t, queried)
}

func TestUpload_ArchivalFailureIsDowngraded(t *testing.T) {
	blobs := &mocks.MockBlobStore{
		WriteIfAbsentFunc: func(ctx context.Context, bucket, object string, data []byte) error {
			return errors.New("bucket unavailable")
		},
	}

	result := newTestPipeline(&fakeDecoder{tree: pipelineTree(5)}, &mocks.MockDatabase{}, blobs).Upload(
		context.Background(), []byte("x"), "workout.fit", "user-1", Options{})

	assert.True(t, result.Success, "archival failure must not fail the upload")
	assert.Nil(t, result.FilePath)
	assert.Empty(t, result.Error)
}

func TestUpload_SkipFileStorage(t *testing.T) {
	wrote := 0
	blobs := &mocks.MockBlobStore{
		WriteIfAbsentFunc: func(ctx context.Context, bucket, object string, data []byte) error {
			wrote++
			return nil
		},
	}

	result := newTestPipeline(&fakeDecoder{tree: pipelineTree(5)}, &mocks.MockDatabase{}, blobs).Upload(
		context.Background(), []byte("x"), "workout.fit", "user-1", Options{SkipFileStorage: true})

	assert.True(t, result.Success)
	assert.Nil(t, result.FilePath)
	assert.Zero(t, wrote)
}

func TestUpload_StorageFailureAbortsBeforeArchival(t *testing.T) {
	wrote := 0
	db := &mocks.MockDatabase{
		InsertLapsFunc: func(ctx context.Context, laps []*types.Lap) ([]string, error) {
			return nil, errors.New("lap write refused")
		},
	}
	blobs := &mocks.MockBlobStore{
		WriteIfAbsentFunc: func(ctx context.Context, bucket, object string, data []byte) error {
			wrote++
			return nil
		},
	}

	result := newTestPipeline(&fakeDecoder{tree: pipelineTree(5)}, db, blobs).Upload(
		context.Background(), []byte("x"), "workout.fit", "user-1", Options{})

	assert.False(t, result.Success)
	assert.True(t, strings.Contains(result.Error, "storage failure"), "got %q", result.Error)
	assert.Zero(t, wrote, "archival must never run after a storage failure")
}

func TestBlobPath(t *testing.T) {
	got := blobPath("user-1", time.Date(2025, 1, 5, 23, 59, 59, 0, time.UTC), "a_b.fit")
	want := "user-1/2025/01/05/1736121599_a_b.fit"
	if got != want {
		t.Errorf("blobPath = %q, want %q", got, want)
	}
}
