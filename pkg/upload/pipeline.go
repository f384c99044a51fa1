package upload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	shared "github.com/stridelog/server/pkg"
	"github.com/stridelog/server/pkg/domain/processor"
	"github.com/stridelog/server/pkg/types"
	"github.com/stridelog/server/pkg/uploaderr"
)

const fitSuffix = ".fit"

// Decoder is the external binary-format collaborator. Its failures surface
// as parsing errors; the pipeline assumes a returned tree is well-formed.
type Decoder interface {
	Decode(data []byte) (*types.DecodedActivity, error)
}

// Options configures one upload call.
type Options struct {
	OnProgress      ProgressFunc
	AllowDuplicates bool
	SkipFileStorage bool
}

// Pipeline is the top-level staged upload orchestrator:
//
//	validation -> parsing -> duplicate_check -> storing_data ->
//	storing_records -> file_storage -> complete
//
// Any failure short-circuits to the error stage and is converted into the
// result envelope; errors never escape Upload.
type Pipeline struct {
	Decoder Decoder
	DB      shared.Database
	Blobs   shared.BlobStore
	Logger  *slog.Logger

	// Bucket receives raw-file archives. Empty disables archival.
	Bucket string

	// Storage tuning, passed through to the Storer.
	BatchSize  int
	BatchPause time.Duration
}

func NewPipeline(decoder Decoder, db shared.Database, blobs shared.BlobStore, bucket string, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Decoder:    decoder,
		DB:         db,
		Blobs:      blobs,
		Logger:     logger,
		Bucket:     bucket,
		BatchSize:  shared.RecordBatchSize,
		BatchPause: 25 * time.Millisecond,
	}
}

// Upload runs the full ingestion pipeline for one file. The returned envelope
// populates exactly one of the success/error branches.
func (p *Pipeline) Upload(ctx context.Context, data []byte, filename, userID string, opts Options) *types.UploadResult {
	started := time.Now()

	emit := func(ev types.ProgressEvent) {
		if opts.OnProgress != nil {
			opts.OnProgress(ev)
		}
	}
	fail := func(err error) *types.UploadResult {
		p.Logger.Error("Upload failed", "user_id", userID, "file", filename, "error", err)
		emit(types.ProgressEvent{Stage: types.StageError, Progress: 0, Error: err.Error()})
		return &types.UploadResult{
			Success:      false,
			UploadTimeMs: time.Since(started).Milliseconds(),
			Error:        err.Error(),
			Cause:        err,
		}
	}

	// validation
	emit(types.ProgressEvent{Stage: types.StageValidation, Progress: 0})
	if err := validateInput(data, filename, userID); err != nil {
		return fail(err)
	}

	// parsing
	emit(types.ProgressEvent{Stage: types.StageParsing, Progress: 10})
	tree, err := p.Decoder.Decode(data)
	if err != nil {
		return fail(uploaderr.NewInvalidInputError(fmt.Sprintf("parsing failed: %v", err)))
	}
	processed, err := processor.Process(tree, userID, filename)
	if err != nil {
		return fail(err)
	}
	for _, w := range processed.Warnings {
		p.Logger.Warn("Size warning", "user_id", userID, "file", filename, "warning", w)
	}

	// duplicate_check
	emit(types.ProgressEvent{Stage: types.StageDuplicateCheck, Progress: 30})
	if !opts.AllowDuplicates {
		checker := &DuplicateChecker{DB: p.DB}
		exists, err := checker.Exists(ctx, userID, processed.Activity.StartTime.UTC().Format(time.RFC3339))
		if err != nil {
			return fail(err)
		}
		if exists {
			return fail(&uploaderr.ConflictError{
				UserID:    userID,
				StartTime: processed.Activity.StartTime,
			})
		}
	}

	// storing_data / storing_records
	emit(types.ProgressEvent{Stage: types.StageStoringData, Progress: 40})
	storer := NewStorer(p.DB, p.Logger)
	if p.BatchSize > 0 {
		storer.BatchSize = p.BatchSize
	}
	storer.BatchPause = p.BatchPause
	storer.OnBatchProgress = func(bp BatchProgress) {
		// Interpolate batch progress into the 40..80 band.
		emit(types.ProgressEvent{
			Stage:            types.StageStoringRecords,
			Progress:         40 + bp.Percentage*40/100,
			RecordsProcessed: bp.Processed,
			TotalRecords:     bp.Total,
		})
	}
	stored, err := storer.Store(ctx, processed)
	if err != nil {
		return fail(err)
	}

	// file_storage: best effort, never fails the upload.
	emit(types.ProgressEvent{Stage: types.StageFileStorage, Progress: 80})
	var filePath *string
	if !opts.SkipFileStorage && p.Blobs != nil && p.Bucket != "" {
		path := blobPath(userID, processed.Activity.StartTime, filename)
		if err := p.Blobs.WriteIfAbsent(ctx, p.Bucket, path, data); err != nil {
			p.Logger.Warn("Raw file archival failed", "user_id", userID, "path", path, "error", err)
		} else {
			filePath = &path
		}
	}

	emit(types.ProgressEvent{
		Stage:            types.StageComplete,
		Progress:         100,
		RecordsProcessed: stored.RecordsStored,
		TotalRecords:     processed.Stats.TotalRecords,
	})
	p.Logger.Info("Upload complete",
		"user_id", userID,
		"activity_id", stored.ActivityID,
		"records", stored.RecordsStored,
		"laps", stored.LapsStored,
	)

	return &types.UploadResult{
		Success:      true,
		ActivityID:   stored.ActivityID,
		FileMetadata: fileMetadata(processed),
		UploadTimeMs: time.Since(started).Milliseconds(),
		FilePath:     filePath,
		Stats: &types.StoreStats{
			RecordsStored: stored.RecordsStored,
			LapsStored:    stored.LapsStored,
			TotalRecords:  processed.Stats.TotalRecords,
			TotalLaps:     processed.Stats.TotalLaps,
		},
	}
}

// fileMetadata summarizes the processed file for the result envelope.
func fileMetadata(processed *types.ProcessedData) *types.FileMetadata {
	a := processed.Activity
	return &types.FileMetadata{
		ActivityDate: a.StartTime,
		ActivityType: a.Sport,
		Sport:        a.Sport,
		Duration:     a.TotalTime,
		Distance:     a.TotalDistance,
		DeviceName:   a.DeviceName,
		RecordCount:  processed.Stats.TotalRecords,
		LapCount:     processed.Stats.TotalLaps,
	}
}

// validateInput fails fast before any parsing work.
func validateInput(data []byte, filename, userID string) error {
	if userID == "" {
		return uploaderr.NewValidationError("userId", "must not be empty")
	}
	if !strings.HasSuffix(strings.ToLower(filename), fitSuffix) {
		return uploaderr.NewValidationError("fileName", "expected a "+fitSuffix+" file")
	}
	if len(data) == 0 {
		return uploaderr.NewValidationError("file", "empty file")
	}
	if len(data) > shared.MaxUploadBytes {
		return uploaderr.NewValidationError("file",
			fmt.Sprintf("size %d exceeds the %d byte cap", len(data), shared.MaxUploadBytes))
	}
	return nil
}

// blobPath builds the hierarchical archive key:
// userId/year/month/day/timestamp_originalFilename
func blobPath(userID string, start time.Time, filename string) string {
	t := start.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%d_%s",
		userID, t.Year(), int(t.Month()), t.Day(), t.Unix(), filename)
}
