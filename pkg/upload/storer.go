package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	shared "github.com/stridelog/server/pkg"
	"github.com/stridelog/server/pkg/types"
	"github.com/stridelog/server/pkg/uploaderr"
)

// StoreResult reports what one successful Store call persisted.
type StoreResult struct {
	ActivityID    string
	LapsStored    int
	RecordsStored int
}

// BatchProgress is emitted after each committed record batch.
type BatchProgress struct {
	Processed  int
	Total      int
	Percentage int
}

// Storer persists a processed upload across the activity, lap and record
// collections. The store offers no cross-collection transaction, so failures
// after the activity insert run a best-effort compensating delete (saga
// style) before the original error propagates.
type Storer struct {
	DB     shared.Database
	Logger *slog.Logger

	// BatchSize caps one record insert; must stay at or below the store's
	// write-batch limit.
	BatchSize int
	// BatchPause is the scheduled yield between record batches so a large
	// upload does not saturate the store.
	BatchPause time.Duration

	OnBatchProgress func(BatchProgress)
}

func NewStorer(db shared.Database, logger *slog.Logger) *Storer {
	return &Storer{
		DB:         db,
		Logger:     logger,
		BatchSize:  shared.RecordBatchSize,
		BatchPause: 25 * time.Millisecond,
	}
}

// compensation is one forward step's undo action. Compensations run in
// reverse completion order, once, best effort.
type compensation struct {
	name string
	run  func(context.Context) error
}

// Store never lets a panic or raw error escape: every failure surfaces as a
// typed error from the taxonomy.
func (s *Storer) Store(ctx context.Context, data *types.ProcessedData) (result *StoreResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = uploaderr.NewStorageError("store", fmt.Errorf("panic: %v", r))
		}
	}()

	var completed []compensation

	// Step 1: activity row. Nothing to compensate on failure.
	activityID, err := s.DB.CreateActivity(ctx, data.Activity)
	if err != nil {
		var conflict *uploaderr.ConflictError
		if errors.As(err, &conflict) {
			return nil, conflict
		}
		return nil, uploaderr.NewStorageError("activity insert", err)
	}
	completed = append(completed, compensation{
		name: "delete activity",
		run:  func(ctx context.Context) error { return s.DB.DeleteActivity(ctx, activityID) },
	})

	// Step 2: laps, in index order, tagged with the new activity id.
	lapIDs := make([]string, 0, len(data.Laps))
	if len(data.Laps) > 0 {
		for _, lap := range data.Laps {
			lap.ActivityID = activityID
		}
		lapIDs, err = s.DB.InsertLaps(ctx, data.Laps)
		if err != nil {
			s.compensate(ctx, completed, activityID)
			return nil, uploaderr.NewStorageError("lap insert", err)
		}
	}

	// Step 3: records in fixed-size batches, each enriched with the activity
	// id and its resolved lap id.
	lapIDByIndex := make(map[int]string, len(lapIDs))
	for i, lap := range data.Laps {
		if i < len(lapIDs) {
			lapIDByIndex[lap.LapIndex] = lapIDs[i]
		}
	}

	total := len(data.Records)
	for batchIndex, offset := 0, 0; offset < total; batchIndex, offset = batchIndex+1, offset+s.BatchSize {
		end := offset + s.BatchSize
		if end > total {
			end = total
		}
		batch := data.Records[offset:end]
		for _, rec := range batch {
			rec.ActivityID = activityID
			if id, ok := lapIDByIndex[rec.LapIndex]; ok {
				lapID := id
				rec.LapID = &lapID
			}
		}

		if err := s.DB.InsertRecords(ctx, batch); err != nil {
			s.compensate(ctx, completed, activityID)
			return nil, uploaderr.NewBatchStorageError("record insert", batchIndex, err)
		}

		if s.OnBatchProgress != nil {
			s.OnBatchProgress(BatchProgress{
				Processed:  end,
				Total:      total,
				Percentage: end * 100 / total,
			})
		}

		// Scheduled yield between batches; batch N+1 never starts before
		// batch N's acknowledgment.
		if end < total && s.BatchPause > 0 {
			time.Sleep(s.BatchPause)
		}
	}

	return &StoreResult{
		ActivityID:    activityID,
		LapsStored:    len(lapIDs),
		RecordsStored: total,
	}, nil
}

// compensate runs completed steps' undo actions in reverse order. Failures
// are logged as cleanup warnings and never escalated; the caller still
// surfaces the original storage error.
func (s *Storer) compensate(ctx context.Context, completed []compensation, activityID string) {
	for i := len(completed) - 1; i >= 0; i-- {
		if err := completed[i].run(ctx); err != nil {
			warn := &uploaderr.CleanupWarning{ActivityID: activityID, Err: err}
			if s.Logger != nil {
				s.Logger.Warn("Compensation failed", "step", completed[i].name, "warning", warn.Error())
			}
		}
	}
}
