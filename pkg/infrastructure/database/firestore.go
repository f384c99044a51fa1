package database

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	storage "github.com/stridelog/server/pkg/storage/firestore"
	"github.com/stridelog/server/pkg/types"
	"github.com/stridelog/server/pkg/uploaderr"
)

// FirestoreAdapter provides database operations using Firestore.
// It wraps our typed storage client.
type FirestoreAdapter struct {
	Client  *firestore.Client
	storage *storage.Client // internal typed wrapper
}

func NewFirestoreAdapter(client *firestore.Client) *FirestoreAdapter {
	return &FirestoreAdapter{
		Client:  client,
		storage: storage.NewClient(client),
	}
}

// activityDocID is the (user, start instant) uniqueness key. Two uploads of
// the same workout race to the same document; Create lets exactly one win.
func activityDocID(userID string, start time.Time) string {
	return fmt.Sprintf("%s_%d", userID, start.UTC().Unix())
}

// CreateActivity inserts the activity and returns its document id. A taken
// uniqueness key surfaces as *uploaderr.ConflictError; other failures come
// back raw.
func (a *FirestoreAdapter) CreateActivity(ctx context.Context, activity *types.Activity) (string, error) {
	id := activityDocID(activity.UserID, activity.StartTime)
	activity.ID = id
	activity.CreatedAt = time.Now().UTC()

	if err := a.storage.Activities().Doc(id).Create(ctx, activity); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", &uploaderr.ConflictError{
				UserID:    activity.UserID,
				StartTime: activity.StartTime,
				Err:       err,
			}
		}
		return "", err
	}
	return id, nil
}

// InsertLaps writes all laps in one atomic batch, in input order, and returns
// the generated document ids aligned index-for-index with the input.
func (a *FirestoreAdapter) InsertLaps(ctx context.Context, laps []*types.Lap) ([]string, error) {
	if len(laps) == 0 {
		return nil, nil
	}

	col := a.storage.Laps()
	batch := a.Client.Batch()
	ids := make([]string, len(laps))
	for i, lap := range laps {
		doc := col.NewDoc()
		ids[i] = doc.ID()
		lap.ID = doc.ID()
		batch.Create(doc.Ref, col.ToFirestore(lap))
	}
	if _, err := batch.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// InsertRecords writes one batch of records atomically. Callers slice the
// full record set into batches; Firestore caps a write batch at 500.
func (a *FirestoreAdapter) InsertRecords(ctx context.Context, records []*types.Record) error {
	if len(records) == 0 {
		return nil
	}

	col := a.storage.ActivityRecords()
	batch := a.Client.Batch()
	for _, rec := range records {
		doc := col.NewDoc()
		rec.ID = doc.ID()
		batch.Create(doc.Ref, col.ToFirestore(rec))
	}
	_, err := batch.Commit(ctx)
	return err
}

func (a *FirestoreAdapter) DeleteActivity(ctx context.Context, activityID string) error {
	return a.storage.Activities().Doc(activityID).Delete(ctx)
}

// FindActivityByStart returns the activity matching (user, start instant), or
// (nil, nil) when none exists.
func (a *FirestoreAdapter) FindActivityByStart(ctx context.Context, userID string, start time.Time) (*types.Activity, error) {
	col := a.storage.Activities()
	iter := col.Ref.
		Where("user_id", "==", userID).
		Where("start_time", "==", start.UTC()).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	activity := col.FromFirestore(snap.Data())
	activity.ID = snap.Ref.ID
	return activity, nil
}
