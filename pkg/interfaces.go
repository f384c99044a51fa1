package shared

import (
	"context"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/stridelog/server/pkg/types"
)

// --- Persistence Interfaces ---

// Database covers the three activity collections. Implementations return
// *uploaderr.ConflictError from CreateActivity when the (user, start time)
// uniqueness key is already taken; every other failure comes back raw for the
// caller to classify.
type Database interface {
	// CreateActivity inserts the activity and returns its store-assigned id.
	CreateActivity(ctx context.Context, activity *types.Activity) (string, error)

	// InsertLaps bulk-inserts laps in the given order and returns generated
	// ids aligned index-for-index with the input.
	InsertLaps(ctx context.Context, laps []*types.Lap) ([]string, error)

	// InsertRecords inserts one batch of records.
	InsertRecords(ctx context.Context, records []*types.Record) error

	DeleteActivity(ctx context.Context, activityID string) error

	// FindActivityByStart returns (nil, nil) when no activity matches.
	FindActivityByStart(ctx context.Context, userID string, start time.Time) (*types.Activity, error)
}

// --- Messaging Interfaces ---

type Publisher interface {
	PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error)
}

// --- Storage Interfaces ---

type BlobStore interface {
	Write(ctx context.Context, bucket, object string, data []byte) error
	// WriteIfAbsent creates the object only if it does not already exist.
	WriteIfAbsent(ctx context.Context, bucket, object string, data []byte) error
	Read(ctx context.Context, bucket, object string) ([]byte, error)
}
