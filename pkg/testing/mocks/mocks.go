package mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/stridelog/server/pkg/types"
)

// --- Mock Database ---

type MockDatabase struct {
	CreateActivityFunc      func(ctx context.Context, activity *types.Activity) (string, error)
	InsertLapsFunc          func(ctx context.Context, laps []*types.Lap) ([]string, error)
	InsertRecordsFunc       func(ctx context.Context, records []*types.Record) error
	DeleteActivityFunc      func(ctx context.Context, activityID string) error
	FindActivityByStartFunc func(ctx context.Context, userID string, start time.Time) (*types.Activity, error)
}

func (m *MockDatabase) CreateActivity(ctx context.Context, activity *types.Activity) (string, error) {
	if m.CreateActivityFunc != nil {
		return m.CreateActivityFunc(ctx, activity)
	}
	return fmt.Sprintf("%s_%d", activity.UserID, activity.StartTime.UTC().Unix()), nil
}

func (m *MockDatabase) InsertLaps(ctx context.Context, laps []*types.Lap) ([]string, error) {
	if m.InsertLapsFunc != nil {
		return m.InsertLapsFunc(ctx, laps)
	}
	ids := make([]string, len(laps))
	for i := range laps {
		ids[i] = fmt.Sprintf("lap-%d", i)
	}
	return ids, nil
}

func (m *MockDatabase) InsertRecords(ctx context.Context, records []*types.Record) error {
	if m.InsertRecordsFunc != nil {
		return m.InsertRecordsFunc(ctx, records)
	}
	return nil
}

func (m *MockDatabase) DeleteActivity(ctx context.Context, activityID string) error {
	if m.DeleteActivityFunc != nil {
		return m.DeleteActivityFunc(ctx, activityID)
	}
	return nil
}

func (m *MockDatabase) FindActivityByStart(ctx context.Context, userID string, start time.Time) (*types.Activity, error) {
	if m.FindActivityByStartFunc != nil {
		return m.FindActivityByStartFunc(ctx, userID, start)
	}
	return nil, nil
}

// --- Mock Publisher ---

type MockPublisher struct {
	PublishCloudEventFunc func(ctx context.Context, topic string, e event.Event) (string, error)
}

func (m *MockPublisher) PublishCloudEvent(ctx context.Context, topic string, e event.Event) (string, error) {
	if m.PublishCloudEventFunc != nil {
		return m.PublishCloudEventFunc(ctx, topic, e)
	}
	return "msg-id", nil
}

// --- Mock Storage ---

type MockBlobStore struct {
	WriteFunc         func(ctx context.Context, bucket, object string, data []byte) error
	WriteIfAbsentFunc func(ctx context.Context, bucket, object string, data []byte) error
	ReadFunc          func(ctx context.Context, bucket, object string) ([]byte, error)
}

func (m *MockBlobStore) Write(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, bucket, object, data)
	}
	return nil
}

func (m *MockBlobStore) WriteIfAbsent(ctx context.Context, bucket, object string, data []byte) error {
	if m.WriteIfAbsentFunc != nil {
		return m.WriteIfAbsentFunc(ctx, bucket, object, data)
	}
	return nil
}

func (m *MockBlobStore) Read(ctx context.Context, bucket, object string) ([]byte, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, bucket, object)
	}
	return []byte("mock-data"), nil
}
