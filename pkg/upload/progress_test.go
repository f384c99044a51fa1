package upload

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/stridelog/server/pkg/testing/mocks"
	"github.com/stridelog/server/pkg/types"
)

func TestPublishingObserver_PublishesEvent(t *testing.T) {
	var gotTopic string
	var gotData []byte
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			gotTopic = topic
			gotData = e.Data()
			return "msg-1", nil
		},
	}

	observe := NewPublishingObserver(pub, "progress-topic", testLogger())
	observe(types.ProgressEvent{Stage: types.StageStoringRecords, Progress: 60, RecordsProcessed: 600, TotalRecords: 1200})

	if gotTopic != "progress-topic" {
		t.Errorf("topic = %q, want progress-topic", gotTopic)
	}

	var published types.ProgressEvent
	if err := json.Unmarshal(gotData, &published); err != nil {
		t.Fatalf("payload is not a progress event: %v", err)
	}
	if published.Stage != types.StageStoringRecords || published.Progress != 60 {
		t.Errorf("published = %+v", published)
	}
}

func TestPublishingObserver_SwallowsPublishFailure(t *testing.T) {
	pub := &mocks.MockPublisher{
		PublishCloudEventFunc: func(ctx context.Context, topic string, e event.Event) (string, error) {
			return "", errors.New("broker down")
		},
	}

	observe := NewPublishingObserver(pub, "progress-topic", testLogger())

	// Must not panic or propagate anything.
	observe(types.ProgressEvent{Stage: types.StageComplete, Progress: 100})
}
