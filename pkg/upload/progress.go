package upload

import (
	"context"
	"log/slog"

	shared "github.com/stridelog/server/pkg"
	infrapubsub "github.com/stridelog/server/pkg/infrastructure/pubsub"
	"github.com/stridelog/server/pkg/types"
)

// ProgressFunc receives pipeline progress events. The pipeline never blocks
// on an observer and keeps its stage-order and monotonic-percentage
// guarantees whether or not one is attached.
type ProgressFunc func(types.ProgressEvent)

// NewPublishingObserver bridges progress events onto a Pub/Sub topic as
// CloudEvents. Publish failures are logged and swallowed; progress reporting
// must never affect the upload itself.
func NewPublishingObserver(pub shared.Publisher, topic string, logger *slog.Logger) ProgressFunc {
	return func(ev types.ProgressEvent) {
		e, err := infrapubsub.NewCloudEvent("/upload-pipeline", "com.stridelog.upload.progress", ev)
		if err != nil {
			logger.Warn("Failed to build progress event", "error", err)
			return
		}
		if _, err := pub.PublishCloudEvent(context.Background(), topic, e); err != nil {
			logger.Warn("Failed to publish progress event", "error", err, "stage", ev.Stage)
		}
	}
}
