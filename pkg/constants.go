package shared

const (
	ProjectID = "stridelog-project" // Can be overridden by env var in main if needed

	TopicUploadProgress = "topic-upload-progress"

	CollectionActivities      = "activities"
	CollectionLaps            = "laps"
	CollectionActivityRecords = "activity_records"

	// Upload limits. MaxUploadBytes bounds the raw file; the sample caps are
	// enforced by the processor (overruns degrade to size warnings).
	MaxUploadBytes      = 10 * 1024 * 1024
	MaxSamplesPerLap    = 10_000
	LargeDatasetSamples = 50_000

	// RecordBatchSize is also the Firestore write-batch ceiling, so keep it
	// at or below 500.
	RecordBatchSize = 500
)
