package types

import "time"

// Stage names reported through the progress observer, in pipeline order.
type Stage string

const (
	StageValidation     Stage = "validation"
	StageParsing        Stage = "parsing"
	StageDuplicateCheck Stage = "duplicate_check"
	StageStoringData    Stage = "storing_data"
	StageStoringRecords Stage = "storing_records"
	StageFileStorage    Stage = "file_storage"
	StageComplete       Stage = "complete"
	StageError          Stage = "error"
)

// ProgressEvent is transient and never persisted.
type ProgressEvent struct {
	Stage            Stage  `json:"stage"`
	Progress         int    `json:"progress"` // 0..100
	RecordsProcessed int    `json:"recordsProcessed,omitempty"`
	TotalRecords     int    `json:"totalRecords,omitempty"`
	Error            string `json:"error,omitempty"`
}

// FileMetadata summarizes the uploaded file for the caller.
type FileMetadata struct {
	ActivityDate time.Time `json:"activityDate"`
	ActivityType string    `json:"activityType"`
	Sport        string    `json:"sport"`
	Duration     float64   `json:"duration"`
	Distance     float64   `json:"distance"`
	DeviceName   string    `json:"deviceName"`
	RecordCount  int       `json:"recordCount"`
	LapCount     int       `json:"lapCount"`
}

// StoreStats reports what actually landed in the store.
type StoreStats struct {
	RecordsStored int `json:"recordsStored"`
	LapsStored    int `json:"lapsStored"`
	TotalRecords  int `json:"totalRecords"`
	TotalLaps     int `json:"totalLaps"`
}

// UploadResult is the final envelope of one upload call. Exactly one of the
// success/error branches is populated, decided by Success.
type UploadResult struct {
	Success      bool          `json:"success"`
	ActivityID   string        `json:"activityId,omitempty"`
	FileMetadata *FileMetadata `json:"fileMetadata,omitempty"`
	UploadTimeMs int64         `json:"uploadTimeMs"`
	FilePath     *string       `json:"filePath"`
	Stats        *StoreStats   `json:"stats,omitempty"`
	Error        string        `json:"error,omitempty"`

	// Cause keeps the typed failure for programmatic inspection. Never
	// serialized; Error carries the wire representation.
	Cause error `json:"-"`
}
