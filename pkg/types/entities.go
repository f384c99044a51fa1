package types

import "time"

// Persisted entities. Field names line up with the Firestore converters in
// pkg/storage/firestore.

// Activity is one recorded workout session. Immutable after creation; the
// document ID doubles as the (user, start time) uniqueness key.
type Activity struct {
	ID             string
	UserID         string
	StartTime      time.Time
	Name           string
	Sport          string
	SubSport       string
	TotalDistance  float64 // meters
	TotalTime      float64 // seconds
	StartLatitude  *float64
	StartLongitude *float64
	EndLatitude    *float64
	EndLongitude   *float64
	AvgSpeed       *float64
	MaxSpeed       *float64
	AvgPower       *int
	MaxPower       *int
	AvgHeartRate   *int
	MaxHeartRate   *int
	DeviceName     string
	CreatedAt      time.Time
}

// Lap is a contiguous segment of an Activity. LapIndex is the zero-based
// enumeration order within the session.
type Lap struct {
	ID               string
	ActivityID       string
	LapIndex         int
	StartTime        time.Time
	EndTime          time.Time
	TotalElapsedTime float64
	TotalTimerTime   float64
	TotalDistance    float64
	StartLatitude    *float64
	StartLongitude   *float64
	EndLatitude      *float64
	EndLongitude     *float64
	AvgSpeed         *float64
	MaxSpeed         *float64
	AvgPower         *int
	MaxPower         *int
	AvgHeartRate     *int
	MaxHeartRate     *int
	AvgCadence       *int
	Trigger          string
}

// Record is one validated time-series sample. ActivityID and LapID are filled
// in during persistence; LapID stays nil when the lap index resolves to no
// stored lap.
type Record struct {
	ID          string
	ActivityID  string
	LapID       *string
	LapIndex    int
	Timestamp   time.Time
	ElapsedTime float64 // seconds since activity start
	TimerTime   float64
	Distance    *float64
	Speed       *float64
	Power       *int
	Cadence     *int
	HeartRate   *int
	Temperature *float64
	Latitude    *float64
	Longitude   *float64
	DataQuality int // completeness heuristic, 0..100
}

// Stats is the per-file summary computed during processing. Not persisted on
// its own; it rides along in the result envelope.
type Stats struct {
	TotalRecords int    `json:"totalRecords"`
	TotalLaps    int    `json:"totalLaps"`
	Sport        string `json:"sport"`
	SubSport     string `json:"subSport"`
}

// ProcessedData is the full output of the data processor for one upload.
type ProcessedData struct {
	Activity *Activity
	Laps     []*Lap
	Records  []*Record
	Stats    Stats
	Warnings []string // size warnings, informational only
}
