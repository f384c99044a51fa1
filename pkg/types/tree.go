package types

import "time"

// The decoded message tree produced by the FIT decoder. It mirrors the file
// hierarchy (activity -> sessions -> laps -> samples) and is treated as
// read-only input by the processing pipeline. Absent numeric fields are nil;
// an absent timestamp is the zero time.

type DecodedActivity struct {
	StartTime  time.Time
	DeviceName string
	Sessions   []*DecodedSession
}

type DecodedSession struct {
	StartTime        time.Time
	Sport            string
	SubSport         string
	TotalElapsedTime float64 // seconds
	TotalTimerTime   float64 // seconds
	TotalDistance    float64 // meters
	Laps             []*DecodedLap
}

type DecodedLap struct {
	StartTime        time.Time
	EndTime          time.Time
	TotalElapsedTime float64 // seconds
	TotalTimerTime   float64 // seconds
	TotalDistance    float64 // meters
	StartLatitude    *float64
	StartLongitude   *float64
	EndLatitude      *float64
	EndLongitude     *float64
	Trigger          string // empty when the file carries none
	Samples          []*Sample
}

// Sample is one raw time-series reading. All sensor fields are unvalidated;
// the processor runs them through the field rules before anything is stored.
type Sample struct {
	Timestamp   time.Time
	Distance    *float64 // meters, cumulative
	Speed       *float64 // m/s
	Power       *float64 // watts
	Cadence     *float64 // rpm
	HeartRate   *float64 // bpm
	Temperature *float64 // celsius
	Latitude    *float64 // degrees
	Longitude   *float64 // degrees
}
