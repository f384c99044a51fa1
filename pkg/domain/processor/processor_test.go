package processor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stridelog/server/pkg/types"
	"github.com/stridelog/server/pkg/uploaderr"
)

var testStart = time.Date(2025, 6, 14, 8, 30, 0, 0, time.UTC)

func fp(v float64) *float64 { return &v }

// fullSample builds a sample with every scored field present.
func fullSample(offset time.Duration, speed float64) *types.Sample {
	return &types.Sample{
		Timestamp: testStart.Add(offset),
		Distance:  fp(float64(offset / time.Second)),
		Speed:     fp(speed),
		Power:     fp(200),
		HeartRate: fp(140),
		Latitude:  fp(51.5073509),
		Longitude: fp(-0.1277583),
	}
}

func twoLapTree() *types.DecodedActivity {
	noHR := fullSample(10*time.Second, 12)
	noHR.HeartRate = nil

	return &types.DecodedActivity{
		StartTime: testStart,
		Sessions: []*types.DecodedSession{{
			StartTime:        testStart,
			Sport:            "running",
			TotalElapsedTime: 120,
			TotalDistance:    500,
			Laps: []*types.DecodedLap{
				{
					StartTime: testStart,
					Samples: []*types.Sample{
						fullSample(0, 10),
						noHR,
						fullSample(20*time.Second, 14),
					},
				},
				{
					StartTime: testStart.Add(30 * time.Second),
					Samples: []*types.Sample{
						fullSample(30*time.Second, 300), // out of range
						fullSample(40*time.Second, 5),
					},
				},
			},
		}},
	}
}

func TestProcess_ScenarioTwoLaps(t *testing.T) {
	data, err := Process(twoLapTree(), "user-1", "morning_run.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(data.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(data.Records))
	}
	if len(data.Laps) != 2 {
		t.Fatalf("expected 2 laps, got %d", len(data.Laps))
	}

	lap0, lap1 := data.Laps[0], data.Laps[1]
	if lap0.AvgSpeed == nil || *lap0.AvgSpeed != 12.00 {
		t.Errorf("lap0 avg speed = %v, want 12.00", lap0.AvgSpeed)
	}
	if lap0.MaxSpeed == nil || *lap0.MaxSpeed != 14 {
		t.Errorf("lap0 max speed = %v, want 14", lap0.MaxSpeed)
	}
	if lap1.AvgSpeed == nil || *lap1.AvgSpeed != 5 {
		t.Errorf("lap1 avg speed = %v, want 5 (300 m/s dropped before aggregation)", lap1.AvgSpeed)
	}
	if lap1.MaxSpeed == nil || *lap1.MaxSpeed != 5 {
		t.Errorf("lap1 max speed = %v, want 5", lap1.MaxSpeed)
	}

	// The out-of-range speed maps to null on the record itself.
	var invalid *types.Record
	for _, r := range data.Records {
		if r.LapIndex == 1 && r.Speed == nil {
			invalid = r
		}
	}
	if invalid == nil {
		t.Error("expected the 300 m/s record to have a nil speed")
	}

	// Missing heart rate alone costs 10 points.
	quality := -1
	for _, r := range data.Records {
		if r.HeartRate == nil && r.Speed != nil && r.LapIndex == 0 {
			quality = r.DataQuality
		}
	}
	if quality != 90 {
		t.Errorf("heart-rate-missing sample data_quality = %d, want 90", quality)
	}

	if data.Activity.Name != "morning run" {
		t.Errorf("activity name = %q, want %q", data.Activity.Name, "morning run")
	}
	if data.Stats.TotalRecords != 5 || data.Stats.TotalLaps != 2 {
		t.Errorf("stats = %+v, want 5 records / 2 laps", data.Stats)
	}
}

func TestProcess_NoSession(t *testing.T) {
	_, err := Process(&types.DecodedActivity{}, "user-1", "x.fit")
	var invalid *uploaderr.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestProcess_SessionWithoutLaps(t *testing.T) {
	tree := &types.DecodedActivity{
		Sessions: []*types.DecodedSession{{StartTime: testStart}},
	}
	_, err := Process(tree, "user-1", "x.fit")
	var invalid *uploaderr.InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidInputError, got %v", err)
	}
}

func TestProcess_LapIndicesContiguous(t *testing.T) {
	tree := twoLapTree()
	data, err := Process(tree, "user-1", "x.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	for i, lap := range data.Laps {
		if lap.LapIndex != i {
			t.Errorf("lap %d has index %d", i, lap.LapIndex)
		}
	}
	for _, r := range data.Records {
		if r.LapIndex < 0 || r.LapIndex >= len(data.Laps) {
			t.Errorf("record references lap index %d outside [0,%d)", r.LapIndex, len(data.Laps))
		}
	}
}

func TestProcess_RecordsSortedStable(t *testing.T) {
	shared := testStart.Add(5 * time.Second)

	tree := &types.DecodedActivity{
		StartTime: testStart,
		Sessions: []*types.DecodedSession{{
			StartTime: testStart,
			Laps: []*types.DecodedLap{
				{
					StartTime: testStart,
					Samples: []*types.Sample{
						{Timestamp: shared, Speed: fp(1)},
						{Timestamp: testStart.Add(9 * time.Second), Speed: fp(2)},
					},
				},
				{
					StartTime: testStart,
					Samples: []*types.Sample{
						{Timestamp: shared, Speed: fp(3)},
					},
				},
			},
		}},
	}

	data, err := Process(tree, "user-1", "x.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for i := 1; i < len(data.Records); i++ {
		if data.Records[i].Timestamp.Before(data.Records[i-1].Timestamp) {
			t.Fatalf("records not sorted ascending at %d", i)
		}
	}

	// Equal instants keep input order: lap0's sample flattens before lap1's.
	if data.Records[0].LapIndex != 0 || data.Records[1].LapIndex != 1 {
		t.Errorf("equal-instant records reordered: lap indices %d,%d, want 0,1",
			data.Records[0].LapIndex, data.Records[1].LapIndex)
	}
}

func TestProcess_DropsSamplesWithoutInstant(t *testing.T) {
	tree := twoLapTree()
	tree.Sessions[0].Laps[0].Samples = append(tree.Sessions[0].Laps[0].Samples,
		&types.Sample{Speed: fp(9)})

	data, err := Process(tree, "user-1", "x.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(data.Records) != 5 {
		t.Errorf("expected the instant-less sample to be dropped, got %d records", len(data.Records))
	}
}

func TestProcess_DataQualityInRange(t *testing.T) {
	empty := &types.Sample{Timestamp: testStart.Add(time.Second)}
	tree := twoLapTree()
	tree.Sessions[0].Laps[1].Samples = append(tree.Sessions[0].Laps[1].Samples, empty)

	data, err := Process(tree, "user-1", "x.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	for _, r := range data.Records {
		if r.DataQuality < 0 || r.DataQuality > 100 {
			t.Errorf("data quality %d outside [0,100]", r.DataQuality)
		}
	}

	// The all-missing sample loses 20+15+10+15+10 = 70 points.
	var bare *types.Record
	for _, r := range data.Records {
		if r.Speed == nil && r.Distance == nil && r.Power == nil {
			bare = r
		}
	}
	if bare == nil || bare.DataQuality != 30 {
		t.Errorf("bare sample quality = %+v, want 30", bare)
	}
}

func TestProcess_SportDefaults(t *testing.T) {
	tree := twoLapTree()
	tree.Sessions[0].Sport = ""
	tree.Sessions[0].SubSport = ""

	data, err := Process(tree, "user-1", "x.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if data.Activity.Sport != "unknown" || data.Activity.SubSport != "generic" {
		t.Errorf("sport defaults = %q/%q, want unknown/generic", data.Activity.Sport, data.Activity.SubSport)
	}
	if data.Laps[0].Trigger != "manual" {
		t.Errorf("lap trigger default = %q, want manual", data.Laps[0].Trigger)
	}
}

func TestProcess_ActivityBounds(t *testing.T) {
	tree := twoLapTree()
	tree.Sessions[0].Laps[0].StartLatitude = fp(51.50000001234)
	tree.Sessions[0].Laps[0].StartLongitude = fp(-0.12)
	tree.Sessions[0].Laps[1].EndLatitude = fp(51.51)
	tree.Sessions[0].Laps[1].EndLongitude = fp(-0.13)

	data, err := Process(tree, "user-1", "x.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if data.Activity.StartLatitude == nil || *data.Activity.StartLatitude != 51.5 {
		t.Errorf("start latitude = %v, want 51.5 (rounded to 7 decimals)", data.Activity.StartLatitude)
	}
	if data.Activity.EndLongitude == nil || *data.Activity.EndLongitude != -0.13 {
		t.Errorf("end longitude = %v, want -0.13", data.Activity.EndLongitude)
	}
}

func TestProcess_LapSampleCapWarning(t *testing.T) {
	lap := &types.DecodedLap{StartTime: testStart}
	for i := 0; i < 10_050; i++ {
		lap.Samples = append(lap.Samples, &types.Sample{
			Timestamp: testStart.Add(time.Duration(i) * time.Second),
			Speed:     fp(3),
		})
	}
	tree := &types.DecodedActivity{
		StartTime: testStart,
		Sessions: []*types.DecodedSession{{
			StartTime: testStart,
			Laps:      []*types.DecodedLap{lap},
		}},
	}

	data, err := Process(tree, "user-1", "x.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(data.Records) != 10_000 {
		t.Errorf("expected 10000 records after the cap, got %d", len(data.Records))
	}
	if len(data.Warnings) == 0 {
		t.Error("expected a size warning for the capped lap")
	}
}

func TestProcess_EmptyFilteredAggregatesAreNil(t *testing.T) {
	tree := &types.DecodedActivity{
		StartTime: testStart,
		Sessions: []*types.DecodedSession{{
			StartTime: testStart,
			Laps: []*types.DecodedLap{{
				StartTime: testStart,
				Samples: []*types.Sample{
					{Timestamp: testStart.Add(time.Second)},
					{Timestamp: testStart.Add(2 * time.Second)},
				},
			}},
		}},
	}

	data, err := Process(tree, "user-1", "x.fit")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	a := data.Activity
	if a.AvgSpeed != nil || a.MaxSpeed != nil || a.AvgPower != nil || a.AvgHeartRate != nil {
		t.Errorf("expected nil aggregates for empty filtered sets, got %+v", a)
	}
}

func TestActivityName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"morning_run.fit", "morning run"},
		{"2025_06_14_ride.fit", "2025 06 14 ride"},
		{"workout.FIT", "workout"},
		{"", "Activity"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			if got := activityName(tt.in); got != tt.want {
				t.Errorf("activityName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
