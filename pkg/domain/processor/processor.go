// Package processor turns a decoded message tree into normalized, validated
// activity, lap and record entities plus aggregate statistics. Only the first
// session of a file is supported.
package processor

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	shared "github.com/stridelog/server/pkg"
	"github.com/stridelog/server/pkg/domain/validate"
	"github.com/stridelog/server/pkg/types"
	"github.com/stridelog/server/pkg/uploaderr"
)

const (
	defaultSport    = "unknown"
	defaultSubSport = "generic"
	defaultTrigger  = "manual"
)

// Process validates and normalizes the tree for the given user. It fails with
// *uploaderr.InvalidInputError when the tree has no session or the first
// session has no laps. Oversized input degrades to warnings, never an error.
func Process(tree *types.DecodedActivity, userID, filename string) (*types.ProcessedData, error) {
	if tree == nil || len(tree.Sessions) == 0 {
		return nil, uploaderr.NewInvalidInputError("no session in decoded activity")
	}
	session := tree.Sessions[0]
	if len(session.Laps) == 0 {
		return nil, uploaderr.NewInvalidInputError("session has no laps")
	}

	var warnings []string

	startTime := session.StartTime
	if startTime.IsZero() {
		startTime = tree.StartTime
	}

	rawSamples := 0
	laps := make([]*types.Lap, 0, len(session.Laps))
	records := make([]*types.Record, 0)

	for i, dl := range session.Laps {
		rawSamples += len(dl.Samples)

		lap := buildLap(dl, i)
		lapRecords, capped := buildRecords(dl, i, startTime)
		if capped > 0 {
			warnings = append(warnings, fmt.Sprintf(
				"%s: lap %d dropped %d samples over the %d cap",
				uploaderr.WarnLapSampleCap, i, capped, shared.MaxSamplesPerLap))
		}

		applyLapStats(lap, lapRecords)
		laps = append(laps, lap)
		records = append(records, lapRecords...)
	}

	if rawSamples > shared.LargeDatasetSamples {
		warnings = append(warnings, fmt.Sprintf(
			"%s: %d samples in session", uploaderr.WarnLargeDataset, rawSamples))
	}

	// Records from all laps merge into one timeline. The sort must be stable
	// so equal-instant records keep their input order.
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Timestamp.Before(records[b].Timestamp)
	})

	sport := session.Sport
	if sport == "" {
		sport = defaultSport
	}
	subSport := session.SubSport
	if subSport == "" {
		subSport = defaultSubSport
	}

	activity := &types.Activity{
		UserID:        userID,
		StartTime:     startTime,
		Name:          activityName(filename),
		Sport:         sport,
		SubSport:      subSport,
		TotalDistance: session.TotalDistance,
		TotalTime:     session.TotalElapsedTime,
		DeviceName:    tree.DeviceName,
	}
	applyActivityBounds(activity, laps)
	applyActivityStats(activity, records)

	return &types.ProcessedData{
		Activity: activity,
		Laps:     laps,
		Records:  records,
		Stats: types.Stats{
			TotalRecords: len(records),
			TotalLaps:    len(laps),
			Sport:        sport,
			SubSport:     subSport,
		},
		Warnings: warnings,
	}, nil
}

// activityName derives a human-readable name from the original filename:
// extension stripped, underscores become spaces.
func activityName(filename string) string {
	if filename == "" {
		return "Activity"
	}
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	name := strings.TrimSpace(strings.ReplaceAll(base, "_", " "))
	if name == "" {
		return "Activity"
	}
	return name
}

func buildLap(dl *types.DecodedLap, index int) *types.Lap {
	trigger := dl.Trigger
	if trigger == "" {
		trigger = defaultTrigger
	}

	endTime := dl.EndTime
	if endTime.IsZero() && !dl.StartTime.IsZero() {
		endTime = dl.StartTime.Add(secondsToDuration(dl.TotalElapsedTime))
	}

	return &types.Lap{
		LapIndex:         index,
		StartTime:        dl.StartTime,
		EndTime:          endTime,
		TotalElapsedTime: dl.TotalElapsedTime,
		TotalTimerTime:   dl.TotalTimerTime,
		TotalDistance:    dl.TotalDistance,
		StartLatitude:    validate.Coordinate(dl.StartLatitude),
		StartLongitude:   validate.Coordinate(dl.StartLongitude),
		EndLatitude:      validate.Coordinate(dl.EndLatitude),
		EndLongitude:     validate.Coordinate(dl.EndLongitude),
		Trigger:          trigger,
	}
}

// buildRecords validates every sample of the lap, drops samples without an
// instant, and enforces the per-lap cap. Returns the records plus how many
// samples the cap dropped.
func buildRecords(dl *types.DecodedLap, lapIndex int, activityStart time.Time) ([]*types.Record, int) {
	samples := dl.Samples
	capped := 0
	if len(samples) > shared.MaxSamplesPerLap {
		capped = len(samples) - shared.MaxSamplesPerLap
		samples = samples[:shared.MaxSamplesPerLap]
	}

	records := make([]*types.Record, 0, len(samples))
	for _, s := range samples {
		if s.Timestamp.IsZero() {
			// Unrecoverable input: excluded, not an error.
			continue
		}

		rec := &types.Record{
			LapIndex:    lapIndex,
			Timestamp:   s.Timestamp,
			Distance:    s.Distance,
			Speed:       validate.Float(validate.FieldSpeed, s.Speed),
			Power:       validate.Int(validate.FieldPower, s.Power),
			Cadence:     validate.Int(validate.FieldCadence, s.Cadence),
			HeartRate:   validate.Int(validate.FieldHeartRate, s.HeartRate),
			Temperature: validate.Float(validate.FieldTemperature, s.Temperature),
			Latitude:    validate.Coordinate(s.Latitude),
			Longitude:   validate.Coordinate(s.Longitude),
		}
		if !activityStart.IsZero() {
			rec.ElapsedTime = s.Timestamp.Sub(activityStart).Seconds()
		}
		if !dl.StartTime.IsZero() {
			rec.TimerTime = s.Timestamp.Sub(dl.StartTime).Seconds()
		}
		rec.DataQuality = dataQuality(rec)
		records = append(records, rec)
	}
	return records, capped
}

// dataQuality scores completeness of a record: start at 100 and subtract per
// missing field, floored at 0.
func dataQuality(r *types.Record) int {
	score := 100
	if r.Latitude == nil || r.Longitude == nil {
		score -= 20
	}
	if r.Speed == nil {
		score -= 15
	}
	if r.Distance == nil {
		score -= 10
	}
	if r.Power == nil {
		score -= 15
	}
	if r.HeartRate == nil {
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	return score
}

// applyActivityBounds fills start coordinates from the first lap with both
// valid start coordinates and end coordinates from the last lap with both
// valid end coordinates. Stays nil when no lap qualifies.
func applyActivityBounds(activity *types.Activity, laps []*types.Lap) {
	for _, lap := range laps {
		if lap.StartLatitude != nil && lap.StartLongitude != nil {
			activity.StartLatitude = lap.StartLatitude
			activity.StartLongitude = lap.StartLongitude
			break
		}
	}
	for i := len(laps) - 1; i >= 0; i-- {
		if laps[i].EndLatitude != nil && laps[i].EndLongitude != nil {
			activity.EndLatitude = laps[i].EndLatitude
			activity.EndLongitude = laps[i].EndLongitude
			break
		}
	}
}

func applyActivityStats(activity *types.Activity, records []*types.Record) {
	activity.AvgSpeed, activity.MaxSpeed = speedStats(records)
	activity.AvgPower, activity.MaxPower = intStats(records, func(r *types.Record) *int { return r.Power })
	activity.AvgHeartRate, activity.MaxHeartRate = intStats(records, func(r *types.Record) *int { return r.HeartRate })
}

func applyLapStats(lap *types.Lap, records []*types.Record) {
	lap.AvgSpeed, lap.MaxSpeed = speedStats(records)
	lap.AvgPower, lap.MaxPower = intStats(records, func(r *types.Record) *int { return r.Power })
	lap.AvgHeartRate, lap.MaxHeartRate = intStats(records, func(r *types.Record) *int { return r.HeartRate })
	lap.AvgCadence, _ = intStats(records, func(r *types.Record) *int { return r.Cadence })
}

// speedStats averages and maxes validated speeds, filtering to values > 0.
// An empty filtered set yields nil for both.
func speedStats(records []*types.Record) (avg, max *float64) {
	var sum, maxVal float64
	count := 0
	for _, r := range records {
		if r.Speed == nil || *r.Speed <= 0 {
			continue
		}
		sum += *r.Speed
		if count == 0 || *r.Speed > maxVal {
			maxVal = *r.Speed
		}
		count++
	}
	if count == 0 {
		return nil, nil
	}
	a := validate.Round(sum/float64(count), 2)
	m := maxVal
	return &a, &m
}

// intStats is the same aggregation for integer fields, averaged to an
// integer.
func intStats(records []*types.Record, field func(*types.Record) *int) (avg, max *int) {
	sum, maxVal, count := 0, 0, 0
	for _, r := range records {
		v := field(r)
		if v == nil || *v <= 0 {
			continue
		}
		sum += *v
		if count == 0 || *v > maxVal {
			maxVal = *v
		}
		count++
	}
	if count == 0 {
		return nil, nil
	}
	a := int(validate.Round(float64(sum)/float64(count), 0))
	m := maxVal
	return &a, &m
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
