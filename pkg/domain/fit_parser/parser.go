package fit_parser

import (
	"bytes"
	"fmt"
	"time"

	"github.com/muktihari/fit/decoder"
	"github.com/muktihari/fit/profile/mesgdef"
	"github.com/muktihari/fit/profile/typedef"
	"github.com/muktihari/fit/proto"

	"github.com/stridelog/server/pkg/types"
)

// FIT message order: FileId -> DeviceInfo -> Records -> Lap -> Session -> Activity
// Records come BEFORE Lap/Session summaries, so we need to collect everything
// first and then organize into the proper hierarchy.

const semicircleConst = 11930464.7111 // 2^31 / 180

// Decoder turns raw FIT bytes into the decoded message tree the pipeline
// consumes. It satisfies upload.Decoder.
type Decoder struct{}

func (Decoder) Decode(data []byte) (*types.DecodedActivity, error) {
	return Parse(data)
}

// Parse decodes a FIT file into a message tree. The tree keeps the file's
// session/lap/sample hierarchy; samples are assigned to laps by time window.
func Parse(data []byte) (*types.DecodedActivity, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty FIT data")
	}

	fitDec := decoder.New(bytes.NewReader(data))

	var samples []*types.Sample
	var lapInfos []lapInfo
	var sessionInfos []sessionInfo

	var startTime time.Time
	var deviceName string

	for fitDec.Next() {
		fitData, err := fitDec.Decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode FIT file: %w", err)
		}

		for _, msg := range fitData.Messages {
			switch msg.Num {
			case typedef.MesgNumFileId:
				fileId := mesgdef.NewFileId(&msg)
				if startTime.IsZero() && !fileId.TimeCreated.IsZero() {
					startTime = fileId.TimeCreated.UTC()
				}

			case typedef.MesgNumDeviceInfo:
				if deviceName == "" {
					deviceName = parseDeviceName(mesgdef.NewDeviceInfo(&msg))
				}

			case typedef.MesgNumRecord:
				sample := parseSample(&msg)
				if sample != nil {
					samples = append(samples, sample)
					if startTime.IsZero() {
						startTime = sample.Timestamp
					}
				}

			case typedef.MesgNumLap:
				lapInfos = append(lapInfos, parseLap(&msg))

			case typedef.MesgNumSession:
				sessionInfos = append(sessionInfos, parseSession(&msg))
			}
		}
	}

	sessions := buildSessions(samples, lapInfos, sessionInfos)
	if len(sessions) == 0 {
		return nil, fmt.Errorf("no sessions found in FIT file")
	}

	if startTime.IsZero() {
		startTime = sessions[0].StartTime
	}

	return &types.DecodedActivity{
		StartTime:  startTime,
		DeviceName: deviceName,
		Sessions:   sessions,
	}, nil
}

type lapInfo struct {
	startTime        time.Time
	endTime          time.Time
	totalElapsedTime float64
	totalTimerTime   float64
	totalDistance    float64
	startLat         *float64
	startLong        *float64
	endLat           *float64
	endLong          *float64
	trigger          string
}

type sessionInfo struct {
	startTime        time.Time
	totalElapsedTime float64
	totalTimerTime   float64
	totalDistance    float64
	sport            string
	subSport         string
}

func parseLap(msg *proto.Message) lapInfo {
	lapMsg := mesgdef.NewLap(msg)

	li := lapInfo{
		startTime:        lapMsg.StartTime.UTC(),
		totalElapsedTime: float64(lapMsg.TotalElapsedTime) / 1000,
		totalTimerTime:   float64(lapMsg.TotalTimerTime) / 1000,
		totalDistance:    float64(lapMsg.TotalDistance) / 100,
		startLat:         positionToDegrees(lapMsg.StartPositionLat),
		startLong:        positionToDegrees(lapMsg.StartPositionLong),
		endLat:           positionToDegrees(lapMsg.EndPositionLat),
		endLong:          positionToDegrees(lapMsg.EndPositionLong),
	}
	if !lapMsg.Timestamp.IsZero() {
		li.endTime = lapMsg.Timestamp.UTC()
	}
	if lapMsg.LapTrigger != typedef.LapTriggerInvalid {
		li.trigger = lapMsg.LapTrigger.String()
	}
	return li
}

func parseSession(msg *proto.Message) sessionInfo {
	sessionMsg := mesgdef.NewSession(msg)

	si := sessionInfo{
		startTime:        sessionMsg.StartTime.UTC(),
		totalElapsedTime: float64(sessionMsg.TotalElapsedTime) / 1000,
		totalTimerTime:   float64(sessionMsg.TotalTimerTime) / 1000,
		totalDistance:    float64(sessionMsg.TotalDistance) / 100,
	}
	if sessionMsg.Sport != typedef.SportInvalid {
		si.sport = sessionMsg.Sport.String()
	}
	if sessionMsg.SubSport != typedef.SubSportInvalid {
		si.subSport = sessionMsg.SubSport.String()
	}
	return si
}

// parseSample extracts one record message. Returns nil when the record has no
// timestamp; samples without an instant are useless downstream.
func parseSample(msg *proto.Message) *types.Sample {
	recordMsg := mesgdef.NewRecord(msg)

	ts := recordMsg.Timestamp
	if ts.IsZero() {
		return nil
	}

	sample := &types.Sample{Timestamp: ts.UTC()}

	if recordMsg.HeartRate != 0xFF { // 0xFF is invalid
		hr := float64(recordMsg.HeartRate)
		sample.HeartRate = &hr
	}
	if recordMsg.Power != 0xFFFF {
		p := float64(recordMsg.Power)
		sample.Power = &p
	}
	if recordMsg.Cadence != 0xFF {
		c := float64(recordMsg.Cadence)
		sample.Cadence = &c
	}
	if recordMsg.Temperature != 0x7F {
		temp := float64(recordMsg.Temperature)
		sample.Temperature = &temp
	}

	// FIT uses mm/s, we want m/s
	if recordMsg.Speed != 0xFFFF {
		speed := float64(recordMsg.Speed) / 1000
		sample.Speed = &speed
	}

	// FIT uses cm, we want meters
	if recordMsg.Distance != 0xFFFFFFFF {
		dist := float64(recordMsg.Distance) / 100
		sample.Distance = &dist
	}

	sample.Latitude = positionToDegrees(recordMsg.PositionLat)
	sample.Longitude = positionToDegrees(recordMsg.PositionLong)

	return sample
}

// positionToDegrees converts FIT semicircles to decimal degrees, nil for the
// invalid sentinel.
func positionToDegrees(semicircles int32) *float64 {
	if semicircles == 0x7FFFFFFF {
		return nil
	}
	deg := float64(semicircles) / semicircleConst
	return &deg
}

func parseDeviceName(info *mesgdef.DeviceInfo) string {
	if info.ProductName != "" {
		return info.ProductName
	}
	if info.Manufacturer != typedef.ManufacturerInvalid {
		return info.Manufacturer.String()
	}
	return ""
}

// buildSessions organizes samples into laps and sessions based on timestamps.
func buildSessions(samples []*types.Sample, lapInfos []lapInfo, sessionInfos []sessionInfo) []*types.DecodedSession {
	if len(samples) == 0 && len(sessionInfos) == 0 {
		return nil
	}

	// If no session info, create a synthetic session with all samples.
	if len(sessionInfos) == 0 {
		var duration float64
		if len(samples) > 1 {
			duration = samples[len(samples)-1].Timestamp.Sub(samples[0].Timestamp).Seconds()
		}
		lap := &types.DecodedLap{
			StartTime:        samples[0].Timestamp,
			EndTime:          samples[len(samples)-1].Timestamp,
			TotalElapsedTime: duration,
			Samples:          samples,
		}
		return []*types.DecodedSession{{
			StartTime:        samples[0].Timestamp,
			TotalElapsedTime: duration,
			Laps:             []*types.DecodedLap{lap},
		}}
	}

	// If no lap info, create one lap per session containing all samples.
	if len(lapInfos) == 0 {
		si := sessionInfos[0]
		lap := &types.DecodedLap{
			StartTime:        si.startTime,
			EndTime:          si.startTime.Add(secondsToDuration(si.totalElapsedTime)),
			TotalElapsedTime: si.totalElapsedTime,
			TotalTimerTime:   si.totalTimerTime,
			TotalDistance:    si.totalDistance,
			Samples:          samples,
		}
		return []*types.DecodedSession{{
			StartTime:        si.startTime,
			Sport:            si.sport,
			SubSport:         si.subSport,
			TotalElapsedTime: si.totalElapsedTime,
			TotalTimerTime:   si.totalTimerTime,
			TotalDistance:    si.totalDistance,
			Laps:             []*types.DecodedLap{lap},
		}}
	}

	laps := make([]*types.DecodedLap, len(lapInfos))
	for i, li := range lapInfos {
		endTime := li.endTime
		if endTime.IsZero() {
			endTime = li.startTime.Add(secondsToDuration(li.totalElapsedTime))
		}
		laps[i] = &types.DecodedLap{
			StartTime:        li.startTime,
			EndTime:          endTime,
			TotalElapsedTime: li.totalElapsedTime,
			TotalTimerTime:   li.totalTimerTime,
			TotalDistance:    li.totalDistance,
			StartLatitude:    li.startLat,
			StartLongitude:   li.startLong,
			EndLatitude:      li.endLat,
			EndLongitude:     li.endLong,
			Trigger:          li.trigger,
			Samples:          []*types.Sample{},
		}
	}

	// Assign each sample to the lap whose time window contains it.
	for _, sample := range samples {
		st := sample.Timestamp
		assigned := false

		for i := len(lapInfos) - 1; i >= 0; i-- {
			lapStart := lapInfos[i].startTime
			lapEnd := lapStart.Add(secondsToDuration(lapInfos[i].totalElapsedTime))
			if !st.Before(lapStart) && !st.After(lapEnd) {
				laps[i].Samples = append(laps[i].Samples, sample)
				assigned = true
				break
			}
		}

		// If not assigned (edge case), put in the latest lap that starts
		// before this sample; last resort is the first lap.
		if !assigned {
			for i := len(lapInfos) - 1; i >= 0; i-- {
				if !st.Before(lapInfos[i].startTime) {
					laps[i].Samples = append(laps[i].Samples, sample)
					assigned = true
					break
				}
			}
			if !assigned && len(laps) > 0 {
				laps[0].Samples = append(laps[0].Samples, sample)
			}
		}
	}

	sessions := make([]*types.DecodedSession, len(sessionInfos))
	for i, si := range sessionInfos {
		sessions[i] = &types.DecodedSession{
			StartTime:        si.startTime,
			Sport:            si.sport,
			SubSport:         si.subSport,
			TotalElapsedTime: si.totalElapsedTime,
			TotalTimerTime:   si.totalTimerTime,
			TotalDistance:    si.totalDistance,
			Laps:             []*types.DecodedLap{},
		}
	}

	// Assign laps to sessions the same way.
	for _, lap := range laps {
		assigned := false
		for i := len(sessionInfos) - 1; i >= 0; i-- {
			sessionStart := sessionInfos[i].startTime
			sessionEnd := sessionStart.Add(secondsToDuration(sessionInfos[i].totalElapsedTime))
			if !lap.StartTime.Before(sessionStart) && !lap.StartTime.After(sessionEnd) {
				sessions[i].Laps = append(sessions[i].Laps, lap)
				assigned = true
				break
			}
		}
		if !assigned {
			for i := len(sessionInfos) - 1; i >= 0; i-- {
				if !lap.StartTime.Before(sessionInfos[i].startTime) {
					sessions[i].Laps = append(sessions[i].Laps, lap)
					assigned = true
					break
				}
			}
			if !assigned && len(sessions) > 0 {
				sessions[0].Laps = append(sessions[0].Laps, lap)
			}
		}
	}

	return sessions
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
