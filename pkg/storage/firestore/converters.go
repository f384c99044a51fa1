package firestore

import (
	"time"

	"github.com/stridelog/server/pkg/types"
)

// Helper to safely get string from map
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Helper to safely get a numeric value from map (Firestore returns int64 or
// float64 depending on how the value was written)
func getFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func getInt(m map[string]interface{}, key string) int {
	return int(getFloat(m, key))
}

// Helper to safely get time from map (handles time.Time from Firestore)
func getTime(m map[string]interface{}, key string) time.Time {
	if v, ok := m[key]; ok {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}
	return time.Time{}
}

func getFloatPtr(m map[string]interface{}, key string) *float64 {
	if _, ok := m[key]; !ok {
		return nil
	}
	v := getFloat(m, key)
	return &v
}

func getIntPtr(m map[string]interface{}, key string) *int {
	if _, ok := m[key]; !ok {
		return nil
	}
	v := getInt(m, key)
	return &v
}

// setIfPresent writes optional fields only when they carry a value, so
// absent sensor data stays absent in the document.
func setIfPresent[T any](m map[string]interface{}, key string, v *T) {
	if v != nil {
		m[key] = *v
	}
}

// --- Activity Converters ---

func ActivityToFirestore(a *types.Activity) map[string]interface{} {
	m := map[string]interface{}{
		"user_id":        a.UserID,
		"start_time":     a.StartTime.UTC(),
		"name":           a.Name,
		"sport":          a.Sport,
		"sub_sport":      a.SubSport,
		"total_distance": a.TotalDistance,
		"total_time":     a.TotalTime,
		"device_name":    a.DeviceName,
		"created_at":     a.CreatedAt.UTC(),
	}
	setIfPresent(m, "start_latitude", a.StartLatitude)
	setIfPresent(m, "start_longitude", a.StartLongitude)
	setIfPresent(m, "end_latitude", a.EndLatitude)
	setIfPresent(m, "end_longitude", a.EndLongitude)
	setIfPresent(m, "avg_speed", a.AvgSpeed)
	setIfPresent(m, "max_speed", a.MaxSpeed)
	setIfPresent(m, "avg_power", a.AvgPower)
	setIfPresent(m, "max_power", a.MaxPower)
	setIfPresent(m, "avg_heart_rate", a.AvgHeartRate)
	setIfPresent(m, "max_heart_rate", a.MaxHeartRate)
	return m
}

func FirestoreToActivity(m map[string]interface{}) *types.Activity {
	return &types.Activity{
		UserID:         getString(m, "user_id"),
		StartTime:      getTime(m, "start_time"),
		Name:           getString(m, "name"),
		Sport:          getString(m, "sport"),
		SubSport:       getString(m, "sub_sport"),
		TotalDistance:  getFloat(m, "total_distance"),
		TotalTime:      getFloat(m, "total_time"),
		StartLatitude:  getFloatPtr(m, "start_latitude"),
		StartLongitude: getFloatPtr(m, "start_longitude"),
		EndLatitude:    getFloatPtr(m, "end_latitude"),
		EndLongitude:   getFloatPtr(m, "end_longitude"),
		AvgSpeed:       getFloatPtr(m, "avg_speed"),
		MaxSpeed:       getFloatPtr(m, "max_speed"),
		AvgPower:       getIntPtr(m, "avg_power"),
		MaxPower:       getIntPtr(m, "max_power"),
		AvgHeartRate:   getIntPtr(m, "avg_heart_rate"),
		MaxHeartRate:   getIntPtr(m, "max_heart_rate"),
		DeviceName:     getString(m, "device_name"),
		CreatedAt:      getTime(m, "created_at"),
	}
}

// --- Lap Converters ---

func LapToFirestore(l *types.Lap) map[string]interface{} {
	m := map[string]interface{}{
		"activity_id":        l.ActivityID,
		"lap_index":          l.LapIndex,
		"start_time":         l.StartTime.UTC(),
		"end_time":           l.EndTime.UTC(),
		"total_elapsed_time": l.TotalElapsedTime,
		"total_timer_time":   l.TotalTimerTime,
		"total_distance":     l.TotalDistance,
		"trigger":            l.Trigger,
	}
	setIfPresent(m, "start_latitude", l.StartLatitude)
	setIfPresent(m, "start_longitude", l.StartLongitude)
	setIfPresent(m, "end_latitude", l.EndLatitude)
	setIfPresent(m, "end_longitude", l.EndLongitude)
	setIfPresent(m, "avg_speed", l.AvgSpeed)
	setIfPresent(m, "max_speed", l.MaxSpeed)
	setIfPresent(m, "avg_power", l.AvgPower)
	setIfPresent(m, "max_power", l.MaxPower)
	setIfPresent(m, "avg_heart_rate", l.AvgHeartRate)
	setIfPresent(m, "max_heart_rate", l.MaxHeartRate)
	setIfPresent(m, "avg_cadence", l.AvgCadence)
	return m
}

func FirestoreToLap(m map[string]interface{}) *types.Lap {
	return &types.Lap{
		ActivityID:       getString(m, "activity_id"),
		LapIndex:         getInt(m, "lap_index"),
		StartTime:        getTime(m, "start_time"),
		EndTime:          getTime(m, "end_time"),
		TotalElapsedTime: getFloat(m, "total_elapsed_time"),
		TotalTimerTime:   getFloat(m, "total_timer_time"),
		TotalDistance:    getFloat(m, "total_distance"),
		StartLatitude:    getFloatPtr(m, "start_latitude"),
		StartLongitude:   getFloatPtr(m, "start_longitude"),
		EndLatitude:      getFloatPtr(m, "end_latitude"),
		EndLongitude:     getFloatPtr(m, "end_longitude"),
		AvgSpeed:         getFloatPtr(m, "avg_speed"),
		MaxSpeed:         getFloatPtr(m, "max_speed"),
		AvgPower:         getIntPtr(m, "avg_power"),
		MaxPower:         getIntPtr(m, "max_power"),
		AvgHeartRate:     getIntPtr(m, "avg_heart_rate"),
		MaxHeartRate:     getIntPtr(m, "max_heart_rate"),
		AvgCadence:       getIntPtr(m, "avg_cadence"),
		Trigger:          getString(m, "trigger"),
	}
}

// --- Record Converters ---

func RecordToFirestore(r *types.Record) map[string]interface{} {
	m := map[string]interface{}{
		"activity_id":  r.ActivityID,
		"lap_index":    r.LapIndex,
		"timestamp":    r.Timestamp.UTC(),
		"elapsed_time": r.ElapsedTime,
		"timer_time":   r.TimerTime,
		"data_quality": r.DataQuality,
	}
	if r.LapID != nil {
		m["lap_id"] = *r.LapID
	}
	setIfPresent(m, "distance", r.Distance)
	setIfPresent(m, "speed", r.Speed)
	setIfPresent(m, "power", r.Power)
	setIfPresent(m, "cadence", r.Cadence)
	setIfPresent(m, "heart_rate", r.HeartRate)
	setIfPresent(m, "temperature", r.Temperature)
	setIfPresent(m, "latitude", r.Latitude)
	setIfPresent(m, "longitude", r.Longitude)
	return m
}

func FirestoreToRecord(m map[string]interface{}) *types.Record {
	r := &types.Record{
		ActivityID:  getString(m, "activity_id"),
		LapIndex:    getInt(m, "lap_index"),
		Timestamp:   getTime(m, "timestamp"),
		ElapsedTime: getFloat(m, "elapsed_time"),
		TimerTime:   getFloat(m, "timer_time"),
		Distance:    getFloatPtr(m, "distance"),
		Speed:       getFloatPtr(m, "speed"),
		Power:       getIntPtr(m, "power"),
		Cadence:     getIntPtr(m, "cadence"),
		HeartRate:   getIntPtr(m, "heart_rate"),
		Temperature: getFloatPtr(m, "temperature"),
		Latitude:    getFloatPtr(m, "latitude"),
		Longitude:   getFloatPtr(m, "longitude"),
		DataQuality: getInt(m, "data_quality"),
	}
	if lapID, ok := m["lap_id"].(string); ok {
		r.LapID = &lapID
	}
	return r
}
