package fit_parser

import (
	"testing"
	"time"

	"github.com/stridelog/server/pkg/types"
)

func TestParse_EmptyData(t *testing.T) {
	_, err := Parse([]byte{})
	if err == nil {
		t.Error("Expected error for empty data")
	}
}

func TestParse_InvalidData(t *testing.T) {
	_, err := Parse([]byte("not a fit file"))
	if err == nil {
		t.Error("Expected error for invalid data")
	}
}

func TestBuildSessions_SyntheticSession(t *testing.T) {
	start := time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC)
	samples := []*types.Sample{
		{Timestamp: start},
		{Timestamp: start.Add(30 * time.Second)},
		{Timestamp: start.Add(60 * time.Second)},
	}

	sessions := buildSessions(samples, nil, nil)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 synthetic session, got %d", len(sessions))
	}
	if len(sessions[0].Laps) != 1 {
		t.Fatalf("expected 1 synthetic lap, got %d", len(sessions[0].Laps))
	}
	if got := len(sessions[0].Laps[0].Samples); got != 3 {
		t.Errorf("expected all 3 samples in the synthetic lap, got %d", got)
	}
	if sessions[0].TotalElapsedTime != 60 {
		t.Errorf("expected 60s duration, got %v", sessions[0].TotalElapsedTime)
	}
}

func TestBuildSessions_AssignsSamplesByTimeWindow(t *testing.T) {
	start := time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC)

	lapInfos := []lapInfo{
		{startTime: start, totalElapsedTime: 60},
		{startTime: start.Add(61 * time.Second), totalElapsedTime: 60},
	}
	sessionInfos := []sessionInfo{
		{startTime: start, totalElapsedTime: 121, sport: "cycling"},
	}
	samples := []*types.Sample{
		{Timestamp: start.Add(10 * time.Second)},
		{Timestamp: start.Add(70 * time.Second)},
		{Timestamp: start.Add(110 * time.Second)},
	}

	sessions := buildSessions(samples, lapInfos, sessionInfos)
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	session := sessions[0]
	if session.Sport != "cycling" {
		t.Errorf("sport = %q, want cycling", session.Sport)
	}
	if len(session.Laps) != 2 {
		t.Fatalf("expected 2 laps, got %d", len(session.Laps))
	}
	if got := len(session.Laps[0].Samples); got != 1 {
		t.Errorf("lap 0 samples = %d, want 1", got)
	}
	if got := len(session.Laps[1].Samples); got != 2 {
		t.Errorf("lap 1 samples = %d, want 2", got)
	}
}

func TestBuildSessions_SampleOutsideAllWindows(t *testing.T) {
	start := time.Date(2025, 3, 2, 7, 0, 0, 0, time.UTC)

	lapInfos := []lapInfo{
		{startTime: start, totalElapsedTime: 60},
	}
	sessionInfos := []sessionInfo{
		{startTime: start, totalElapsedTime: 60},
	}
	// Recorded after the lap window closed (device pause quirk).
	samples := []*types.Sample{
		{Timestamp: start.Add(90 * time.Second)},
	}

	sessions := buildSessions(samples, lapInfos, sessionInfos)
	if got := len(sessions[0].Laps[0].Samples); got != 1 {
		t.Errorf("straggler sample not assigned to the nearest lap, got %d samples", got)
	}
}

func TestPositionToDegrees(t *testing.T) {
	if got := positionToDegrees(0x7FFFFFFF); got != nil {
		t.Errorf("invalid sentinel should map to nil, got %v", got)
	}

	// 2^30 semicircles is exactly 90 degrees.
	got := positionToDegrees(1 << 30)
	if got == nil || *got < 89.999 || *got > 90.001 {
		t.Errorf("positionToDegrees(2^30) = %v, want ~90", got)
	}
}
