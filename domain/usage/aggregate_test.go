package usage_test

import (
	"testing"
	"time"

	"github.com/limitgate/limitgate/domain/usage"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func TestAggregate_Empty(t *testing.T) {
	end := baseTime.Add(time.Hour)
	summary := usage.Aggregate(nil, baseTime, end)

	if summary.RequestCount != 0 {
		t.Errorf("requestCount = %d, want 0", summary.RequestCount)
	}
	if !summary.PeriodStart.Equal(baseTime) || !summary.PeriodEnd.Equal(end) {
		t.Error("period bounds should be preserved for empty input")
	}
}

func TestAggregate_SumsAndAverages(t *testing.T) {
	events := []usage.Event{
		{ClientID: "1.2.3.4", StatusCode: 200, LatencyMs: 10, RequestBytes: 100, ResponseBytes: 1000},
		{ClientID: "1.2.3.4", StatusCode: 404, LatencyMs: 20, RequestBytes: 200, ResponseBytes: 50},
		{ClientID: "1.2.3.4", StatusCode: 502, LatencyMs: 30, RequestBytes: 0, ResponseBytes: 0},
	}

	summary := usage.Aggregate(events, baseTime, baseTime.Add(time.Hour))

	if summary.ClientID != "1.2.3.4" {
		t.Errorf("clientID = %q, want 1.2.3.4", summary.ClientID)
	}
	if summary.RequestCount != 3 {
		t.Errorf("requestCount = %d, want 3", summary.RequestCount)
	}
	if summary.ErrorCount != 2 {
		t.Errorf("errorCount = %d, want 2", summary.ErrorCount)
	}
	if summary.BytesIn != 300 {
		t.Errorf("bytesIn = %d, want 300", summary.BytesIn)
	}
	if summary.BytesOut != 1050 {
		t.Errorf("bytesOut = %d, want 1050", summary.BytesOut)
	}
	if summary.AvgLatencyMs != 20 {
		t.Errorf("avgLatencyMs = %d, want 20", summary.AvgLatencyMs)
	}
}

func TestEvent_IsError(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, false},
		{302, false},
		{400, true},
		{429, true},
		{500, true},
	}

	for _, tt := range tests {
		e := usage.Event{StatusCode: tt.status}
		if e.IsError() != tt.want {
			t.Errorf("IsError(%d) = %v, want %v", tt.status, e.IsError(), tt.want)
		}
	}
}
