package usage

import "time"

// Aggregate combines multiple events into a summary.
// This is a PURE function.
func Aggregate(events []Event, periodStart, periodEnd time.Time) Summary {
	if len(events) == 0 {
		return Summary{
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		}
	}

	var (
		requestCount int64
		bytesIn      int64
		bytesOut     int64
		errorCount   int64
		totalLatency int64
		clientID     string
	)

	for _, e := range events {
		if clientID == "" {
			clientID = e.ClientID
		}

		requestCount++
		bytesIn += e.RequestBytes
		bytesOut += e.ResponseBytes
		totalLatency += e.LatencyMs

		if e.IsError() {
			errorCount++
		}
	}

	return Summary{
		ClientID:     clientID,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd,
		RequestCount: requestCount,
		BytesIn:      bytesIn,
		BytesOut:     bytesOut,
		ErrorCount:   errorCount,
		AvgLatencyMs: totalLatency / requestCount,
	}
}
