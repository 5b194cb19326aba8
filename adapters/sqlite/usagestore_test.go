package sqlite_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/limitgate/limitgate/adapters/sqlite"
	"github.com/limitgate/limitgate/domain/usage"
)

var baseTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	f, err := os.CreateTemp("", "limitgate-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		os.Remove(path)
	})

	return db
}

func testEvent(id, clientID string, status int, ts time.Time) usage.Event {
	return usage.Event{
		ID:            id,
		ClientID:      clientID,
		Method:        "GET",
		Path:          "/api/things",
		StatusCode:    status,
		LatencyMs:     25,
		RequestBytes:  128,
		ResponseBytes: 512,
		RemoteIP:      "10.0.0.1",
		UserAgent:     "test-agent",
		Timestamp:     ts,
	}
}

func TestUsageStore_RecordAndRecent(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	events := []usage.Event{
		testEvent("e1", "client-a", 200, baseTime),
		testEvent("e2", "client-a", 404, baseTime.Add(time.Second)),
		testEvent("e3", "client-b", 200, baseTime.Add(2*time.Second)),
	}
	if err := store.RecordBatch(ctx, events); err != nil {
		t.Fatalf("RecordBatch failed: %v", err)
	}

	recent, err := store.GetRecentRequests(ctx, "client-a", 10)
	if err != nil {
		t.Fatalf("GetRecentRequests failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d events, want 2", len(recent))
	}
	if recent[0].ID != "e2" {
		t.Errorf("newest event ID = %s, want e2", recent[0].ID)
	}
	if recent[0].RemoteIP != "10.0.0.1" {
		t.Errorf("RemoteIP = %s, want 10.0.0.1", recent[0].RemoteIP)
	}
	if recent[0].UserAgent != "test-agent" {
		t.Errorf("UserAgent = %s, want test-agent", recent[0].UserAgent)
	}
}

func TestUsageStore_RecordEmptyBatch(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewUsageStore(db)

	if err := store.RecordBatch(context.Background(), nil); err != nil {
		t.Errorf("RecordBatch(nil) failed: %v", err)
	}
}

func TestUsageStore_GetSummary(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	store.RecordBatch(ctx, []usage.Event{
		testEvent("e1", "client-a", 200, baseTime),
		testEvent("e2", "client-a", 500, baseTime.Add(time.Second)),
		testEvent("e3", "client-b", 200, baseTime.Add(2*time.Second)),
		testEvent("e4", "client-a", 200, baseTime.Add(2*time.Hour)), // outside period
	})

	summary, err := store.GetSummary(ctx, "client-a", baseTime, baseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}

	if summary.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", summary.RequestCount)
	}
	if summary.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", summary.ErrorCount)
	}
	if summary.BytesIn != 256 {
		t.Errorf("BytesIn = %d, want 256", summary.BytesIn)
	}
	if summary.BytesOut != 1024 {
		t.Errorf("BytesOut = %d, want 1024", summary.BytesOut)
	}
	if summary.AvgLatencyMs != 25 {
		t.Errorf("AvgLatencyMs = %d, want 25", summary.AvgLatencyMs)
	}
}

func TestUsageStore_SummaryAllClients(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	store.RecordBatch(ctx, []usage.Event{
		testEvent("e1", "client-a", 200, baseTime),
		testEvent("e2", "client-b", 200, baseTime.Add(time.Second)),
	})

	summary, err := store.GetSummary(ctx, "", baseTime, baseTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if summary.RequestCount != 2 {
		t.Errorf("RequestCount = %d, want 2", summary.RequestCount)
	}
}

func TestUsageStore_Cleanup(t *testing.T) {
	db := setupTestDB(t)
	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	store.RecordBatch(ctx, []usage.Event{
		testEvent("old", "client-a", 200, baseTime.Add(-48*time.Hour)),
		testEvent("new", "client-a", 200, baseTime),
	})

	deleted, err := store.Cleanup(ctx, baseTime.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	recent, _ := store.GetRecentRequests(ctx, "client-a", 10)
	if len(recent) != 1 {
		t.Fatalf("got %d events after cleanup, want 1", len(recent))
	}
	if recent[0].ID != "new" {
		t.Errorf("surviving event ID = %s, want new", recent[0].ID)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	// Running migrations again must be a no-op
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}
