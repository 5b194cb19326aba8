package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/limitgate/limitgate/domain/usage"
	"github.com/limitgate/limitgate/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// RecordBatch stores multiple request log events in one transaction.
func (s *UsageStore) RecordBatch(ctx context.Context, events []usage.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_events (
			id, client_id, method, path, status_code, latency_ms,
			request_bytes, response_bytes, remote_ip, user_agent, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		// Store timestamps in UTC for consistent querying
		_, err := stmt.ExecContext(ctx,
			e.ID, e.ClientID, e.Method, e.Path, e.StatusCode, e.LatencyMs,
			e.RequestBytes, e.ResponseBytes, e.RemoteIP, e.UserAgent, e.Timestamp.UTC(),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetSummary returns aggregated traffic for a period.
// An empty clientID aggregates across all clients.
func (s *UsageStore) GetSummary(ctx context.Context, clientID string, start, end time.Time) (usage.Summary, error) {
	startStr := start.UTC().Format("2006-01-02 15:04:05")
	endStr := end.UTC().Format("2006-01-02 15:04:05")

	query := `
		SELECT
			COUNT(*) as request_count,
			COALESCE(SUM(request_bytes), 0) as bytes_in,
			COALESCE(SUM(response_bytes), 0) as bytes_out,
			COALESCE(SUM(CASE WHEN status_code >= 400 THEN 1 ELSE 0 END), 0) as error_count,
			CAST(COALESCE(AVG(latency_ms), 0) AS INTEGER) as avg_latency
		FROM usage_events
		WHERE datetime(timestamp) >= datetime(?) AND datetime(timestamp) < datetime(?)
	`
	args := []any{startStr, endStr}
	if clientID != "" {
		query += " AND client_id = ?"
		args = append(args, clientID)
	}

	row := s.db.QueryRowContext(ctx, query, args...)

	summary := usage.Summary{
		ClientID:    clientID,
		PeriodStart: start,
		PeriodEnd:   end,
	}
	err := row.Scan(
		&summary.RequestCount,
		&summary.BytesIn,
		&summary.BytesOut,
		&summary.ErrorCount,
		&summary.AvgLatencyMs,
	)
	if err != nil {
		return usage.Summary{}, err
	}

	return summary, nil
}

// GetRecentRequests returns the most recent events, newest first.
// An empty clientID returns events across all clients.
func (s *UsageStore) GetRecentRequests(ctx context.Context, clientID string, limit int) ([]usage.Event, error) {
	query := `
		SELECT id, client_id, method, path, status_code, latency_ms,
		       request_bytes, response_bytes, remote_ip, user_agent, timestamp
		FROM usage_events
	`
	args := []any{}
	if clientID != "" {
		query += " WHERE client_id = ?"
		args = append(args, clientID)
	}
	query += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []usage.Event
	for rows.Next() {
		var e usage.Event
		var remoteIP, userAgent sql.NullString

		err := rows.Scan(
			&e.ID, &e.ClientID, &e.Method, &e.Path, &e.StatusCode, &e.LatencyMs,
			&e.RequestBytes, &e.ResponseBytes, &remoteIP, &userAgent, &e.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		if remoteIP.Valid {
			e.RemoteIP = remoteIP.String
		}
		if userAgent.Valid {
			e.UserAgent = userAgent.String
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// Cleanup removes events older than the given time. Returns rows deleted.
func (s *UsageStore) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM usage_events WHERE timestamp < ?
	`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
