package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind names an auth outcome worth keeping
type EventKind string

const (
	EventLoginOK          EventKind = "login_ok"
	EventLoginFailed      EventKind = "login_failed"
	EventOTPSent          EventKind = "otp_sent"
	EventOTPVerified      EventKind = "otp_verified"
	EventOTPRejected      EventKind = "otp_rejected"
	EventSessionRefreshed EventKind = "session_refreshed"
	EventRefreshRejected  EventKind = "refresh_rejected"
	EventLogout           EventKind = "logout"
)

// Event is one audit row
type Event struct {
	ID        string
	Kind      EventKind
	RemoteIP  string
	RequestID string
	Detail    string
	CreatedAt time.Time
}

// Record inserts e, filling ID and CreatedAt when empty
func (db *DB) Record(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := db.ExecContext(ctx, db.rebind(`
		INSERT INTO audit_events (id, kind, remote_ip, request_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, string(e.Kind), e.RemoteIP, e.RequestID, e.Detail, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty kind matches all.
func (db *DB) Recent(ctx context.Context, kind EventKind, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, kind, remote_ip, request_id, detail, created_at FROM audit_events`
	args := []interface{}{}
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			k    string
			msec int64
		)
		if err := rows.Scan(&e.ID, &k, &e.RemoteIP, &e.RequestID, &e.Detail, &msec); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.Kind = EventKind(k)
		e.CreatedAt = time.UnixMilli(msec)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than before and returns how many were removed
func (db *DB) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, db.rebind(`DELETE FROM audit_events WHERE created_at < ?`), before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit events: %w", err)
	}
	return res.RowsAffected()
}
