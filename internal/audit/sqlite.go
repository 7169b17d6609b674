package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLiteRepository stores events in the audit_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts ev. ID, Outcome and CreatedAt are filled in when empty.
func (r *SQLiteRepository) Create(ctx context.Context, ev *Event) error {
	if ev.Action == "" || ev.EntryID == "" || ev.Source == "" {
		return ErrInvalidEvent
	}
	if ev.ID == "" {
		ev.ID = "aud-" + uuid.NewString()[:8]
	}
	if ev.Outcome == "" {
		ev.Outcome = OutcomeAccepted
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var details any
	if len(ev.Details) > 0 {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("marshalling audit details: %w", err)
		}
		details = string(b)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, entry_id, coordinator, subject, source, outcome, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Action, ev.EntryID,
		nullableString(ev.Coordinator), nullableString(ev.Subject),
		ev.Source, ev.Outcome, details,
		ev.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// List returns one page of matching events, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) (*Page, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var conditions []string
	var args []any
	if f.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, f.Action)
	}
	if f.EntryID != "" {
		conditions = append(conditions, "entry_id = ?")
		args = append(args, f.EntryID)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM audit_log " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting audit events: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, action, entry_id, coordinator, subject, source, outcome, details, created_at
		 FROM audit_log %s ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, where)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var ev Event
		var coord, subject, details sql.NullString
		var createdMs int64
		if err := rows.Scan(&ev.ID, &ev.Action, &ev.EntryID, &coord, &subject,
			&ev.Source, &ev.Outcome, &details, &createdMs); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		ev.Coordinator = coord.String
		ev.Subject = subject.String
		ev.CreatedAt = time.UnixMilli(createdMs).UTC()
		if details.Valid && details.String != "" {
			var m map[string]any
			if json.Unmarshal([]byte(details.String), &m) == nil {
				ev.Details = m
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit events: %w", err)
	}

	return &Page{Events: events, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
