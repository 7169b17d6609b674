package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLiteRepository implements Repository on the refresh_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert stores rec.
func (r *SQLiteRepository) Insert(ctx context.Context, rec Record) error {
	if rec.EntryID == "" || rec.Coordinator == "" {
		return ErrInvalidRecord
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_history
		 (entry_id, coordinator, trigger_kind, started_at, duration_ms, success, expected, failures, available, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.EntryID, rec.Coordinator, rec.Trigger,
		rec.StartedAt.UnixMilli(), rec.Duration.Milliseconds(),
		boolInt(rec.Success), boolInt(rec.Expected), rec.Failures, boolInt(rec.Available),
		nullableString(rec.Error),
	)
	if err != nil {
		return fmt.Errorf("inserting refresh history: %w", err)
	}
	return nil
}

// List returns matching records, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]Record, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}

	var conditions []string
	var args []any
	if f.EntryID != "" {
		conditions = append(conditions, "entry_id = ?")
		args = append(args, f.EntryID)
	}
	if f.Coordinator != "" {
		conditions = append(conditions, "coordinator = ?")
		args = append(args, f.Coordinator)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, entry_id, coordinator, trigger_kind, started_at, duration_ms,
		        success, expected, failures, available, error
		 FROM refresh_history %s ORDER BY started_at DESC, id DESC LIMIT ?`, where)
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying refresh history: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var startedMs, durationMs int64
		var success, expected, available int
		var errText sql.NullString
		if err := rows.Scan(&rec.ID, &rec.EntryID, &rec.Coordinator, &rec.Trigger,
			&startedMs, &durationMs, &success, &expected, &rec.Failures, &available, &errText); err != nil {
			return nil, fmt.Errorf("scanning refresh history: %w", err)
		}
		rec.StartedAt = time.UnixMilli(startedMs).UTC()
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.Success = success != 0
		rec.Expected = expected != 0
		rec.Available = available != 0
		rec.Error = errText.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating refresh history: %w", err)
	}
	return records, nil
}

// Prune deletes records that started before the cutoff.
func (r *SQLiteRepository) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM refresh_history WHERE started_at < ?", before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning refresh history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning refresh history: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
