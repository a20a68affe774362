// Package audit persists the device command audit trail in SQLite.
//
// Every dispatch attempt made through the command package is recorded,
// including commands rejected before publishing. The table is created by
// the command_audit migration.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-mqtt-mcp/internal/command"
)

// Page size bounds for List.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// timeLayout is fixed width so created_at sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// CommandLog is one recorded dispatch attempt.
type CommandLog struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	Value     any       `json:"value,omitempty"`
	Topic     string    `json:"topic"`
	Payload   string    `json:"payload,omitempty"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which command logs to return.
type Filter struct {
	Command string    // optional: set_power, set_temperature
	Outcome string    // optional: published, rejected, failed
	Since   time.Time // optional: only entries at or after this instant
	Limit   int       // default 50, max 200
	Offset  int       // pagination offset
}

// ListResult contains the paginated command log results.
type ListResult struct {
	Logs   []CommandLog `json:"logs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// Repository defines the interface for command audit operations.
// It satisfies command.Auditor.
type Repository interface {
	RecordCommand(ctx context.Context, entry command.Entry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores command logs in SQLite.
//
// Thread Safety: safe for concurrent use; database/sql serialises access.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new command audit repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// RecordCommand inserts one dispatch attempt. A missing ID or timestamp is generated.
func (r *SQLiteRepository) RecordCommand(ctx context.Context, entry command.Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.At.IsZero() {
		entry.At = r.now()
	}

	var valueJSON *string
	if entry.Value != nil {
		b, err := json.Marshal(entry.Value)
		if err != nil {
			return fmt.Errorf("marshalling command value: %w", err)
		}
		s := string(b)
		valueJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_audit (id, command, value, topic, payload, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Command, valueJSON, entry.Topic,
		nullableString(entry.Payload), entry.Outcome, nullableString(entry.Error),
		entry.At.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}
	return nil
}

// nullableString maps empty strings to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns command logs matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	where, args := filter.where()

	countQuery := "SELECT COUNT(*) FROM command_audit" + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command logs: %w", err)
	}

	query := "SELECT id, command, value, topic, payload, outcome, error, created_at FROM command_audit" +
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command logs: %w", err)
	}
	defer rows.Close()

	logs := []CommandLog{}
	for rows.Next() {
		log, err := scanCommandLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command logs: %w", err)
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// where builds a parameterised WHERE clause; no filter text reaches the SQL string.
func (f Filter) where() (string, []any) {
	var conditions []string
	var args []any

	if f.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, f.Command)
	}
	if f.Outcome != "" {
		conditions = append(conditions, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func scanCommandLog(rows *sql.Rows) (CommandLog, error) {
	var log CommandLog
	var value, payload, errText sql.NullString
	var createdAt string

	if err := rows.Scan(&log.ID, &log.Command, &value, &log.Topic,
		&payload, &log.Outcome, &errText, &createdAt); err != nil {
		return CommandLog{}, fmt.Errorf("scanning command log: %w", err)
	}

	if value.Valid && value.String != "" {
		var v any
		if json.Unmarshal([]byte(value.String), &v) == nil {
			log.Value = v
		}
	}
	log.Payload = payload.String
	log.Error = errText.String

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return CommandLog{}, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
	}
	log.CreatedAt = t
	return log, nil
}
