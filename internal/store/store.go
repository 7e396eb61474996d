// Package store persists operation and notification history to SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/battlewithbytes/lxd-console/internal/notify"
)

// Operation history statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// timeFormat has fixed-width fractions so stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// OperationRecord is one submitted daemon operation.
type OperationRecord struct {
	ID          string     `json:"id"`
	Action      string     `json:"action"`
	Project     string     `json:"project"`
	Resource    string     `json:"resource"`
	Status      string     `json:"status"`
	Message     string     `json:"message,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NotificationRecord is one banner that was shown.
type NotificationRecord struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Title     string          `json:"title,omitempty"`
	Message   string          `json:"message"`
	Detail    string          `json:"detail,omitempty"`
	Actions   []notify.Action `json:"actions,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store persists history to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at the given path.
func NewStore(dbPath string) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(4)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS operations (
			id           TEXT PRIMARY KEY,
			action       TEXT NOT NULL,
			project      TEXT NOT NULL DEFAULT '',
			resource     TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			message      TEXT NOT NULL DEFAULT '',
			created_at   TEXT NOT NULL,
			updated_at   TEXT NOT NULL,
			completed_at TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_operations_created_at ON operations(created_at);

		CREATE TABLE IF NOT EXISTS notifications (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			id           TEXT NOT NULL UNIQUE,
			kind         TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			message      TEXT NOT NULL DEFAULT '',
			detail       TEXT NOT NULL DEFAULT '',
			actions_json TEXT NOT NULL DEFAULT '[]',
			created_at   TEXT NOT NULL
		);
	`)
	return err
}

// CreateOperation inserts a pending operation. Submitting the same daemon
// id again replaces the earlier row.
func (s *Store) CreateOperation(rec *OperationRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = rec.CreatedAt
	if rec.Status == "" {
		rec.Status = StatusPending
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO operations (id, action, project, resource, status, message, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '')`,
		rec.ID, rec.Action, rec.Project, rec.Resource, rec.Status, rec.Message,
		rec.CreatedAt.UTC().Format(timeFormat), rec.UpdatedAt.UTC().Format(timeFormat),
	)
	return err
}

// CompleteOperation marks an operation finished with status and message.
func (s *Store) CompleteOperation(id, status, message string) error {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.Exec(`UPDATE operations SET status=?, message=?, updated_at=?, completed_at=? WHERE id=?`,
		status, message, now, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	return nil
}

const operationColumns = `id, action, project, resource, status, message, created_at, updated_at, completed_at`

// GetOperation retrieves an operation by id.
func (s *Store) GetOperation(id string) (*OperationRecord, error) {
	row := s.db.QueryRow(`SELECT `+operationColumns+` FROM operations WHERE id=?`, id)
	rec, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListOperations returns operations, most recent first. limit <= 0 returns all.
func (s *Store) ListOperations(limit int) ([]*OperationRecord, error) {
	query := `SELECT ` + operationColumns + ` FROM operations ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*OperationRecord
	for rows.Next() {
		rec, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, rec)
	}
	return ops, rows.Err()
}

// RecoverPendingOperations fails every operation still pending. Pending
// callbacks live in memory and do not survive a restart.
func (s *Store) RecoverPendingOperations() (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.Exec(`UPDATE operations SET status=?, message='interrupted by service restart', updated_at=?, completed_at=? WHERE status=?`,
		StatusFailure, now, now, StatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearCompletedOperations deletes finished operations and returns how many were removed.
func (s *Store) ClearCompletedOperations() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM operations WHERE status != ?`, StatusPending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row scanner) (*OperationRecord, error) {
	var rec OperationRecord
	var createdAt, updatedAt, completedAt string
	err := row.Scan(&rec.ID, &rec.Action, &rec.Project, &rec.Resource, &rec.Status, &rec.Message,
		&createdAt, &updatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	rec.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	if completedAt != "" {
		t, _ := time.Parse(timeFormat, completedAt)
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// RecordNotification implements notify.Recorder.
func (s *Store) RecordNotification(n notify.Notification) error {
	actionsJSON := []byte("[]")
	if len(n.Actions) > 0 {
		var err error
		if actionsJSON, err = json.Marshal(n.Actions); err != nil {
			return fmt.Errorf("encoding actions: %w", err)
		}
	}
	_, err := s.db.Exec(`
		INSERT INTO notifications (id, kind, title, message, detail, actions_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, string(n.Kind), n.Title, n.Message, n.Detail, string(actionsJSON),
		n.CreatedAt.UTC().Format(timeFormat),
	)
	return err
}

// ListNotifications returns recorded banners, most recent first. limit <= 0 returns all.
func (s *Store) ListNotifications(limit int) ([]*NotificationRecord, error) {
	query := `SELECT id, kind, title, message, detail, actions_json, created_at FROM notifications ORDER BY seq DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*NotificationRecord
	for rows.Next() {
		var rec NotificationRecord
		var actionsJSON, createdAt string
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Title, &rec.Message, &rec.Detail, &actionsJSON, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(actionsJSON), &rec.Actions)
		rec.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		notes = append(notes, &rec)
	}
	return notes, rows.Err()
}
