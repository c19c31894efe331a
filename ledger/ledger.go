// Package ledger records which definition files have been applied and
// keeps an activity log of migration runs.
package ledger

import (
	"context"
	"errors"
	"time"
)

// Record statuses.
const (
	StatusCreated = "created"
	StatusExists  = "exists"
	StatusFailed  = "failed"
)

// Log levels.
const (
	LevelInfo    = "INFO"
	LevelWarn    = "WARN"
	LevelError   = "ERROR"
	LevelSuccess = "SUCCESS"
)

// DefaultCollection holds the applied records; LogsCollection the activity log.
const (
	DefaultCollection = "schema_migrations"
	LogsCollection    = "migration_logs"
)

var ErrNotFound = errors.New("ledger record not found")

// Record is the outcome of applying one definition file.
type Record struct {
	ID         string        `json:"id"`
	File       string        `json:"file"`
	Collection string        `json:"collection"`
	Namespace  string        `json:"namespace,omitempty"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Checksum   string        `json:"checksum,omitempty"`
	ExecutedBy string        `json:"executed_by,omitempty"`
	RunID      string        `json:"run_id,omitempty"`
	AppliedAt  time.Time     `json:"applied_at"`
	Duration   time.Duration `json:"duration"`
}

// Applied reports whether the record leaves the collection in place.
func (r Record) Applied() bool {
	return r.Status == StatusCreated || r.Status == StatusExists
}

// Entry is one line of the activity log.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	File      string    `json:"file,omitempty"`
	Details   string    `json:"details,omitempty"`
	User      string    `json:"user,omitempty"`
}

// Filter narrows History.
type Filter struct {
	Limit      int    // 0 = all
	Collection string // case-insensitive substring match
	Status     string
}

// Ledger persists migration records. Records are keyed by File; recording
// a file again replaces its record.
type Ledger interface {
	Ensure(ctx context.Context) error
	Applied(ctx context.Context) (map[string]Record, error)
	Record(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Remove(ctx context.Context, file string) error
	History(ctx context.Context, filter Filter) ([]Record, error)
	Count(ctx context.Context) (int, error)
	Log(ctx context.Context, entry Entry) error
	Logs(ctx context.Context, limit int) ([]Entry, error)
	Close(ctx context.Context) error
}

// Reserved lists the collections a ledger named collection occupies.
func Reserved(collection string) []string {
	if collection == "" {
		collection = DefaultCollection
	}
	return []string{collection, LogsCollection}
}
