package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps the ledger in a relational database, for teams that
// already track their SQL migrations there.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Ledger = (*Postgres)(nil)

// NewPostgres opens a pool against url and pings it.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse ledger url: %v", err)
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create ledger pool: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ledger database: %v", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Ensure(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		id SERIAL PRIMARY KEY,
		filename TEXT NOT NULL UNIQUE,
		collection TEXT NOT NULL,
		namespace TEXT NOT NULL DEFAULT '',
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		execution_ms BIGINT NOT NULL DEFAULT 0,
		executed_by TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'created',
		error_message TEXT NOT NULL DEFAULT '',
		checksum TEXT NOT NULL DEFAULT '',
		run_id TEXT NOT NULL DEFAULT ''
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %v", err)
	}

	_, err = p.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS migration_logs (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		user_name TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '',
		migration_name TEXT NOT NULL DEFAULT ''
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create migration_logs table: %v", err)
	}
	return nil
}

const recordColumns = `id, filename, collection, namespace, applied_at, execution_ms,
	executed_by, status, error_message, checksum, run_id`

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec Record
		id  int
		ms  int64
	)
	err := row.Scan(&id, &rec.File, &rec.Collection, &rec.Namespace, &rec.AppliedAt, &ms,
		&rec.ExecutedBy, &rec.Status, &rec.Error, &rec.Checksum, &rec.RunID)
	if err != nil {
		return Record{}, err
	}
	rec.ID = strconv.Itoa(id)
	rec.Duration = time.Duration(ms) * time.Millisecond
	return rec, nil
}

func (p *Postgres) Applied(ctx context.Context) (map[string]Record, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+recordColumns+` FROM schema_migrations
		WHERE status IN ('created', 'exists');`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %v", err)
	}
	defer rows.Close()

	applied := map[string]Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan migration record: %v", err)
		}
		applied[rec.File] = rec
	}
	return applied, rows.Err()
}

func (p *Postgres) Record(ctx context.Context, rec Record) error {
	appliedAt := rec.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO schema_migrations (filename, collection, namespace, applied_at, execution_ms,
			executed_by, status, error_message, checksum, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (filename) DO UPDATE SET
			collection = EXCLUDED.collection,
			namespace = EXCLUDED.namespace,
			applied_at = EXCLUDED.applied_at,
			execution_ms = EXCLUDED.execution_ms,
			executed_by = EXCLUDED.executed_by,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			checksum = EXCLUDED.checksum,
			run_id = EXCLUDED.run_id
	`, rec.File, rec.Collection, rec.Namespace, appliedAt, rec.Duration.Milliseconds(),
		rec.ExecutedBy, rec.Status, rec.Error, rec.Checksum, rec.RunID)
	if err != nil {
		return fmt.Errorf("recording migration %s: %v", rec.File, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Record, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	rec, err := scanRecord(p.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM schema_migrations WHERE id = $1`, n))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("query migration %s: %v", id, err)
	}
	return rec, nil
}

func (p *Postgres) Remove(ctx context.Context, file string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM schema_migrations WHERE filename = $1;`, file)
	if err != nil {
		return fmt.Errorf("removing migration record for %s: %v", file, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) History(ctx context.Context, filter Filter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM schema_migrations WHERE true`

	var args []any
	if filter.Collection != "" {
		args = append(args, "%"+filter.Collection+"%")
		query += fmt.Sprintf(" AND collection ILIKE $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY applied_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query migration history: %v", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan migration record: %v", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (p *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM schema_migrations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count migrations: %v", err)
	}
	return n, nil
}

func (p *Postgres) Log(ctx context.Context, entry Entry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO migration_logs (timestamp, level, message, user_name, migration_name, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ts, entry.Level, entry.Message, entry.User, entry.File, entry.Details)
	return err
}

func (p *Postgres) Logs(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT timestamp, level, message, user_name, details, migration_name
		FROM migration_logs
		ORDER BY timestamp DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query migration logs: %v", err)
	}
	defer rows.Close()

	var logs []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Timestamp, &e.Level, &e.Message, &e.User, &e.Details, &e.File); err != nil {
			return nil, fmt.Errorf("scan migration log: %v", err)
		}
		logs = append(logs, e)
	}
	return logs, rows.Err()
}

func (p *Postgres) Close(ctx context.Context) error {
	p.pool.Close()
	return nil
}
