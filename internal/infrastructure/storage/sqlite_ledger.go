package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // pure Go driver

	"ContentLocalizer/internal/domain"
	"ContentLocalizer/internal/ports"
)

const ledgerTable = "localization_jobs"

const ledgerSchema = `CREATE TABLE IF NOT EXISTS localization_jobs (
	content_id      TEXT NOT NULL,
	language        TEXT NOT NULL,
	source_language TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	result_url      TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	attempts        INTEGER NOT NULL DEFAULT 0,
	updated_at      TEXT NOT NULL,
	PRIMARY KEY (content_id, language)
)`

// SQLiteLedger records observed job outcomes in a local SQLite file.
// It is an audit trail only and is never consulted for availability.
type SQLiteLedger struct {
	db *sql.DB
}

var _ ports.JobLedger = (*SQLiteLedger)(nil)

// OpenSQLite opens the database in WAL mode with a busy timeout.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, (5 * time.Second).Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}

// NewSQLiteLedger wires a sql.DB and creates the table when missing.
func NewSQLiteLedger(ctx context.Context, db *sql.DB) (*SQLiteLedger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger database is nil")
	}
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &SQLiteLedger{db: db}, nil
}

// Record upserts the latest observation for the (content, language) pair.
func (l *SQLiteLedger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	query, args, err := sq.Insert(ledgerTable).
		Columns("content_id", "language", "source_language", "status", "result_url", "error", "attempts", "updated_at").
		Values(entry.ContentID, entry.Language, entry.SourceLanguage, string(entry.Status),
			entry.ResultURL, entry.Error, entry.Attempts, updatedAt.UTC().Format(time.RFC3339Nano)).
		Suffix(`ON CONFLICT (content_id, language) DO UPDATE SET
			source_language = excluded.source_language,
			status = excluded.status,
			result_url = excluded.result_url,
			error = excluded.error,
			attempts = excluded.attempts,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert ledger entry: %w", err)
	}
	return nil
}

// History lists every recorded language for contentID ordered by language.
func (l *SQLiteLedger) History(ctx context.Context, contentID string) ([]domain.LedgerEntry, error) {
	query, args, err := sq.Select("content_id", "language", "source_language", "status", "result_url", "error", "attempts", "updated_at").
		From(ledgerTable).
		Where(sq.Eq{"content_id": contentID}).
		OrderBy("language").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	var entries []domain.LedgerEntry
	for rows.Next() {
		var (
			entry     domain.LedgerEntry
			status    string
			updatedAt string
		)
		if err := rows.Scan(&entry.ContentID, &entry.Language, &entry.SourceLanguage, &status,
			&entry.ResultURL, &entry.Error, &entry.Attempts, &updatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entry.Status = domain.JobStatus(status)
		if ts, pErr := time.Parse(time.RFC3339Nano, updatedAt); pErr == nil {
			entry.UpdatedAt = ts
		}
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return entries, nil
}
