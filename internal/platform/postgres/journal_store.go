package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskmill/taskmill/internal/journal"
	"github.com/taskmill/taskmill/internal/platform/logger"
)

// PostgresJournal implements the journal.Journal interface using PostgreSQL.
type PostgresJournal struct {
	db     DBTX
	closer func() error
}

var _ journal.Journal = (*PostgresJournal)(nil)

// NewPostgresJournal creates a journal over the given database handle.
func NewPostgresJournal(db DBTX) *PostgresJournal {
	return &PostgresJournal{db: db}
}

// NewPostgresJournalWithCloser creates a journal that also owns the
// connection lifetime; Close invokes the closer.
func NewPostgresJournalWithCloser(db DBTX, closer func() error) *PostgresJournal {
	return &PostgresJournal{db: db, closer: closer}
}

// Append writes one settlement record.
func (j *PostgresJournal) Append(ctx context.Context, rec journal.Record) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO task_journal
			(task_id, task_type, priority, attempts, outcome, error_message, submitted_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := j.db.ExecContext(ctx, query,
		rec.TaskID,
		rec.TaskType,
		rec.Priority,
		rec.Attempts,
		string(rec.Outcome),
		nullIfEmpty(rec.Error),
		rec.SubmittedAt.UTC(),
		rec.SettledAt.UTC(),
	)
	if err != nil {
		log.Error("failed to append settlement record",
			"task_id", rec.TaskID,
			"task_type", rec.TaskType,
			"error", err)
		return fmt.Errorf("failed to append settlement record: %w", err)
	}

	return nil
}

// Recent returns the most recent settlement records, newest first.
func (j *PostgresJournal) Recent(ctx context.Context, limit int) ([]journal.Record, error) {
	log := logger.FromContext(ctx)

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT task_id, task_type, priority, attempts, outcome, error_message, submitted_at, settled_at
		FROM task_journal
		ORDER BY settled_at DESC, id DESC
		LIMIT $1
	`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		log.Error("failed to query settlement records", "error", err)
		return nil, fmt.Errorf("failed to query settlement records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []journal.Record
	for rows.Next() {
		var rec journal.Record
		var outcome string
		var errMsg sql.NullString

		if err := rows.Scan(
			&rec.TaskID,
			&rec.TaskType,
			&rec.Priority,
			&rec.Attempts,
			&outcome,
			&errMsg,
			&rec.SubmittedAt,
			&rec.SettledAt,
		); err != nil {
			log.Error("failed to scan settlement record", "error", err)
			return nil, fmt.Errorf("failed to scan settlement record: %w", err)
		}

		rec.Outcome = journal.Outcome(outcome)
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating settlement records", "error", err)
		return nil, fmt.Errorf("error iterating settlement records: %w", err)
	}

	return records, nil
}

// Close releases the underlying connection when the journal owns it.
func (j *PostgresJournal) Close() error {
	if j.closer != nil {
		return j.closer()
	}
	return nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
