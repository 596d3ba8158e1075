package journal

import "context"

// noopJournal discards records. Used when no database is configured.
type noopJournal struct{}

// NewNoop returns a Journal that discards every record.
func NewNoop() Journal {
	return noopJournal{}
}

func (noopJournal) Append(ctx context.Context, rec Record) error { return nil }

func (noopJournal) Recent(ctx context.Context, limit int) ([]Record, error) {
	return nil, nil
}

func (noopJournal) Close() error { return nil }
