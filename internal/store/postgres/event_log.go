package postgres

import (
	"context"
	"fmt"
)

type eventLog struct {
	q querier
}

// MarkProcessed records eventID and reports whether it was new. Inside a
// transaction a concurrent insert of the same id blocks until the other
// transaction finishes, so at most one of them sees true.
func (l eventLog) MarkProcessed(ctx context.Context, eventID string, block uint64) (bool, error) {
	const query = `
		INSERT INTO processed_events (event_id, block_number)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING`
	tag, err := l.q.Exec(ctx, query, eventID, int64(block))
	if err != nil {
		return false, fmt.Errorf("postgres: mark event %s processed: %w", eventID, err)
	}
	return tag.RowsAffected() == 1, nil
}
