package consumer

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PersistenceHandler stores consumed events in the workout event log table.
type PersistenceHandler struct {
	pool *pgxpool.Pool
}

// NewPersistenceHandler constructs a handler backed by the given connection pool.
func NewPersistenceHandler(pool *pgxpool.Pool) *PersistenceHandler {
	return &PersistenceHandler{pool: pool}
}

// Handle inserts the event into workout_event_log, keyed by topic/partition/offset
// so redelivered messages are ignored.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	const query = `
		INSERT INTO workout_event_log (topic, partition, kafka_offset, event_type, schema_subject, schema_id, payload, event_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (topic, partition, kafka_offset) DO NOTHING`

	if _, err := h.pool.Exec(ctx, query,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.EventType,
		msg.SchemaSubject,
		msg.SchemaID,
		msg.Payload,
		msg.Timestamp,
	); err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
