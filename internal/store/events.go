package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/schedimport/internal/events"
)

// StoredEvent is an event read back from the log with its raw payload.
type StoredEvent struct {
	events.Event
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Append writes every event and external id of plan and moves the project
// heads forward in one transaction. A version that was already written by a
// concurrent transaction fails with ErrConflict and nothing is kept.
func (s *Store) Append(ctx context.Context, plan events.Plan) error {
	if plan.Empty() {
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertEvents(ctx, tx, plan.Events); err != nil {
			return err
		}
		if err := saveExternalIDs(ctx, tx, plan.ExternalIDs); err != nil {
			return err
		}
		return updateProject(ctx, tx, plan.Project)
	})
}

func insertEvents(ctx context.Context, tx pgx.Tx, evs []events.Event) error {
	batch := &pgx.Batch{}
	for _, e := range evs {
		var payload []byte
		if e.Payload != nil {
			b, err := json.Marshal(e.Payload)
			if err != nil {
				return fmt.Errorf("encode %s %s payload: %w", e.AggregateType, e.Kind, err)
			}
			payload = b
		}
		batch.Queue(`
			INSERT INTO domain_events
				(transaction_id, project_id, aggregate_type, aggregate_id, aggregate_version, kind, payload)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			e.TransactionID, e.ProjectID, string(e.AggregateType), e.AggregateID, e.Version, string(e.Kind), payload)
	}

	br := tx.SendBatch(ctx, batch)
	for i := range evs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if uniqueViolation(err) {
				e := evs[i]
				return fmt.Errorf("%s %s v%d: %w", e.AggregateType, e.AggregateID, e.Version, ErrConflict)
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}
	}
	return br.Close()
}

// Events returns the event log of a project in append order.
func (s *Store) Events(ctx context.Context, projectID uuid.UUID) ([]StoredEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT transaction_id, project_id, aggregate_type, aggregate_id, aggregate_version, kind, payload, created_at
		FROM domain_events
		WHERE project_id = $1
		ORDER BY id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			e             StoredEvent
			aggregateType string
			kind          string
			payload       []byte
		)
		if err := rows.Scan(&e.TransactionID, &e.ProjectID, &aggregateType, &e.AggregateID,
			&e.Version, &kind, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.AggregateType = events.AggregateType(aggregateType)
		e.Kind = events.Kind(kind)
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ events.Sink = (*Store)(nil)
