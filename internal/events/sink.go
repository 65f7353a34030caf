package events

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/JonMunkholm/schedimport/internal/externalid"
)

// Sink appends the events of a plan as one atomic unit.
type Sink interface {
	Append(ctx context.Context, plan Plan) error
}

// MemorySink keeps appended plans in memory. External ids go through a
// registry so a duplicate mapping fails the append like the database would.
type MemorySink struct {
	mu    sync.Mutex
	plans []Plan
	ids   *externalid.MemoryRegistry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{ids: externalid.NewMemoryRegistry()}
}

func (s *MemorySink) Append(ctx context.Context, plan Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if plan.Empty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ids.Save(ctx, plan.ExternalIDs); err != nil {
		return err
	}
	s.plans = append(s.plans, plan)
	return nil
}

// ExternalIDs returns the mappings saved for a project.
func (s *MemorySink) ExternalIDs(ctx context.Context, projectID uuid.UUID) ([]externalid.Record, error) {
	return s.ids.List(ctx, projectID)
}

// Events returns every appended event in order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, p := range s.plans {
		out = append(out, p.Events...)
	}
	return out
}

// Plans returns the appended plans.
func (s *MemorySink) Plans() []Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Plan(nil), s.plans...)
}
