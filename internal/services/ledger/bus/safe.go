package bus

import (
	"context"
	"fmt"

	"github.com/louisbranch/meeting.ledger/internal/services/ledger/domain/event"
)

// handle runs the subscription handler for rec. Handler errors and panics
// come back tagged with the subscription name and event type.
func (s *Subscription) handle(ctx context.Context, rec event.Record) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("subscription %s: %s handler panicked: %v", s.name, rec.Type, recovered)
		}
	}()

	if err := s.handler(ctx, rec); err != nil {
		return fmt.Errorf("subscription %s: handle %s: %w", s.name, rec.Type, err)
	}
	return nil
}
