package memory

import (
	"context"

	"github.com/hackgods/clinic-scheduling/internal/eventlog"
)

type EventRepository struct {
	s *Store
}

func (r *EventRepository) InsertEvent(ctx context.Context, ev eventlog.Event) error {
	r.s.write(ctx, func() {
		r.s.nextEventID++
		ev.ID = r.s.nextEventID
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = r.s.now()
		}
		r.s.events = append(r.s.events, ev)
	})
	return nil
}

// EventsFor returns the recorded events of one appointment in insert order.
func (r *EventRepository) EventsFor(tenantID string, appointmentID string) []eventlog.Event {
	var out []eventlog.Event
	r.s.read(func() {
		for _, ev := range r.s.events {
			if ev.TenantID == tenantID && ev.AppointmentID != nil && ev.AppointmentID.String() == appointmentID {
				out = append(out, ev)
			}
		}
	})
	return out
}
