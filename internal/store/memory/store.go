package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/internal/eventlog"
	"github.com/hackgods/clinic-scheduling/internal/pricing"
)

// Store keeps every table in process. It mirrors the postgres schema
// constraints (unique collection per appointment, no overlapping
// non-cancelled appointments per professional or patient) so services behave
// the same on either backend.
type Store struct {
	mu sync.RWMutex
	// txMu serializes writers; InTx holds it for the whole transaction.
	txMu sync.Mutex

	// Price storage, append order
	prices []pricing.PriceVersion

	// Appointment storage
	appointments map[uuid.UUID]appointment.Appointment

	// Collection storage keyed by appointment id
	collections map[uuid.UUID]collection.Collection

	events      []eventlog.Event
	nextEventID int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		appointments: make(map[uuid.UUID]appointment.Appointment),
		collections:  make(map[uuid.UUID]collection.Collection),
		now:          time.Now,
	}
}

func (s *Store) Prices() *PriceRepository             { return &PriceRepository{s: s} }
func (s *Store) Appointments() *AppointmentRepository { return &AppointmentRepository{s: s} }
func (s *Store) Collections() *CollectionRepository   { return &CollectionRepository{s: s} }
func (s *Store) Events() *EventRepository             { return &EventRepository{s: s} }

type txKey struct{}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

type snapshot struct {
	prices       []pricing.PriceVersion
	appointments map[uuid.UUID]appointment.Appointment
	collections  map[uuid.UUID]collection.Collection
	events       []eventlog.Event
	nextEventID  int64
}

// InTx runs fn with exclusive write access and restores every table when fn
// fails. Nested calls join the outer transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := snapshot{
		prices:       append([]pricing.PriceVersion(nil), s.prices...),
		appointments: maps.Clone(s.appointments),
		collections:  maps.Clone(s.collections),
		events:       append([]eventlog.Event(nil), s.events...),
		nextEventID:  s.nextEventID,
	}
	s.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.prices = snap.prices
		s.appointments = snap.appointments
		s.collections = snap.collections
		s.events = snap.events
		s.nextEventID = snap.nextEventID
		s.mu.Unlock()
		return err
	}
	return nil
}

// write runs fn under the data lock, also taking the writer lock when ctx is
// not inside InTx.
func (s *Store) write(ctx context.Context, fn func()) {
	if !inTx(ctx) {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Store) read(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

func clampPage(limit, offset, n int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	end := n
	if limit > 0 && offset+limit < n {
		end = offset + limit
	}
	return offset, end
}
