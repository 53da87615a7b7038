package collection_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/collection"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/eventlog"
	"github.com/hackgods/clinic-scheduling/internal/store/memory"
	"github.com/hackgods/clinic-scheduling/pkg/logging"
)

type fixture struct {
	store  *memory.Store
	ledger *collection.Ledger
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.New(),
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	events := eventlog.NewRecorder(f.store.Events(), logging.Nop())
	f.ledger = collection.NewLedger(f.store.Collections(), config.Config{CollectionDueDays: 90}, events, nil, logging.Nop()).
		WithClock(func() time.Time { return f.now })
	return f
}

type seeded struct {
	appointmentID  uuid.UUID
	professionalID uuid.UUID
	siteID         uuid.UUID
}

// open books a bare appointment starting at start and opens its collection.
func (f *fixture) open(t *testing.T, tenantID string, start time.Time, amount int64) seeded {
	t.Helper()
	ctx := context.Background()

	appt, err := f.store.Appointments().Insert(ctx, appointment.Appointment{
		ID:             uuid.New(),
		TenantID:       tenantID,
		PatientID:      uuid.New(),
		ProfessionalID: uuid.New(),
		SiteID:         uuid.New(),
		StartTime:      start,
		EndTime:        start.Add(45 * time.Minute),
		Type:           appointment.TypeRegular,
		Status:         appointment.StatusConfirmed,
		PriceAmount:    &amount,
		CreatedBy:      "booker",
	})
	require.NoError(t, err)

	_, err = f.ledger.Open(ctx, tenantID, appt.ID, amount, appt.StartTime, "booker")
	require.NoError(t, err)

	return seeded{appointmentID: appt.ID, professionalID: appt.ProfessionalID, siteID: appt.SiteID}
}

func TestOpenAnchorsDueDateToStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start := time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC)
	s := f.open(t, "tenant-a", start, 30000)

	c, err := f.store.Collections().GetByAppointment(ctx, "tenant-a", s.appointmentID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 4, 10, 10, 0, 0, 0, time.UTC), c.DueDate)
	assert.Equal(t, collection.StatusPending, c.Status)
	assert.Equal(t, int64(30000), c.AmountDue)
	assert.Equal(t, "booker", c.UpdatedBy)

	_, err = f.ledger.Open(ctx, "tenant-a", s.appointmentID, 30000, start, "booker")
	require.ErrorIs(t, err, collection.ErrCollectionExists)

	_, err = f.ledger.Open(ctx, "tenant-a", uuid.New(), 30000, start, "booker")
	require.ErrorIs(t, err, collection.ErrUnknownAppointment)

	_, err = f.ledger.Open(ctx, "tenant-b", s.appointmentID, 30000, start, "booker")
	require.ErrorIs(t, err, collection.ErrUnknownAppointment)
}

func TestListAndReconcileMarksOverdueOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past := f.open(t, "tenant-a", f.now.Add(-100*24*time.Hour), 5000)
	future := f.open(t, "tenant-a", f.now, 7000)
	other := f.open(t, "tenant-b", f.now.Add(-100*24*time.Hour), 9000)

	items, err := f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	byAppt := map[uuid.UUID]collection.Collection{}
	for _, c := range items {
		byAppt[c.AppointmentID] = c
	}
	assert.Equal(t, collection.StatusOverdue, byAppt[past.appointmentID].Status)
	assert.Equal(t, collection.StatusPending, byAppt[future.appointmentID].Status)

	// persisted, not just reported
	stored, err := f.store.Collections().GetByAppointment(ctx, "tenant-a", past.appointmentID)
	require.NoError(t, err)
	assert.Equal(t, collection.StatusOverdue, stored.Status)

	// another tenant's rows are never touched by tenant-a reads
	untouched, err := f.store.Collections().GetByAppointment(ctx, "tenant-b", other.appointmentID)
	require.NoError(t, err)
	assert.Equal(t, collection.StatusPending, untouched.Status)

	n, err := f.store.Collections().ReconcileOverdue(ctx, "tenant-a", f.now)
	require.NoError(t, err)
	assert.Zero(t, n)

	again, err := f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, items, again)
}

func TestListAndReconcileFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.open(t, "tenant-a", f.now.Add(24*time.Hour), 100)
	f.open(t, "tenant-a", f.now.Add(48*time.Hour), 200)
	f.open(t, "tenant-a", f.now.Add(-200*24*time.Hour), 300)

	items, err := f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{ProfessionalID: &a.professionalID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, a.appointmentID, items[0].AppointmentID)

	items, err = f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{SiteID: &a.siteID})
	require.NoError(t, err)
	require.Len(t, items, 1)

	overdue := collection.StatusOverdue
	items, err = f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{Status: &overdue})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(300), items[0].AmountDue)

	from := f.now
	items, err = f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{AppointmentFrom: &from})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].DueDate.After(items[1].DueDate), "newest due date first")

	items, err = f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)

	bad := collection.Status("LOST")
	_, err = f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{Status: &bad})
	require.ErrorIs(t, err, collection.ErrInvalidStatus)
}

func TestMarkAsPaidIsNotRevertedByReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s := f.open(t, "tenant-a", f.now.Add(-100*24*time.Hour), 5000)

	c, err := f.ledger.Get(ctx, "tenant-a", s.appointmentID)
	require.NoError(t, err)
	require.Equal(t, collection.StatusOverdue, c.Status)

	notes := "cash at front desk"
	paid, err := f.ledger.MarkAsPaid(ctx, "tenant-a", s.appointmentID, time.Time{}, &notes, "admin")
	require.NoError(t, err)
	assert.Equal(t, collection.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.True(t, paid.PaidAt.Equal(f.now))
	assert.Equal(t, "admin", paid.UpdatedBy)

	items, err := f.ledger.ListAndReconcile(ctx, "tenant-a", collection.Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, collection.StatusPaid, items[0].Status)

	// paying again only moves the timestamp and keeps the notes
	later := f.now.Add(time.Hour)
	again, err := f.ledger.MarkAsPaid(ctx, "tenant-a", s.appointmentID, later, nil, "admin")
	require.NoError(t, err)
	assert.True(t, again.PaidAt.Equal(later))
	require.NotNil(t, again.Notes)
	assert.Equal(t, notes, *again.Notes)

	events := f.store.Events().EventsFor("tenant-a", s.appointmentID.String())
	require.Len(t, events, 2)
	assert.Equal(t, eventlog.CollectionPaid, events[0].EventType)
}

func TestMarkAsPaidScopedByTenant(t *testing.T) {
	f := newFixture(t)
	s := f.open(t, "tenant-a", f.now, 5000)

	_, err := f.ledger.MarkAsPaid(context.Background(), "tenant-b", s.appointmentID, f.now, nil, "admin")
	require.ErrorIs(t, err, collection.ErrCollectionNotFound)

	_, err = f.ledger.MarkAsPaid(context.Background(), "tenant-a", s.appointmentID, f.now, nil, "")
	require.ErrorIs(t, err, collection.ErrMissingActor)
}

func TestUpdateDueDateDerivesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.open(t, "tenant-a", f.now, 5000)

	c, err := f.ledger.UpdateDueDate(ctx, "tenant-a", s.appointmentID, f.now.Add(-time.Hour), "admin")
	require.NoError(t, err)
	assert.Equal(t, collection.StatusOverdue, c.Status)

	c, err = f.ledger.UpdateDueDate(ctx, "tenant-a", s.appointmentID, f.now.Add(time.Hour), "admin")
	require.NoError(t, err)
	assert.Equal(t, collection.StatusPending, c.Status)
	assert.True(t, c.DueDate.Equal(f.now.Add(time.Hour)))

	_, err = f.ledger.MarkAsPaid(ctx, "tenant-a", s.appointmentID, f.now, nil, "admin")
	require.NoError(t, err)

	c, err = f.ledger.UpdateDueDate(ctx, "tenant-a", s.appointmentID, f.now.Add(24*time.Hour), "admin")
	require.NoError(t, err)
	assert.Equal(t, collection.StatusPending, c.Status, "rescheduling a paid collection reopens it")

	_, err = f.ledger.UpdateDueDate(ctx, "tenant-a", uuid.New(), f.now, "admin")
	require.ErrorIs(t, err, collection.ErrCollectionNotFound)
}

func TestGetKPIs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.open(t, "tenant-a", f.now, 100)
	f.open(t, "tenant-a", f.now.Add(time.Hour), 100)
	f.open(t, "tenant-a", f.now.Add(-100*24*time.Hour), 50)

	jan := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	paidAt := []time.Time{jan, jan.Add(24 * time.Hour), time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC)}
	for _, at := range paidAt {
		s := f.open(t, "tenant-a", f.now.Add(2*time.Hour), 200)
		_, err := f.ledger.MarkAsPaid(ctx, "tenant-a", s.appointmentID, at, nil, "admin")
		require.NoError(t, err)
	}

	f.open(t, "tenant-b", f.now, 999)

	k, err := f.ledger.GetKPIs(ctx, "tenant-a", &collection.DateRange{
		From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, collection.Bucket{Count: 2, Total: 200}, k.Pending)
	assert.Equal(t, collection.Bucket{Count: 1, Total: 50}, k.Overdue)
	assert.Equal(t, collection.Bucket{Count: 2, Total: 400}, k.Paid)

	all, err := f.ledger.GetKPIs(ctx, "tenant-a", nil)
	require.NoError(t, err)
	assert.Equal(t, collection.Bucket{Count: 3, Total: 600}, all.Paid)

	// bounds are inclusive
	edge, err := f.ledger.GetKPIs(ctx, "tenant-a", &collection.DateRange{From: jan, To: jan})
	require.NoError(t, err)
	assert.Equal(t, int64(1), edge.Paid.Count)

	_, err = f.ledger.GetKPIs(ctx, "tenant-a", &collection.DateRange{From: jan, To: jan.Add(-time.Second)})
	require.ErrorIs(t, err, collection.ErrInvalidRange)
}

func TestSweepOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.open(t, "tenant-a", f.now.Add(-100*24*time.Hour), 10)
	f.open(t, "tenant-a", f.now.Add(-95*24*time.Hour), 10)
	f.open(t, "tenant-b", f.now.Add(-100*24*time.Hour), 10)
	f.open(t, "tenant-c", f.now, 10)

	n, err := f.ledger.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = f.ledger.SweepOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
