package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/collection"
)

type CollectionRepository struct {
	s *Store
}

func (r *CollectionRepository) Insert(ctx context.Context, c collection.Collection) (*collection.Collection, error) {
	var err error
	r.s.write(ctx, func() {
		if appt, ok := r.s.appointments[c.AppointmentID]; !ok || appt.TenantID != c.TenantID {
			err = collection.ErrUnknownAppointment
			return
		}
		if _, exists := r.s.collections[c.AppointmentID]; exists {
			err = collection.ErrCollectionExists
			return
		}
		now := r.s.now()
		c.CreatedAt, c.UpdatedAt = now, now
		r.s.collections[c.AppointmentID] = c
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CollectionRepository) GetByAppointment(_ context.Context, tenantID string, appointmentID uuid.UUID) (*collection.Collection, error) {
	var c collection.Collection
	var ok bool
	r.s.read(func() { c, ok = r.s.collections[appointmentID] })
	if !ok || c.TenantID != tenantID {
		return nil, collection.ErrCollectionNotFound
	}
	return &c, nil
}

func (r *CollectionRepository) List(_ context.Context, tenantID string, f collection.Filter) ([]collection.Collection, error) {
	var result []collection.Collection
	r.s.read(func() {
		for _, c := range r.s.collections {
			if c.TenantID != tenantID {
				continue
			}
			appt, ok := r.s.appointments[c.AppointmentID]
			if !ok || appt.TenantID != tenantID {
				continue
			}
			if f.Status != nil && c.Status != *f.Status {
				continue
			}
			if f.DueFrom != nil && c.DueDate.Before(*f.DueFrom) {
				continue
			}
			if f.DueTo != nil && c.DueDate.After(*f.DueTo) {
				continue
			}
			if f.AppointmentFrom != nil && appt.StartTime.Before(*f.AppointmentFrom) {
				continue
			}
			if f.AppointmentTo != nil && appt.StartTime.After(*f.AppointmentTo) {
				continue
			}
			if f.ProfessionalID != nil && appt.ProfessionalID != *f.ProfessionalID {
				continue
			}
			if f.SiteID != nil && appt.SiteID != *f.SiteID {
				continue
			}
			result = append(result, c)
		}
	})

	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueDate.Equal(result[j].DueDate) {
			return result[i].DueDate.After(result[j].DueDate)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	start, end := clampPage(f.Limit, f.Offset, len(result))
	return result[start:end], nil
}

// reconcile flips matching past-due PENDING rows. Callers hold s.mu.
func (r *CollectionRepository) reconcile(match func(collection.Collection) bool, now time.Time) int64 {
	var n int64
	for id, c := range r.s.collections {
		if c.Status != collection.StatusPending || !c.DueDate.Before(now) || !match(c) {
			continue
		}
		c.Status = collection.StatusOverdue
		c.UpdatedAt = r.s.now()
		r.s.collections[id] = c
		n++
	}
	return n
}

func (r *CollectionRepository) ReconcileOverdue(ctx context.Context, tenantID string, now time.Time) (int64, error) {
	var n int64
	r.s.write(ctx, func() {
		n = r.reconcile(func(c collection.Collection) bool { return c.TenantID == tenantID }, now)
	})
	return n, nil
}

func (r *CollectionRepository) ReconcileOne(ctx context.Context, tenantID string, appointmentID uuid.UUID, now time.Time) (int64, error) {
	var n int64
	r.s.write(ctx, func() {
		n = r.reconcile(func(c collection.Collection) bool {
			return c.TenantID == tenantID && c.AppointmentID == appointmentID
		}, now)
	})
	return n, nil
}

func (r *CollectionRepository) TenantsWithOverdue(_ context.Context, now time.Time) ([]string, error) {
	seen := make(map[string]struct{})
	r.s.read(func() {
		for _, c := range r.s.collections {
			if c.Status == collection.StatusPending && c.DueDate.Before(now) {
				seen[c.TenantID] = struct{}{}
			}
		}
	})

	tenants := make([]string, 0, len(seen))
	for id := range seen {
		tenants = append(tenants, id)
	}
	sort.Strings(tenants)
	return tenants, nil
}

// mutate applies fn to the tenant's collection of appointmentID.
func (r *CollectionRepository) mutate(ctx context.Context, tenantID string, appointmentID uuid.UUID, fn func(c *collection.Collection)) (*collection.Collection, error) {
	var out *collection.Collection
	r.s.write(ctx, func() {
		c, ok := r.s.collections[appointmentID]
		if !ok || c.TenantID != tenantID {
			return
		}
		fn(&c)
		c.UpdatedAt = r.s.now()
		r.s.collections[appointmentID] = c
		out = &c
	})
	if out == nil {
		return nil, collection.ErrCollectionNotFound
	}
	return out, nil
}

func (r *CollectionRepository) MarkPaid(ctx context.Context, tenantID string, appointmentID uuid.UUID, paidAt time.Time, notes *string, userID string) (*collection.Collection, error) {
	return r.mutate(ctx, tenantID, appointmentID, func(c *collection.Collection) {
		c.Status = collection.StatusPaid
		at := paidAt
		c.PaidAt = &at
		if notes != nil {
			n := *notes
			c.Notes = &n
		}
		c.UpdatedBy = userID
	})
}

func (r *CollectionRepository) SetDueDate(ctx context.Context, tenantID string, appointmentID uuid.UUID, due time.Time, status collection.Status, userID string) (*collection.Collection, error) {
	return r.mutate(ctx, tenantID, appointmentID, func(c *collection.Collection) {
		c.DueDate = due
		c.Status = status
		c.UpdatedBy = userID
	})
}

func (r *CollectionRepository) StatusTotals(_ context.Context, tenantID string, paidWindow *collection.DateRange) ([]collection.StatusTotal, error) {
	totals := make(map[collection.Status]*collection.StatusTotal)
	r.s.read(func() {
		for _, c := range r.s.collections {
			if c.TenantID != tenantID {
				continue
			}
			if c.Status == collection.StatusPaid && paidWindow != nil {
				if c.PaidAt == nil || c.PaidAt.Before(paidWindow.From) || c.PaidAt.After(paidWindow.To) {
					continue
				}
			}
			t, ok := totals[c.Status]
			if !ok {
				t = &collection.StatusTotal{Status: c.Status}
				totals[c.Status] = t
			}
			t.Count++
			t.Total += c.AmountDue
		}
	})

	result := make([]collection.StatusTotal, 0, len(totals))
	for _, t := range totals {
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Status < result[j].Status })
	return result, nil
}
