package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/pricing"
)

type PriceRepository struct {
	s *Store
}

// current picks the active version with the latest effective date; among
// equal dates the later insert wins. Callers hold s.mu.
func (r *PriceRepository) current(tenantID string) (pricing.PriceVersion, bool) {
	var best pricing.PriceVersion
	found := false
	for _, v := range r.s.prices {
		if v.TenantID != tenantID || !v.IsActive {
			continue
		}
		if !found || !v.EffectiveFrom.Before(best.EffectiveFrom) {
			best, found = v, true
		}
	}
	return best, found
}

func (r *PriceRepository) Current(_ context.Context, tenantID string) (*pricing.PriceVersion, error) {
	var v pricing.PriceVersion
	var ok bool
	r.s.read(func() { v, ok = r.current(tenantID) })
	if !ok {
		return nil, pricing.ErrNoCurrentPrice
	}
	return &v, nil
}

func (r *PriceRepository) Insert(ctx context.Context, v pricing.PriceVersion) (*pricing.PriceVersion, error) {
	r.s.write(ctx, func() {
		v.CreatedAt = r.s.now()
		r.s.prices = append(r.s.prices, v)
	})
	return &v, nil
}

func (r *PriceRepository) InsertIfNoneActive(ctx context.Context, v pricing.PriceVersion) (bool, error) {
	inserted := false
	r.s.write(ctx, func() {
		if _, ok := r.current(v.TenantID); ok {
			return
		}
		v.IsActive = true
		v.CreatedAt = r.s.now()
		r.s.prices = append(r.s.prices, v)
		inserted = true
	})
	return inserted, nil
}

func (r *PriceRepository) List(_ context.Context, tenantID string) ([]pricing.PriceVersion, error) {
	type indexed struct {
		v   pricing.PriceVersion
		pos int
	}
	var items []indexed
	r.s.read(func() {
		for i, v := range r.s.prices {
			if v.TenantID == tenantID {
				items = append(items, indexed{v: v, pos: i})
			}
		}
	})

	sort.Slice(items, func(i, j int) bool {
		if !items[i].v.EffectiveFrom.Equal(items[j].v.EffectiveFrom) {
			return items[i].v.EffectiveFrom.After(items[j].v.EffectiveFrom)
		}
		return items[i].pos > items[j].pos
	})

	result := make([]pricing.PriceVersion, 0, len(items))
	for _, it := range items {
		result = append(result, it.v)
	}
	return result, nil
}

func (r *PriceRepository) SetActive(ctx context.Context, tenantID string, id uuid.UUID, active bool) (*pricing.PriceVersion, error) {
	var updated *pricing.PriceVersion
	r.s.write(ctx, func() {
		for i := range r.s.prices {
			if r.s.prices[i].ID == id && r.s.prices[i].TenantID == tenantID {
				r.s.prices[i].IsActive = active
				v := r.s.prices[i]
				updated = &v
				return
			}
		}
	})
	if updated == nil {
		return nil, pricing.ErrVersionNotFound
	}
	return updated, nil
}
