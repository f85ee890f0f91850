package catalog

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository is an in-memory directory used by tests and local runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	banks     map[int64]Bank
	countries map[int64]Country
}

// NewMemoryRepository builds an empty in-memory directory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{banks: make(map[int64]Bank), countries: make(map[int64]Country)}
}

// PutCountry inserts or replaces a country.
func (r *MemoryRepository) PutCountry(c Country) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countries[c.ID] = c
}

// PutBank inserts or replaces a bank.
func (r *MemoryRepository) PutBank(b Bank) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.banks[b.ID] = b
}

func (r *MemoryRepository) GetBank(_ context.Context, id int64) (Bank, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.banks[id]
	if !ok {
		return Bank{}, ErrBankNotFound
	}
	return b, nil
}

func (r *MemoryRepository) GetCountry(_ context.Context, id int64) (Country, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.countries[id]
	if !ok {
		return Country{}, ErrCountryNotFound
	}
	return c, nil
}

func (r *MemoryRepository) ListCountries(_ context.Context, activeOnly bool) ([]Country, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Country, 0, len(r.countries))
	for _, c := range r.countries {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) ListBanks(_ context.Context, countryID int64, activeOnly bool) ([]Bank, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Bank, 0, len(r.banks))
	for _, b := range r.banks {
		if countryID != 0 && b.CountryID != countryID {
			continue
		}
		if activeOnly && !b.IsActive {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}
