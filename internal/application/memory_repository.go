package application

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu     sync.Mutex
	nextID int64
	apps   map[int64]Application
	codes  map[string]int64
}

// NewMemoryRepository constructs an in-memory repository for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{apps: make(map[int64]Application), codes: make(map[string]int64)}
}

func (r *memoryRepository) Create(_ context.Context, app Application) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.codes[app.PaymentCode]; taken {
		return Application{}, ErrDuplicateCode
	}
	r.nextID++
	app.ID = r.nextID
	app.UpdatedAt = app.CreatedAt
	r.apps[app.ID] = app
	r.codes[app.PaymentCode] = app.ID
	return app, nil
}

func (r *memoryRepository) Get(_ context.Context, id int64) (Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return Application{}, ErrNotFound
	}
	return app, nil
}

func (r *memoryRepository) ListByOwner(_ context.Context, ownerID int64, filter ListFilter) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Application
	for _, app := range r.apps {
		if app.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		out = append(out, app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *memoryRepository) ListByStatus(_ context.Context, statuses []Status, limit, offset int) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []Application
	for _, app := range r.apps {
		if want[app.Status] {
			out = append(out, app)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

func (r *memoryRepository) Expire(_ context.Context, id int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok || !overdue(app, now) {
		return false, nil
	}
	r.expire(app, now)
	return true, nil
}

func (r *memoryRepository) ExpireDue(_ context.Context, now time.Time) ([]Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Application
	for _, app := range r.apps {
		if overdue(app, now) {
			out = append(out, r.expire(app, now))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) Transition(_ context.Context, id int64, from, to Status, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok || app.Status != from {
		return false, nil
	}
	if app.ExpiresAt != nil && app.ExpiresAt.Before(now) {
		return false, nil
	}
	app.Status = to
	app.UpdatedAt = now
	r.apps[id] = app
	return true, nil
}

func (r *memoryRepository) SetRequisites(_ context.Context, id int64, u RequisitesUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok || app.Status != u.From || app.HasRequisites() {
		return false, nil
	}
	sentAt, expiresAt := u.SentAt, u.ExpiresAt
	app.RequisitesText = u.Text
	app.RequisitesSentAt = &sentAt
	app.ExpiresAt = &expiresAt
	app.Status = u.To
	app.UpdatedAt = u.SentAt
	r.apps[id] = app
	return true, nil
}

// expire must be called with r.mu held.
func (r *memoryRepository) expire(app Application, now time.Time) Application {
	app.Status = StatusExpired
	app.UpdatedAt = now
	r.apps[app.ID] = app
	return app
}

func overdue(app Application, now time.Time) bool {
	return !app.Status.Terminal() && app.ExpiresAt != nil && app.ExpiresAt.Before(now)
}

func page(apps []Application, limit, offset int) []Application {
	if offset >= len(apps) {
		return []Application{}
	}
	apps = apps[offset:]
	if limit > 0 && limit < len(apps) {
		apps = apps[:limit]
	}
	return apps
}
