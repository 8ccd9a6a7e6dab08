package memory

import (
	"context"
	"sync"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
)

// ApplicationRepository keeps applications in process memory. All checks and
// writes happen under one mutex, which gives the same uniqueness and
// compare-and-swap guarantees as the durable backends.
type ApplicationRepository struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]domain.Application
	byIDNumber map[string]int64
	order      []int64
}

func NewApplicationRepository() *ApplicationRepository {
	return &ApplicationRepository{
		byID:       map[int64]domain.Application{},
		byIDNumber: map[string]int64{},
	}
}

func (r *ApplicationRepository) Create(_ context.Context, app domain.Application) (domain.Application, error) {
	if _, err := domain.ParseStatus(string(app.Status)); err != nil {
		return domain.Application{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byIDNumber[app.IDNumber]; exists {
		return domain.Application{}, domain.ErrDuplicateIdentifier
	}
	r.nextID++
	app.ID = r.nextID
	r.byID[app.ID] = app
	r.byIDNumber[app.IDNumber] = app.ID
	r.order = append(r.order, app.ID)
	return app, nil
}

func (r *ApplicationRepository) GetByID(_ context.Context, id int64) (domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.byID[id]
	if !ok {
		return domain.Application{}, domain.ErrNotFound
	}
	return app, nil
}

func (r *ApplicationRepository) GetByIDNumber(_ context.Context, idNumber string) (domain.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIDNumber[idNumber]
	if !ok {
		return domain.Application{}, domain.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *ApplicationRepository) List(_ context.Context, filter domain.ListFilter) ([]domain.Application, error) {
	if filter.Limit <= 0 {
		return []domain.Application{}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Application, 0, min(filter.Limit, len(r.order)))
	skipped := 0
	for _, id := range r.order {
		app := r.byID[id]
		if filter.Status != nil && app.Status != *filter.Status {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if len(out) == filter.Limit {
			break
		}
		out = append(out, app)
	}
	return out, nil
}

func (r *ApplicationRepository) UpdateStatus(_ context.Context, update domain.StatusUpdate) (domain.Application, error) {
	if _, err := domain.ParseStatus(string(update.To)); err != nil {
		return domain.Application{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.byID[update.ID]
	if !ok {
		return domain.Application{}, domain.ErrNotFound
	}
	if app.Status != update.From {
		return domain.Application{}, domain.ErrInvalidState
	}
	updatedAt := update.UpdatedAt
	app.Status = update.To
	app.RejectionReason = nil
	if update.To == domain.StatusRejected && update.RejectionReason != nil {
		reason := *update.RejectionReason
		app.RejectionReason = &reason
	}
	app.UpdatedAt = &updatedAt
	r.byID[app.ID] = app
	return app, nil
}

func (r *ApplicationRepository) CountByStatus(_ context.Context) (domain.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats domain.Stats
	for _, app := range r.byID {
		switch app.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusApproved:
			stats.Approved++
		case domain.StatusRejected:
			stats.Rejected++
		}
	}
	stats.Total = stats.Pending + stats.Approved + stats.Rejected
	return stats, nil
}

func (r *ApplicationRepository) Ping(context.Context) error { return nil }
