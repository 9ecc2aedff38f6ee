package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/usecase"
)

// OutboxRepository implements usecase.OutboxRepository.
type OutboxRepository struct {
	store *Store
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(store *Store) *OutboxRepository {
	return &OutboxRepository{store: store}
}

// Create stages an event on uow.
func (r *OutboxRepository) Create(ctx context.Context, uow usecase.UnitOfWork, event *domain.OutboxEvent) error {
	tx, err := unitOf(uow)
	if err != nil {
		return err
	}

	stored := *event
	tx.outbox = append(tx.outbox, &stored)

	return nil
}

// GetUnpublished returns the oldest unpublished events.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.store.mu.RLock()
	var events []*domain.OutboxEvent
	for _, ev := range r.store.outbox {
		if !ev.Published {
			c := *ev
			events = append(events, &c)
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(events, func(i, j int) bool {
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})

	return page(events, limit, 0), nil
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if ev, ok := r.store.outbox[id]; ok {
		updated := *ev
		updated.Published = true
		updated.PublishedAt = &publishedAt
		r.store.outbox[id] = &updated
	}

	return nil
}

// DeletePublished removes events published before the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, ev := range r.store.outbox {
		if ev.Published && ev.PublishedAt != nil && ev.PublishedAt.Before(before) {
			delete(r.store.outbox, id)
		}
	}

	return nil
}
