package memory

import (
	"context"
	"sync"
	"time"
)

type EventDedupRepository struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewEventDedupRepository() *EventDedupRepository {
	return &EventDedupRepository{entries: make(map[string]time.Time)}
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	expiresAt, ok := r.entries[eventID]
	if !ok {
		return false, nil
	}
	if !now.Before(expiresAt) {
		delete(r.entries, eventID)
		return false, nil
	}
	return true, nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, _ string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[eventID] = expiresAt
	return nil
}
