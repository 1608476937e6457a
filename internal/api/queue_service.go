package api

import (
	"context"

	"alertcast/internal/queue"
)

// QueueReader abstracts queue persistence interactions needed for API queries.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Entry, error)
	ListHistory(ctx context.Context, page, pageSize int) ([]*queue.Entry, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	GetByID(ctx context.Context, id int64) (*queue.Entry, error)
	CountActive(ctx context.Context) (int, error)
}

// QueueService exposes read-only queue operations returning API DTOs.
type QueueService struct {
	store QueueReader
}

// NewQueueService constructs a QueueService around the provided reader.
func NewQueueService(store QueueReader) *QueueService {
	if store == nil {
		return nil
	}
	return &QueueService{store: store}
}

// List returns queue entries filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]QueueEntry, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entries, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromQueueEntries(entries), nil
}

// History returns entries newest first for the operator history view.
func (s *QueueService) History(ctx context.Context, page, pageSize int) ([]QueueEntry, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entries, err := s.store.ListHistory(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}
	return FromQueueEntries(entries), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	counts, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(counts), nil
}

// Describe fetches a single queue entry.
func (s *QueueService) Describe(ctx context.Context, id int64) (*QueueEntry, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	entry, err := s.store.GetByID(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}
	dto := FromQueueEntry(entry)
	return &dto, nil
}

// Count returns the number of non-completed entries.
func (s *QueueService) Count(ctx context.Context) (int, error) {
	if s == nil || s.store == nil {
		return 0, nil
	}
	return s.store.CountActive(ctx)
}
