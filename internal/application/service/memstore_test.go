package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"marketplace/internal/appers"
	"marketplace/internal/application/entity"
	"marketplace/internal/application/repo"
)

// memStore - repo.Repo и repo.Transactions в памяти. Переходы делает та же state machine
// из entity, что и в postgres-реализации; мьютекс играет роль транзакции.
type memStore struct {
	mu         sync.Mutex
	nextID     int64
	events     map[int64]*entity.LedgerEvent
	trackers   map[string]*entity.SyncTracker
	contents   map[string]entity.OrderItemContent
	trackerMax int
	healthErr  error
}

var (
	_ repo.Repo         = (*memStore)(nil)
	_ repo.Transactions = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		events:     map[int64]*entity.LedgerEvent{},
		trackers:   map[string]*entity.SyncTracker{},
		contents:   map[string]entity.OrderItemContent{},
		trackerMax: entity.DefaultMaxAttempts,
	}
}

func trackerKey(aggregateType, aggregateID string) string {
	return aggregateType + ":" + aggregateID
}

// addOrderItem заводит бизнес-строку order_items с трекером в pending.
func (s *memStore) addOrderItem(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trackers[trackerKey(entity.AggregateOrderItem, id)] = &entity.SyncTracker{
		AggregateType: entity.AggregateOrderItem,
		AggregateID:   id,
		Status:        entity.SyncPending,
	}
}

func (s *memStore) event(id int64) entity.LedgerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

func (s *memStore) tracker(aggregateType, aggregateID string) entity.SyncTracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.trackers[trackerKey(aggregateType, aggregateID)]
}

func (s *memStore) countByStatus(status entity.LedgerStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Status == status {
			n++
		}
	}
	return n
}

func (s *memStore) insertLocked(e *entity.LedgerEvent, now time.Time) {
	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = now
	e.UpdatedAt = now
	cp := *e
	s.events[e.ID] = &cp
}

func (s *memStore) InsertLedgerEvent(_ context.Context, e *entity.LedgerEvent, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(e, now)
	return nil
}

func (s *memStore) SelectEligible(_ context.Context, now time.Time, limit int) ([]entity.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []entity.LedgerEvent
	for _, e := range s.events {
		if e.IsEligible(now) {
			res = append(res, *e)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *memStore) ClaimLedgerEvent(_ context.Context, id int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok || !e.IsEligible(now) {
		return false, nil
	}
	return true, e.Claim(now)
}

func (s *memStore) GetLedgerEvent(_ context.Context, id int64) (*entity.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, appers.ErrLedgerEventNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) ListFailedLedgerEvents(_ context.Context, limit int) ([]entity.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []entity.LedgerEvent
	for _, e := range s.events {
		if e.Status == entity.LedgerFailed {
			res = append(res, *e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *memStore) PurgeCompleted(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, e := range s.events {
		if e.Status == entity.LedgerCompleted && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(s.events, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DistinctOpenEventTypes(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]struct{}{}
	var res []string
	for _, e := range s.events {
		if e.Status != entity.LedgerPending && e.Status != entity.LedgerProcessing {
			continue
		}
		if _, ok := seen[e.EventType]; !ok {
			seen[e.EventType] = struct{}{}
			res = append(res, e.EventType)
		}
	}
	sort.Strings(res)
	return res, nil
}

func (s *memStore) trackerLocked(aggregateType, aggregateID string) (*entity.SyncTracker, error) {
	if !repo.IsTracked(aggregateType) {
		return nil, fmt.Errorf("%s: %w", aggregateType, appers.ErrAggregateNotTracked)
	}
	t, ok := s.trackers[trackerKey(aggregateType, aggregateID)]
	if !ok {
		return nil, appers.ErrAggregateNotFound
	}
	return t, nil
}

func (s *memStore) GetSyncState(_ context.Context, aggregateType, aggregateID string) (*entity.SyncTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.trackerLocked(aggregateType, aggregateID)
	if err != nil {
		return nil, err
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) ListNeedsSync(_ context.Context, aggregateType string, maxAttempts, limit int) ([]entity.SyncTracker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !repo.IsTracked(aggregateType) {
		return nil, appers.ErrAggregateNotTracked
	}
	var res []entity.SyncTracker
	for _, t := range s.trackers {
		if t.AggregateType == aggregateType && t.NeedsSync(maxAttempts) {
			res = append(res, *t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].AggregateID < res[j].AggregateID })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *memStore) HealthCheck(context.Context) error { return s.healthErr }

func (s *memStore) Enqueue(ctx context.Context, e *entity.LedgerEvent, now time.Time) (int64, error) {
	if err := s.InsertLedgerEvent(ctx, e, now); err != nil {
		return 0, err
	}
	return e.ID, nil
}

func (s *memStore) PublishOrderItemContent(_ context.Context, in entity.OrderItemContent, e *entity.LedgerEvent, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.trackerLocked(entity.AggregateOrderItem, in.ID)
	if err != nil {
		return 0, err
	}
	s.contents[in.ID] = in
	t.Reset()
	s.insertLocked(e, now)
	return e.ID, nil
}

func (s *memStore) CompleteEvent(_ context.Context, id int64, externalID string, now time.Time) (*entity.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, appers.ErrLedgerEventNotFound
	}
	if e.Status == entity.LedgerCompleted {
		cp := *e
		return &cp, nil
	}
	if err := e.Complete(now); err != nil {
		return nil, fmt.Errorf("%w: %v", appers.ErrLedgerEventNotClaimed, err)
	}
	if t, err := s.trackerLocked(e.AggregateType, e.AggregateID); err == nil && !s.hasNewerOpenLocked(e) {
		if err = t.MarkSynced(externalID, now); err != nil {
			return nil, err
		}
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) hasNewerOpenLocked(e *entity.LedgerEvent) bool {
	for _, o := range s.events {
		if o.AggregateType == e.AggregateType && o.AggregateID == e.AggregateID && o.ID > e.ID &&
			(o.Status == entity.LedgerPending || o.Status == entity.LedgerProcessing) {
			return true
		}
	}
	return false
}

func (s *memStore) FailEvent(_ context.Context, id int64, cause string, permanent bool, now time.Time) (*entity.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, appers.ErrLedgerEventNotFound
	}
	var err error
	if permanent {
		err = e.FailPermanently(cause, now)
	} else {
		err = e.Fail(cause, now)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appers.ErrLedgerEventNotClaimed, err)
	}
	s.trackFailedLocked(e, cause)
	cp := *e
	return &cp, nil
}

func (s *memStore) trackFailedLocked(e *entity.LedgerEvent, cause string) {
	t, err := s.trackerLocked(e.AggregateType, e.AggregateID)
	if err != nil {
		return
	}
	if e.IsTerminalFailure() {
		t.MarkFailedPermanently(cause, s.trackerMax)
	} else {
		t.MarkFailed(cause, s.trackerMax)
	}
}

func (s *memStore) ResetEvent(_ context.Context, id int64, now time.Time) (*entity.LedgerEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return nil, appers.ErrLedgerEventNotFound
	}
	if err := e.Reset(now); err != nil {
		return nil, err
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) ResetSync(_ context.Context, aggregateType, aggregateID string, now time.Time) (*entity.SyncTracker, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.trackerLocked(aggregateType, aggregateID)
	if err != nil {
		return nil, 0, err
	}
	t.Reset()

	var n int64
	for _, e := range s.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID && e.Status == entity.LedgerFailed {
			if err = e.Reset(now); err != nil {
				return nil, 0, err
			}
			n++
		}
	}
	cp := *t
	return &cp, n, nil
}

func (s *memStore) ReclaimStale(_ context.Context, claimedBefore, now time.Time, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.events {
		if n >= limit {
			break
		}
		if e.Status != entity.LedgerProcessing || e.ClaimedAt == nil || !e.ClaimedAt.Before(claimedBefore) {
			continue
		}
		cause := "processing lease expired"
		if err := e.Fail(cause, now); err != nil {
			return n, err
		}
		s.trackFailedLocked(e, cause)
		n++
	}
	return n, nil
}

// clock - управляемое время для тестов.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
