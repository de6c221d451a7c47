package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/reachability/internal/domain"
	"github.com/hamed0406/reachability/internal/repo"
)

// ResultCache is a fixed-capacity ring of results with FIFO eviction.
type ResultCache struct {
	mu   sync.RWMutex
	buf  []domain.ProbeResult
	head int // index of the oldest entry
	n    int
}

var _ repo.ResultStore = (*ResultCache)(nil)

func NewResultCache(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = repo.DefaultCapacity
	}
	return &ResultCache{buf: make([]domain.ProbeResult, capacity)}
}

func (c *ResultCache) Append(ctx context.Context, r domain.ProbeResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n < len(c.buf) {
		c.buf[(c.head+c.n)%len(c.buf)] = r
		c.n++
		return nil
	}
	c.buf[c.head] = r
	c.head = (c.head + 1) % len(c.buf)
	return nil
}

func (c *ResultCache) Recent(ctx context.Context, n int) ([]domain.ProbeResult, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n <= 0 || n > c.n {
		n = c.n
	}
	out := make([]domain.ProbeResult, 0, n)
	for i := 0; i < n; i++ {
		idx := (c.head + c.n - 1 - i) % len(c.buf)
		out = append(out, c.buf[idx])
	}
	return out, nil
}

func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n
}

func (c *ResultCache) Cap() int { return len(c.buf) }

type AlertStore struct {
	mu   sync.RWMutex
	recs map[string]repo.AlertRecord
}

var _ repo.AlertStore = (*AlertStore)(nil)

func NewAlertStore() *AlertStore {
	return &AlertStore{recs: make(map[string]repo.AlertRecord)}
}

func (s *AlertStore) Get(ctx context.Context, key string) (*repo.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *AlertStore) Set(ctx context.Context, key string, ok bool, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recs[key]
	rec.Key = key
	rec.LastOK = ok
	if !sentAt.IsZero() {
		t := sentAt
		rec.LastSentAt = &t
	}
	s.recs[key] = rec
	return nil
}
