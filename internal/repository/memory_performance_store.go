package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"BtcTrader/internal/domain/models"
)

type perfKey struct {
	userID string
	period models.PeriodType
	date   int64
}

// MemoryPerformanceStore keeps snapshots in process. Used when ClickHouse is disabled and in tests.
type MemoryPerformanceStore struct {
	mu   sync.RWMutex
	rows map[perfKey]models.PerformanceSnapshot
}

func NewMemoryPerformanceStore() *MemoryPerformanceStore {
	return &MemoryPerformanceStore{rows: make(map[perfKey]models.PerformanceSnapshot)}
}

func (s *MemoryPerformanceStore) Upsert(_ context.Context, snap models.PerformanceSnapshot) error {
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	s.mu.Lock()
	s.rows[perfKey{snap.UserID, snap.PeriodType, snap.PeriodDate.Unix()}] = snap
	s.mu.Unlock()
	return nil
}

// List returns the newest limit snapshots oldest first. A non-positive limit yields nothing.
func (s *MemoryPerformanceStore) List(_ context.Context, userID string, period models.PeriodType, limit int) ([]models.PerformanceSnapshot, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	out := make([]models.PerformanceSnapshot, 0, 8)
	for k, v := range s.rows {
		if k.userID == userID && k.period == period {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDate.Before(out[j].PeriodDate) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}
