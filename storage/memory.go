package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"deal_hunter/models"
)

// MemoryStore keeps everything in process. It backs -no-store runs and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	seen     map[string]*models.SeenDeal
	searches []models.SearchRun
	saved    map[string]*models.SavedDeal
	logs     []models.HuntLog
	commands []models.Command
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen:  make(map[string]*models.SeenDeal),
		saved: make(map[string]*models.SavedDeal),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) IsSeen(_ context.Context, url string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[url]
	return ok, nil
}

func (s *MemoryStore) MarkSeen(_ context.Context, deal *models.SeenDeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.seen[deal.URL]
	if !ok {
		row := *deal
		if row.FirstSeenAt.IsZero() {
			row.FirstSeenAt = now
		}
		row.LastSeenAt = now
		s.seen[deal.URL] = &row
		return nil
	}

	existing.Source = deal.Source
	existing.Title = deal.Title
	existing.Price = deal.Price
	existing.Profit = deal.Profit
	existing.Margin = deal.Margin
	existing.LastSeenAt = now
	existing.Notified = existing.Notified || deal.Notified
	return nil
}

func (s *MemoryStore) FilterUnseen(_ context.Context, urls []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for _, u := range urls {
		if _, ok := s.seen[u]; ok {
			seen[u] = true
		}
	}
	return unseenOf(dedupe(urls), seen), nil
}

func (s *MemoryStore) GetSeen(_ context.Context, url string) (*models.SeenDeal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.seen[url]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (s *MemoryStore) PendingAlerts(_ context.Context, minProfit, minMargin float64, limit int) ([]models.SeenDeal, error) {
	s.mu.RLock()
	var out []models.SeenDeal
	for _, row := range s.seen {
		if !row.Notified && row.Profit >= minProfit && row.Margin >= minMargin {
			out = append(out, *row)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Margin != out[j].Margin {
			return out[i].Margin > out[j].Margin
		}
		if out[i].Profit != out[j].Profit {
			return out[i].Profit > out[j].Profit
		}
		return out[i].URL < out[j].URL
	})
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) RecentDeals(_ context.Context, limit int) ([]models.SeenDeal, error) {
	s.mu.RLock()
	out := make([]models.SeenDeal, 0, len(s.seen))
	for _, row := range s.seen {
		out = append(out, *row)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeenAt.Equal(out[j].LastSeenAt) {
			return out[i].LastSeenAt.After(out[j].LastSeenAt)
		}
		return out[i].URL < out[j].URL
	})
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) LogSearch(_ context.Context, run *models.SearchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, *run)
	return nil
}

func (s *MemoryStore) RecentSearches(_ context.Context, limit int) ([]models.SearchRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SearchRun, 0, len(s.searches))
	for i := len(s.searches) - 1; i >= 0; i-- {
		out = append(out, s.searches[i])
	}
	return limitSlice(out, limit), nil
}

func (s *MemoryStore) SaveDeal(_ context.Context, deal *models.SavedDeal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := *deal
	if row.SavedAt.IsZero() {
		row.SavedAt = s.now()
	}
	s.saved[deal.URL] = &row
	return nil
}

func (s *MemoryStore) SavedDeals(_ context.Context) ([]models.SavedDeal, error) {
	s.mu.RLock()
	out := make([]models.SavedDeal, 0, len(s.saved))
	for _, row := range s.saved {
		out = append(out, *row)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SavedAt.After(out[j].SavedAt) })
	return out, nil
}

func (s *MemoryStore) RemoveSavedDeal(_ context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.saved[url]
	delete(s.saved, url)
	return ok, nil
}

func (s *MemoryStore) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &models.Stats{
		TotalDealsSeen: len(s.seen),
		TotalSearches:  len(s.searches),
		TotalSaved:     len(s.saved),
	}
	for _, row := range s.seen {
		if row.Notified {
			stats.TotalNotified++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Log(_ context.Context, runID *uuid.UUID, level models.LogLevel, message, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, models.HuntLog{
		ID:        int64(len(s.logs) + 1),
		RunID:     runID,
		Timestamp: s.now(),
		Level:     level,
		Message:   message,
		Source:    source,
	})
	return nil
}

func (s *MemoryStore) EnqueueCommand(_ context.Context, cmd models.CommandType, params *models.CommandParams) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, models.Command{
		ID:        int64(len(s.commands) + 1),
		Command:   cmd,
		Params:    raw,
		CreatedAt: s.now(),
	})
	return nil
}

func (s *MemoryStore) PendingCommands(_ context.Context) ([]models.Command, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Command
	for _, c := range s.commands {
		if c.ProcessedAt == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkCommandProcessed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.commands {
		if s.commands[i].ID == id {
			now := s.now()
			s.commands[i].ProcessedAt = &now
		}
	}
	return nil
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
