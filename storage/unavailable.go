package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"deal_hunter/models"
)

// UnavailableStore stands in when the real store cannot be opened.
// Every call fails with models.ErrStoreUnavailable so callers run in
// degraded mode instead of crashing.
type UnavailableStore struct {
	cause error
}

func NewUnavailableStore(cause error) *UnavailableStore {
	return &UnavailableStore{cause: cause}
}

func (s *UnavailableStore) err() error {
	return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, s.cause)
}

func (s *UnavailableStore) IsSeen(context.Context, string) (bool, error) { return false, s.err() }
func (s *UnavailableStore) MarkSeen(context.Context, *models.SeenDeal) error { return s.err() }
func (s *UnavailableStore) FilterUnseen(context.Context, []string) ([]string, error) {
	return nil, s.err()
}
func (s *UnavailableStore) GetSeen(context.Context, string) (*models.SeenDeal, error) {
	return nil, s.err()
}
func (s *UnavailableStore) PendingAlerts(context.Context, float64, float64, int) ([]models.SeenDeal, error) {
	return nil, s.err()
}
func (s *UnavailableStore) RecentDeals(context.Context, int) ([]models.SeenDeal, error) {
	return nil, s.err()
}
func (s *UnavailableStore) LogSearch(context.Context, *models.SearchRun) error { return s.err() }
func (s *UnavailableStore) RecentSearches(context.Context, int) ([]models.SearchRun, error) {
	return nil, s.err()
}
func (s *UnavailableStore) SaveDeal(context.Context, *models.SavedDeal) error { return s.err() }
func (s *UnavailableStore) SavedDeals(context.Context) ([]models.SavedDeal, error) {
	return nil, s.err()
}
func (s *UnavailableStore) RemoveSavedDeal(context.Context, string) (bool, error) {
	return false, s.err()
}
func (s *UnavailableStore) Stats(context.Context) (*models.Stats, error) { return nil, s.err() }
func (s *UnavailableStore) Log(context.Context, *uuid.UUID, models.LogLevel, string, string) error {
	return s.err()
}
func (s *UnavailableStore) EnqueueCommand(context.Context, models.CommandType, *models.CommandParams) error {
	return s.err()
}
func (s *UnavailableStore) PendingCommands(context.Context) ([]models.Command, error) {
	return nil, s.err()
}
func (s *UnavailableStore) MarkCommandProcessed(context.Context, int64) error { return s.err() }
func (s *UnavailableStore) Close() error { return nil }
