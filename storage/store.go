package storage

import (
	"context"

	"github.com/google/uuid"

	"deal_hunter/models"
)

// SeenStore deduplicates listings by URL across searches.
//
// MarkSeen is an upsert: price, profit and margin refresh to the latest
// values, LastSeenAt moves forward, FirstSeenAt is kept and Notified is
// OR-ed with the stored value so it never goes back to false.
type SeenStore interface {
	IsSeen(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, deal *models.SeenDeal) error
	FilterUnseen(ctx context.Context, urls []string) ([]string, error)
}

// DealStore is everything the services, API and daemon persist.
type DealStore interface {
	SeenStore
	GetSeen(ctx context.Context, url string) (*models.SeenDeal, error)
	PendingAlerts(ctx context.Context, minProfit, minMargin float64, limit int) ([]models.SeenDeal, error)
	RecentDeals(ctx context.Context, limit int) ([]models.SeenDeal, error)

	LogSearch(ctx context.Context, run *models.SearchRun) error
	RecentSearches(ctx context.Context, limit int) ([]models.SearchRun, error)

	SaveDeal(ctx context.Context, deal *models.SavedDeal) error
	SavedDeals(ctx context.Context) ([]models.SavedDeal, error)
	RemoveSavedDeal(ctx context.Context, url string) (bool, error)

	Stats(ctx context.Context) (*models.Stats, error)
	Log(ctx context.Context, runID *uuid.UUID, level models.LogLevel, message, source string) error

	EnqueueCommand(ctx context.Context, cmd models.CommandType, params *models.CommandParams) error
	PendingCommands(ctx context.Context) ([]models.Command, error)
	MarkCommandProcessed(ctx context.Context, id int64) error

	Close() error
}

// dedupe keeps the first occurrence of each url.
func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// unseenOf returns urls, in order, that are absent from seen.
func unseenOf(urls []string, seen map[string]bool) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !seen[u] {
			out = append(out, u)
		}
	}
	return out
}
