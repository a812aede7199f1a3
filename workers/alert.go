package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"deal_hunter/models"
	"deal_hunter/notify"
	"deal_hunter/services"
)

const alertBatchLimit = 50

// AlertStore is the part of the store the alert worker reads and marks.
type AlertStore interface {
	PendingAlerts(ctx context.Context, minProfit, minMargin float64, limit int) ([]models.SeenDeal, error)
	MarkSeen(ctx context.Context, deal *models.SeenDeal) error
}

// AlertWorker delivers qualifying deals that have not been notified yet
// and flips them to notified once the notifier accepted them.
type AlertWorker struct {
	store      AlertStore
	notifier   notify.Notifier
	thresholds models.DealThresholds
	minDeals   int
	triggerCh  chan struct{}
	logFunc    LogFunc
}

func NewAlertWorker(store AlertStore, notifier notify.Notifier, thresholds models.DealThresholds, minDeals int) *AlertWorker {
	if minDeals < 1 {
		minDeals = 1
	}
	return &AlertWorker{
		store:      store,
		notifier:   notifier,
		thresholds: thresholds,
		minDeals:   minDeals,
		triggerCh:  make(chan struct{}, 1),
		logFunc:    NoOpLogger,
	}
}

func (w *AlertWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to sweep immediately
func (w *AlertWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *AlertWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("[alert] worker started (every %s, min %d deals, via %s)", interval, w.minDeals, w.notifier.Name())
	for {
		select {
		case <-ctx.Done():
			log.Println("[alert] worker stopping")
			return
		case <-ticker.C:
		case <-w.triggerCh:
		}
		if _, err := w.Sweep(ctx); err != nil {
			log.Printf("[alert] Warning: sweep failed: %v", err)
			w.logFunc(models.LogLevelWarn, "alert", err.Error())
		}
	}
}

// Sweep sends every pending good deal in the store. It returns how many
// deals were delivered.
func (w *AlertWorker) Sweep(ctx context.Context) (int, error) {
	pending, err := w.store.PendingAlerts(ctx, w.thresholds.GoodMinProfit, w.thresholds.GoodMinMargin, alertBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("pending alerts: %w", err)
	}

	var seen []models.SeenDeal
	var alerts []notify.Alert
	for _, s := range pending {
		a := notify.AlertFromSeen(s, w.thresholds)
		if a.Tier == models.TierOther {
			continue
		}
		seen = append(seen, s)
		alerts = append(alerts, a)
	}
	if len(alerts) < w.minDeals {
		return 0, nil
	}

	summary := notify.Summary{Query: "watchlist", Scanned: len(pending), Alerts: alerts}
	if err := w.notifier.Send(ctx, summary); err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}
	w.markNotified(ctx, seen)
	return len(seen), nil
}

// Notify delivers the new good deals of one hunt right away. Deals that
// were already seen are left to the store sweep.
func (w *AlertWorker) Notify(ctx context.Context, res *services.HuntResult) (int, error) {
	var deals []models.Deal
	for _, d := range res.NewDeals {
		if d.Analysis != nil && d.Analysis.IsGoodDeal() {
			deals = append(deals, d)
		}
	}
	if len(deals) < w.minDeals {
		return 0, nil
	}

	summary := notify.Summary{Query: res.Run.Query, Scanned: len(res.Listings)}
	seen := make([]models.SeenDeal, 0, len(deals))
	for _, d := range deals {
		summary.Alerts = append(summary.Alerts, notify.AlertFromDeal(d))
		seen = append(seen, *models.NewSeenDeal(d, false))
	}
	if err := w.notifier.Send(ctx, summary); err != nil {
		return 0, fmt.Errorf("send: %w", err)
	}
	if !res.Degraded {
		w.markNotified(ctx, seen)
	}
	return len(deals), nil
}

func (w *AlertWorker) markNotified(ctx context.Context, deals []models.SeenDeal) {
	for i := range deals {
		d := deals[i]
		d.Notified = true
		if err := w.store.MarkSeen(ctx, &d); err != nil {
			log.Printf("[alert] Warning: failed to mark %s notified: %v", d.URL, err)
		}
	}
	log.Printf("[alert] delivered %d deals via %s", len(deals), w.notifier.Name())
	w.logFunc(models.LogLevelInfo, "alert", fmt.Sprintf("delivered %d deals via %s", len(deals), w.notifier.Name()))
}
