package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"deal_hunter/config"
	"deal_hunter/models"
	"deal_hunter/services"
	"deal_hunter/storage"
)

const commandPollInterval = 2 * time.Second

// Hunter runs one search. services.HuntService implements it.
type Hunter interface {
	Hunt(ctx context.Context, req services.HuntRequest) (*services.HuntResult, error)
}

// CommandStore is the command queue the tui and API write to.
type CommandStore interface {
	PendingCommands(ctx context.Context) ([]models.Command, error)
	MarkCommandProcessed(ctx context.Context, id int64) error
}

// Enricher re-scores the top deals of a hunt from their item pages.
type Enricher interface {
	Enrich(ctx context.Context, res *services.HuntResult, filter services.Filter) int
}

// Alerter delivers the new deals of a hunt.
type Alerter interface {
	Notify(ctx context.Context, res *services.HuntResult) (int, error)
	Trigger()
}

// Exporter hands a finished hunt to the report worker.
type Exporter interface {
	Enqueue(res *services.HuntResult) bool
}

type Scheduler struct {
	cfg    *config.Config
	hunter Hunter
	store  CommandStore
	cron   *cron.Cron
	stopCh chan struct{}
	once   sync.Once

	// one hunt at a time; the browser profile is shared
	huntMu sync.Mutex
	paused atomic.Bool

	enricher Enricher
	alerter  Alerter
	exporter Exporter
}

func New(cfg *config.Config, hunter Hunter, store CommandStore) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		hunter: hunter,
		store:  store,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

// SetWorkers registers the post-hunt workers. Any of them may be nil.
func (s *Scheduler) SetWorkers(enricher Enricher, alerter Alerter, exporter Exporter) {
	s.enricher = enricher
	s.alerter = alerter
	s.exporter = exporter
}

func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron == "" {
		log.Println("[scheduler] no schedule configured, daemon will only respond to commands")
		return nil
	}
	if len(s.cfg.Watchlist) == 0 {
		log.Println("[scheduler] Warning: watchlist is empty, scheduled runs will do nothing")
	}

	_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
		s.RunWatchlist(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	log.Printf("[scheduler] watching %d queries on %q", len(s.cfg.Watchlist), s.cfg.Scheduler.Cron)
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.once.Do(func() {
		<-s.cron.Stop().Done()
		close(s.stopCh)
	})
}

func (s *Scheduler) Paused() bool {
	return s.paused.Load()
}

// RunWatchlist hunts every watchlist query in order. It is skipped while
// paused.
func (s *Scheduler) RunWatchlist(ctx context.Context) {
	if s.Paused() {
		log.Println("[scheduler] paused, skipping watchlist run")
		return
	}
	for _, item := range s.cfg.Watchlist {
		if ctx.Err() != nil {
			return
		}
		req, err := s.requestFor(item)
		if err != nil {
			log.Printf("[scheduler] Warning: skipping %q: %v", item.Query, err)
			continue
		}
		if _, err := s.RunHunt(ctx, req); err != nil {
			log.Printf("[scheduler] Warning: hunt %q failed: %v", item.Query, err)
		}
	}
}

func (s *Scheduler) requestFor(item config.WatchItem) (services.HuntRequest, error) {
	sources, err := item.SourceList(s.cfg.Hunt.Sources)
	if err != nil {
		return services.HuntRequest{}, err
	}
	filter := services.FilterFromConfig(s.cfg.Hunt).Override(services.Filter{
		MinProfit: item.MinProfit,
		MinMargin: item.MinMargin,
		MaxMargin: item.MaxMargin,
	})
	return services.HuntRequest{
		Query:      item.Query,
		Sources:    sources,
		MaxResults: item.MaxResults,
		Filter:     filter,
	}, nil
}

// RunHunt runs one hunt followed by enrichment, alerting and export.
func (s *Scheduler) RunHunt(ctx context.Context, req services.HuntRequest) (*services.HuntResult, error) {
	s.huntMu.Lock()
	defer s.huntMu.Unlock()

	res, err := s.hunter.Hunt(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.enricher != nil {
		s.enricher.Enrich(ctx, res, req.Filter)
	}
	if s.alerter != nil {
		if _, err := s.alerter.Notify(ctx, res); err != nil {
			log.Printf("[scheduler] Warning: alert for %q failed: %v", req.Query, err)
		}
	}
	if s.exporter != nil {
		s.exporter.Enqueue(res)
	}
	log.Printf("[scheduler] %q: %d deals (%d new)", req.Query, len(res.Deals), len(res.NewDeals))
	return res, nil
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(commandPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processCommands(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.store.PendingCommands(ctx)
	if err != nil {
		log.Printf("[scheduler] Warning: error getting commands: %v", err)
		return
	}

	for _, cmd := range cmds {
		log.Printf("[scheduler] processing command: %s", cmd.Command)
		if err := s.handleCommand(ctx, &cmd); err != nil {
			log.Printf("[scheduler] Warning: command %s: %v", cmd.Command, err)
		}
		if err := s.store.MarkCommandProcessed(ctx, cmd.ID); err != nil {
			log.Printf("[scheduler] Warning: error marking command processed: %v", err)
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdPause:
		s.paused.Store(true)
		log.Println("[scheduler] paused via command")
		return nil
	case models.CmdResume:
		s.paused.Store(false)
		log.Println("[scheduler] resumed via command")
		return nil
	case models.CmdHuntNow:
		s.RunWatchlist(ctx)
		if s.alerter != nil {
			s.alerter.Trigger()
		}
		return nil
	case models.CmdHuntQuery:
		params, err := storage.ParseCommandParams(cmd)
		if err != nil {
			return err
		}
		if strings.TrimSpace(params.Query) == "" {
			return fmt.Errorf("hunt_query without a query")
		}
		req, err := s.requestFor(config.WatchItem{Query: params.Query, Sources: params.Sources})
		if err != nil {
			return err
		}
		_, err = s.RunHunt(ctx, req)
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}
