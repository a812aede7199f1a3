package workers

import (
	"context"
	"fmt"
	"log"
	"path"
	"time"

	"deal_hunter/models"
	"deal_hunter/notify"
	"deal_hunter/services"
)

// ReportUploader stores a JSON document under a key. storage.ReportBucket
// implements it.
type ReportUploader interface {
	PutJSON(ctx context.Context, key string, v any) error
}

// Report is the exported form of one hunt.
type Report struct {
	Run        *models.SearchRun     `json:"run"`
	Sources    []models.SourceResult `json:"sources"`
	Deals      []notify.Alert        `json:"deals"`
	Listings   int                   `json:"listings"`
	Unscored   int                   `json:"unscored"`
	Degraded   bool                  `json:"degraded"`
	ExportedAt time.Time             `json:"exported_at"`
}

func NewReport(res *services.HuntResult) *Report {
	r := &Report{
		Run:        res.Run,
		Sources:    res.Sources,
		Deals:      make([]notify.Alert, 0, len(res.Deals)),
		Listings:   len(res.Listings),
		Unscored:   res.Unscored,
		Degraded:   res.Degraded,
		ExportedAt: time.Now().UTC(),
	}
	for _, d := range res.Deals {
		r.Deals = append(r.Deals, notify.AlertFromDeal(d))
	}
	return r
}

// ReportKey is reports/YYYY/MM/DD/<run-id>.json, dated by run start.
func ReportKey(run *models.SearchRun) string {
	return path.Join("reports", run.StartedAt.UTC().Format("2006/01/02"), run.ID.String()+".json")
}

// ReportWorker exports hunt results in the background so a slow bucket
// never delays the next scheduled hunt.
type ReportWorker struct {
	uploader ReportUploader
	queue    chan *services.HuntResult
	logFunc  LogFunc
}

func NewReportWorker(uploader ReportUploader, queueSize int) *ReportWorker {
	if queueSize < 1 {
		queueSize = 16
	}
	return &ReportWorker{
		uploader: uploader,
		queue:    make(chan *services.HuntResult, queueSize),
		logFunc:  NoOpLogger,
	}
}

func (w *ReportWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Enqueue hands a result to the worker. It drops the result when the
// queue is full.
func (w *ReportWorker) Enqueue(res *services.HuntResult) bool {
	select {
	case w.queue <- res:
		return true
	default:
		log.Printf("[report] Warning: queue full, dropping report for run %s", res.Run.ID)
		return false
	}
}

func (w *ReportWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[report] worker stopping")
			return
		case res := <-w.queue:
			if _, err := w.Export(ctx, res); err != nil {
				log.Printf("[report] Warning: %v", err)
				w.logFunc(models.LogLevelWarn, "report", err.Error())
			}
		}
	}
}

// Export uploads one report and returns its key.
func (w *ReportWorker) Export(ctx context.Context, res *services.HuntResult) (string, error) {
	key := ReportKey(res.Run)
	if err := w.uploader.PutJSON(ctx, key, NewReport(res)); err != nil {
		return "", fmt.Errorf("export %s: %w", key, err)
	}
	log.Printf("[report] exported %s (%d deals)", key, len(res.Deals))
	return key, nil
}
