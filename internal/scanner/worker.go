package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maltedev/sorare-alert-bot/internal/models"
	"github.com/maltedev/sorare-alert-bot/internal/queue"
)

const (
	priorityScheduled = 0
	priorityManual    = 10
)

// Schedule drives the two periodic cycles.
type Schedule struct {
	ScanInterval      time.Duration
	ScanInitialDelay  time.Duration
	SalesInterval     time.Duration
	SalesInitialDelay time.Duration
}

// Run executes queued jobs one at a time until ctx is done or the queue is
// closed. All scans and imports go through here, so no two cycles overlap.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("worker started")
	for {
		job, err := o.Queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
				o.logger.Info("worker stopped")
				return nil
			}
			return err
		}
		o.execute(ctx, job)
	}
}

func (o *Orchestrator) execute(ctx context.Context, job *queue.Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%s panicked: %v", job.Kind, r)
			o.count(func(s *models.Stats) { s.Errors++ })
			o.logger.Error("job failed", "job_id", job.ID, "kind", job.Kind, "error", err)
			job.Complete(nil, err)
		}
	}()

	o.logger.Debug("job started", "job_id", job.ID, "kind", job.Kind, "key", job.Key)

	switch job.Kind {
	case queue.JobMarketScan:
		job.Complete(nil, o.ScanMarket(ctx))
	case queue.JobSalesScan:
		job.Complete(nil, o.ScanSalesHistory(ctx))
	case queue.JobImport:
		slug, rarity := splitImportKey(job.Key)
		res, err := o.ImportEntitySales(ctx, slug, rarity)
		job.Complete(res, err)
	case queue.JobImportAll:
		res, err := o.ImportAllSales(ctx)
		job.Complete(res, err)
	default:
		job.Complete(nil, fmt.Errorf("unknown job kind %q", job.Kind))
	}
}

// TriggerScan queues an immediate market scan. It fails with
// ErrScanInProgress while a market scan is queued or running.
func (o *Orchestrator) TriggerScan() error {
	if o.scanning.Load() {
		return ErrScanInProgress
	}
	_, queued, err := o.Queue.PushUnique(queue.NewJob(queue.JobMarketScan, "", priorityManual))
	if err != nil {
		return err
	}
	if !queued {
		return ErrScanInProgress
	}
	return nil
}

// RequestImport queues a sales import for one player and waits for its result.
func (o *Orchestrator) RequestImport(ctx context.Context, slug string, rarity models.Rarity) (ImportResult, error) {
	job := queue.NewJob(queue.JobImport, importKey(slug, rarity), priorityManual)
	if err := o.Queue.Push(job); err != nil {
		return ImportResult{Slug: slug, Rarity: rarity}, err
	}

	v, err := job.Wait(ctx)
	res, _ := v.(ImportResult)
	return res, err
}

// RequestImportAll queues a sales import for every player and waits for it.
func (o *Orchestrator) RequestImportAll(ctx context.Context) (BatchImportResult, error) {
	job, _, err := o.Queue.PushUnique(queue.NewJob(queue.JobImportAll, "", priorityManual))
	if err != nil {
		return BatchImportResult{}, err
	}

	v, err := job.Wait(ctx)
	res, _ := v.(BatchImportResult)
	return res, err
}

// RunSchedule enqueues the periodic market and sales cycles until ctx is done.
// A cycle still queued when its next tick fires is not queued twice.
func (o *Orchestrator) RunSchedule(ctx context.Context, s Schedule) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return o.every(ctx, queue.JobMarketScan, s.ScanInitialDelay, s.ScanInterval)
	})
	g.Go(func() error {
		return o.every(ctx, queue.JobSalesScan, s.SalesInitialDelay, s.SalesInterval)
	})
	return g.Wait()
}

func (o *Orchestrator) every(ctx context.Context, kind queue.JobKind, initial, interval time.Duration) error {
	if interval <= 0 {
		o.logger.Info("schedule disabled", "kind", kind)
		return nil
	}

	timer := time.NewTimer(initial)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		_, queued, err := o.Queue.PushUnique(queue.NewJob(kind, "", priorityScheduled))
		if err != nil {
			if errors.Is(err, queue.ErrQueueClosed) {
				return nil
			}
			return err
		}
		if !queued {
			o.logger.Debug("cycle already queued", "kind", kind)
		}
		timer.Reset(interval)
	}
}

func importKey(slug string, rarity models.Rarity) string {
	return slug + "|" + string(rarity)
}

func splitImportKey(key string) (string, models.Rarity) {
	slug, rarity, _ := strings.Cut(key, "|")
	return slug, models.Rarity(rarity)
}
