package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/catalog"
	"github.com/dgallion1/doxnav/internal/config"
	"github.com/dgallion1/doxnav/internal/pathstore"
)

// Orchestrator manages the bundle ingestion pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	sites   *bundle.Registry
	catalog *catalog.Store
	ps      *pathstore.Client
	log     *slog.Logger
	cfg     config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex // guards stopped and the queue close
	stopped bool
}

// ErrStopped is returned by Submit once the pipeline is shutting down.
var ErrStopped = errors.New("pipeline is stopped")

// NewOrchestrator creates the pipeline. cat and ps may be nil.
func NewOrchestrator(cfg config.Config, sites *bundle.Registry, cat *catalog.Store, ps *pathstore.Client, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		sites:   sites,
		catalog: cat,
		ps:      ps,
		log:     log,
		cfg:     cfg,
	}
}

func (o *Orchestrator) newWorker() *Worker {
	return NewWorker(o.sites, o.catalog, o.ps, o.log, o.cfg.CheckLinks, o.cfg.MaxConcurrentPublish)
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutting_down")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Sites returns the registry of loaded sites.
func (o *Orchestrator) Sites() *bundle.Registry {
	return o.sites
}

// Catalog returns the persistent store, or nil.
func (o *Orchestrator) Catalog() *catalog.Store {
	return o.catalog
}

// PathstoreClient returns the pathstore client for direct use by API
// handlers, or nil when publishing is disabled.
func (o *Orchestrator) PathstoreClient() *pathstore.Client {
	return o.ps
}

// Restore loads every cataloged site into the registry. Sites that no
// longer parse are logged and skipped.
func (o *Orchestrator) Restore(ctx context.Context) (int, error) {
	if o.catalog == nil {
		return 0, nil
	}
	list, err := o.catalog.List(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, sum := range list {
		rec, err := o.catalog.Get(ctx, sum.ID)
		if err != nil {
			o.log.Warn("restore failed", "site_id", sum.ID, "error", err)
			continue
		}
		site, err := bundle.LoadFiles(rec.Files)
		if err != nil {
			o.log.Warn("restore failed", "site_id", sum.ID, "error", err)
			continue
		}
		site.ID = rec.ID
		site.Name = rec.Name
		site.LoadedAt = rec.UpdatedAt
		o.sites.Put(site)
		restored++
	}
	return restored, nil
}

// Preload loads a bundle directory from disk and registers it under id.
// Preloaded sites are served but not cataloged or published.
func (o *Orchestrator) Preload(id, dir string) (*bundle.Site, error) {
	site, err := bundle.Load(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("preload %s: %w", dir, err)
	}
	site.ID = id
	site.Name = id
	o.sites.Put(site)
	return site, nil
}

// DeleteSite removes a site from the registry, the catalog and pathstore.
// It reports whether the site existed anywhere.
func (o *Orchestrator) DeleteSite(ctx context.Context, id string) (bool, error) {
	found := o.sites.Delete(id)
	if o.catalog != nil {
		err := o.catalog.Delete(ctx, id)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, catalog.ErrNotFound):
			return found, err
		}
	}
	if o.ps != nil && found {
		if err := Unpublish(ctx, o.ps, id); err != nil {
			return found, fmt.Errorf("unpublish: %w", err)
		}
	}
	return found, nil
}
