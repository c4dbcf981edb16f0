package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/catalog"
	"github.com/dgallion1/doxnav/internal/pathstore"
	"github.com/dgallion1/doxnav/internal/validate"
)

// Worker processes a single bundle job.
type Worker struct {
	sites     *bundle.Registry
	catalog   *catalog.Store    // nil disables persistence
	pathstore *pathstore.Client // nil disables publishing
	log       *slog.Logger

	checkLinks           bool
	maxConcurrentPublish int
	backoff              func(attempt int) time.Duration
}

func NewWorker(sites *bundle.Registry, cat *catalog.Store, ps *pathstore.Client, log *slog.Logger, checkLinks bool, maxPublish int) *Worker {
	if maxPublish <= 0 {
		maxPublish = 1
	}
	return &Worker{
		sites:                sites,
		catalog:              cat,
		pathstore:            ps,
		log:                  log,
		checkLinks:           checkLinks,
		maxConcurrentPublish: maxPublish,
		backoff:              Backoff,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "site_id", job.SiteID)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	site, err := bundle.LoadFiles(job.Files())
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	site.ID = job.SiteID
	site.Name = job.Name
	navNodes := 0
	if site.Nav != nil {
		navNodes = site.Nav.Stats().Nodes
	}
	job.SetParsed(site.ContentHash, navNodes, site.Search.Len())
	log.Info("parsed bundle", "nav_nodes", navNodes, "entries", site.Search.Len(), "shards", site.ShardCount)

	// Phase 1.5: Dedup check
	if !job.Force {
		existing, err := w.findDuplicate(ctx, site.ContentHash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if existing != "" {
			log.Info("duplicate bundle, skipping", "existing_site_id", existing)
			job.SetDuplicateOf(existing)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Validate
	job.SetStatus(StatusValidating, "validating")
	res := validate.Site(site, validate.Options{SkipLinks: !w.checkLinks})
	job.SetValidation(res.Errors, res.Warnings)
	log.Info("validation complete", "errors", res.Errors, "warnings", res.Warnings)

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	if w.catalog != nil {
		rec := catalog.Record{ID: site.ID, Name: site.Name, ContentHash: site.ContentHash, Files: site.Files}
		if err := w.catalog.Put(ctx, rec); err != nil {
			log.Error("catalog write failed", "error", err)
			job.AddError(fmt.Sprintf("store: %s", err))
			job.SetStatus(StatusFailed, "storing")
			return
		}
	}
	w.sites.Put(site)

	// Phase 4: Publish
	if w.pathstore == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}
	job.SetStatus(StatusPublishing, "publishing")
	failed := w.publish(ctx, log, job, site)
	if failed > 0 {
		// the site is served locally even when publishing is incomplete
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

// findDuplicate returns the ID of a known site with the same content.
func (w *Worker) findDuplicate(ctx context.Context, hash string) (string, error) {
	if s := w.sites.FindByHash(hash); s != nil {
		return s.ID, nil
	}
	if w.catalog == nil {
		return "", nil
	}
	id, err := w.catalog.FindByHash(ctx, hash)
	if errors.Is(err, catalog.ErrNotFound) {
		return "", nil
	}
	return id, err
}
