package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/navtree"
	"github.com/dgallion1/doxnav/internal/pathstore"
	"github.com/dgallion1/doxnav/internal/searchindex"
)

// symbolValue is the node stored per search key.
type symbolValue struct {
	Key         string                   `json:"key"`
	DisplayName string                   `json:"display_name"`
	Categories  []string                 `json:"categories"`
	Occurrences []searchindex.Occurrence `json:"occurrences"`
}

// metaValue marks a published revision.
type metaValue struct {
	ContentHash string `json:"content_hash"`
	Name        string `json:"name,omitempty"`
	Symbols     int    `json:"symbols"`
	NavNodes    int    `json:"nav_nodes"`
	PublishedAt string `json:"published_at"`
}

type publishTask struct {
	name string
	kind string // "symbol", "nav" or "link"
	run  func(ctx context.Context) error
}

// publish writes a site to pathstore: one node per search key, one per
// navigation node, a link from every navigation node to its parent and
// finally the meta node. It returns the number of failed writes.
func (w *Worker) publish(ctx context.Context, log *slog.Logger, job *Job, site *bundle.Site) int {
	ps := w.pathstore

	var meta *pathstore.NodeResponse
	err := retry(ctx, w.backoff, func() error {
		var err error
		meta, err = ps.GetNode(ctx, pathstore.MetaKey(site.ID))
		return err
	})
	if err != nil {
		log.Warn("meta lookup failed, republishing", "error", err)
	} else if !job.Force && publishedHash(meta) == site.ContentHash {
		log.Info("published revision is current, skipping")
		job.MarkPublishSkipped()
		return 0
	}

	symbols := symbolTasks(ps, site)
	var flat []navtree.FlatNode
	if site.Nav != nil {
		flat = site.Nav.Flatten()
	}
	nodes, links := navTasks(ps, site.ID, flat)

	failed := w.runTasks(ctx, log, job, append(symbols, nodes...))
	// parents must exist before links point at them
	failed += w.runTasks(ctx, log, job, links)
	if failed > 0 {
		log.Error("publishing incomplete", "failed", failed)
		return failed
	}

	keep := make(map[string]bool, len(symbols))
	for _, t := range symbols {
		keep[t.name] = true
	}
	pruned := w.prune(ctx, log, pathstore.SymbolsKey(site.ID), func(seg string) bool { return keep[seg] })
	pruned += w.prune(ctx, log, pathstore.NavRootKey(site.ID), func(seg string) bool {
		n, err := strconv.Atoi(seg)
		return err == nil && n < len(flat)
	})

	err = retry(ctx, w.backoff, func() error {
		return ps.PutNode(ctx, pathstore.MetaKey(site.ID), pathstore.NodeRequest{
			Value: metaValue{
				ContentHash: site.ContentHash,
				Name:        site.Name,
				Symbols:     len(symbols),
				NavNodes:    len(flat),
				PublishedAt: time.Now().UTC().Format(time.RFC3339),
			},
			MergeMode: "replace",
		})
	})
	if err != nil {
		log.Error("meta write failed", "error", err)
		job.AddError(fmt.Sprintf("meta: %s", err))
		return 1
	}
	log.Info("publishing complete", "symbols", len(symbols), "nav_nodes", len(flat), "pruned", pruned)
	return 0
}

func symbolTasks(ps *pathstore.Client, site *bundle.Site) []publishTask {
	entries := site.Search.Entries()
	var tasks []publishTask
	for i := 0; i < len(entries); {
		// entries are key-ordered; one node covers a key across categories
		j := i
		v := symbolValue{Key: entries[i].Key, DisplayName: entries[i].DisplayName}
		seen := make(map[string]bool)
		for ; j < len(entries) && entries[j].Key == v.Key; j++ {
			v.Categories = append(v.Categories, entries[j].Category)
			for _, occ := range entries[j].Occurrences {
				if seen[occ.Link] {
					continue
				}
				seen[occ.Link] = true
				v.Occurrences = append(v.Occurrences, occ)
			}
		}
		i = j
		if v.Key == "" {
			continue
		}
		key := pathstore.SymbolKey(site.ID, v.Key)
		tasks = append(tasks, publishTask{name: v.Key, kind: "symbol", run: func(ctx context.Context) error {
			return ps.PutNode(ctx, key, pathstore.NodeRequest{Value: v, MergeMode: "replace"})
		}})
	}
	return tasks
}

func navTasks(ps *pathstore.Client, siteID string, flat []navtree.FlatNode) (nodes, links []publishTask) {
	index := make(map[string]int, len(flat))
	for i, fn := range flat {
		index[fn.Path] = i
		key := pathstore.NavKey(siteID, i)
		nodes = append(nodes, publishTask{name: key, kind: "nav", run: func(ctx context.Context) error {
			return ps.PutNode(ctx, key, pathstore.NodeRequest{Value: fn, MergeMode: "replace"})
		}})

		parentPath, _, ok := cutLast(fn.Path, "/")
		if !ok {
			continue
		}
		req := pathstore.LinkRequest{
			From:    key,
			To:      pathstore.NavKey(siteID, index[parentPath]),
			Weight:  1,
			Summary: "child of",
		}
		links = append(links, publishTask{name: key, kind: "link", run: func(ctx context.Context) error {
			return ps.PutLink(ctx, req)
		}})
	}
	return nodes, links
}

// runTasks executes tasks with bounded concurrency, retrying transient
// failures. It returns the number of tasks that failed.
func (w *Worker) runTasks(ctx context.Context, log *slog.Logger, job *Job, tasks []publishTask) int {
	type taskResult struct {
		task publishTask
		err  error
	}
	results := make(chan taskResult, len(tasks))
	sem := make(chan struct{}, w.maxConcurrentPublish)

	for _, t := range tasks {
		sem <- struct{}{}
		go func(t publishTask) {
			defer func() { <-sem }()
			err := retry(ctx, w.backoff, func() error { return t.run(ctx) })
			results <- taskResult{task: t, err: err}
		}(t)
	}

	failed := 0
	for range tasks {
		r := <-results
		if r.err != nil {
			log.Error("publish failed", "kind", r.task.kind, "name", r.task.name, "error", r.err)
			job.AddError(fmt.Sprintf("publish %s %s: %s", r.task.kind, r.task.name, r.err))
			failed++
			continue
		}
		switch r.task.kind {
		case "symbol":
			job.AddPublished(1, 0)
		case "nav":
			job.AddPublished(0, 1)
		}
	}
	return failed
}

// prune deletes children of prefix that keep rejects. Failures are logged
// only; stale nodes are retried on the next publish.
func (w *Worker) prune(ctx context.Context, log *slog.Logger, prefix string, keep func(seg string) bool) int {
	children, err := w.pathstore.ListChildren(ctx, prefix, 0)
	if err != nil {
		log.Warn("list for prune failed", "prefix", prefix, "error", err)
		return 0
	}
	pruned := 0
	for _, c := range children {
		seg := c.LastSegment()
		if keep(seg) {
			continue
		}
		if err := w.pathstore.DeleteNode(ctx, prefix+"/"+seg, false); err != nil {
			log.Warn("prune failed", "key", prefix+"/"+seg, "error", err)
			continue
		}
		pruned++
	}
	return pruned
}

// Unpublish removes everything published for a site.
func Unpublish(ctx context.Context, ps *pathstore.Client, siteID string) error {
	return ps.DeleteNode(ctx, pathstore.SiteKey(siteID), true)
}

func publishedHash(meta *pathstore.NodeResponse) string {
	if meta == nil {
		return ""
	}
	m, ok := meta.Value.(map[string]any)
	if !ok {
		return ""
	}
	hash, _ := m["content_hash"].(string)
	return hash
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
