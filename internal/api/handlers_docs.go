package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/navtree"
	"github.com/dgallion1/doxnav/internal/pathstore"
	"github.com/go-chi/chi/v5"
)

type siteSummary struct {
	ID          string    `json:"site_id"`
	Name        string    `json:"name,omitempty"`
	ContentHash string    `json:"content_hash"`
	Entries     int       `json:"entries"`
	Shards      int       `json:"shards"`
	NavNodes    int       `json:"nav_nodes"`
	Pages       int       `json:"pages"`
	LoadedAt    time.Time `json:"loaded_at"`
}

type siteDetail struct {
	siteSummary
	NavStats   *navtree.Stats `json:"nav_stats,omitempty"`
	Categories map[string]int `json:"categories"`
	Unresolved []string       `json:"unresolved_refs,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

func summarize(site *bundle.Site) siteSummary {
	sum := siteSummary{
		ID:          site.ID,
		Name:        site.Name,
		ContentHash: site.ContentHash,
		Entries:     site.Search.Len(),
		Shards:      site.ShardCount,
		Pages:       site.PageCount,
		LoadedAt:    site.LoadedAt,
	}
	if site.Nav != nil {
		sum.NavNodes = site.Nav.Stats().Nodes
	}
	return sum
}

// site resolves the {siteID} parameter, writing a 404 when it is unknown.
func (s *Server) site(w http.ResponseWriter, r *http.Request) *bundle.Site {
	id := chi.URLParam(r, "siteID")
	site := s.orchestrator.Sites().Get(id)
	if site == nil {
		jsonError(w, "site not found", http.StatusNotFound)
	}
	return site
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites := s.orchestrator.Sites().List()
	out := make([]siteSummary, 0, len(sites))
	for _, site := range sites {
		out = append(out, summarize(site))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": out})
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site := s.site(w, r)
	if site == nil {
		return
	}
	d := siteDetail{
		siteSummary: summarize(site),
		Categories:  site.Search.Categories(),
		Unresolved:  site.Unresolved,
		Warnings:    site.Warnings,
	}
	if site.Nav != nil {
		st := site.Nav.Stats()
		d.NavStats = &st
	}
	writeJSON(w, http.StatusOK, d)
}

// handleDeleteSite removes a site from memory, the catalog and pathstore.
func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "siteID")
	found, err := s.orchestrator.DeleteSite(r.Context(), id)
	if err != nil {
		s.log.Error("delete site failed", "site_id", id, "error", err)
		jsonError(w, "failed to delete site: "+err.Error(), http.StatusBadGateway)
		return
	}
	if !found {
		jsonError(w, "site not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// handlePublished lists the symbol nodes pathstore holds for a site along
// with its published meta node.
func (s *Server) handlePublished(w http.ResponseWriter, r *http.Request) {
	ps := s.orchestrator.PathstoreClient()
	if ps == nil {
		jsonError(w, "publishing is disabled", http.StatusServiceUnavailable)
		return
	}
	id := chi.URLParam(r, "siteID")
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	meta, err := ps.GetNode(r.Context(), pathstore.MetaKey(id))
	if err != nil {
		jsonError(w, "failed to read meta: "+err.Error(), http.StatusBadGateway)
		return
	}
	if meta == nil {
		jsonError(w, "site is not published", http.StatusNotFound)
		return
	}
	children, err := ps.ListChildren(r.Context(), pathstore.SymbolsKey(id), limit)
	if err != nil {
		jsonError(w, "failed to list symbols: "+err.Error(), http.StatusBadGateway)
		return
	}
	symbols := make([]string, 0, len(children))
	for _, c := range children {
		symbols = append(symbols, c.LastSegment())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"site_id": id,
		"meta":    meta.Value,
		"symbols": symbols,
	})
}
