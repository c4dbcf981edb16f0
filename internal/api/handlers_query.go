package api

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/dgallion1/doxnav/internal/doxname"
	"github.com/dgallion1/doxnav/internal/export"
	"github.com/dgallion1/doxnav/internal/report"
	"github.com/dgallion1/doxnav/internal/searchindex"
	"github.com/dgallion1/doxnav/internal/validate"
	"github.com/go-chi/chi/v5"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 1000
)

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	site := s.site(w, r)
	if site == nil {
		return
	}
	if site.Nav == nil {
		jsonError(w, "site has no navigation tree", http.StatusNotFound)
		return
	}
	if r.URL.Query().Get("flat") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{"nodes": site.Nav.Flatten()})
		return
	}
	writeJSON(w, http.StatusOK, site.Nav)
}

// handleNavPath returns the breadcrumb for a page link and the
// navtreeindex chunk the viewer would load for it.
func (s *Server) handleNavPath(w http.ResponseWriter, r *http.Request) {
	site := s.site(w, r)
	if site == nil {
		return
	}
	link := r.URL.Query().Get("link")
	if link == "" {
		jsonError(w, "link query parameter is required", http.StatusBadRequest)
		return
	}
	if site.Nav == nil {
		jsonError(w, "site has no navigation tree", http.StatusNotFound)
		return
	}
	labels := site.Nav.Path(link)
	if labels == nil {
		jsonError(w, "link not found in navigation tree", http.StatusNotFound)
		return
	}
	page, anchor := doxname.SplitLink(link)
	writeJSON(w, http.StatusOK, map[string]any{
		"link":   link,
		"page":   page,
		"anchor": anchor,
		"path":   labels,
		"chunk":  site.Nav.ChunkFor(link),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	site := s.site(w, r)
	if site == nil {
		return
	}
	q := r.URL.Query()
	text := q.Get("q")
	if text == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	limit := defaultSearchLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxSearchLimit)
	}

	matches := site.Search.Lookup(searchindex.Query{Text: text, Category: q.Get("category"), Limit: limit})
	if matches == nil {
		matches = []searchindex.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":      text,
		"normalized": searchindex.NormalizeQuery(text),
		"matches":    matches,
	})
}

func (s *Server) handleSymbol(w http.ResponseWriter, r *http.Request) {
	site := s.site(w, r)
	if site == nil {
		return
	}
	key := chi.URLParam(r, "key")
	entries := site.Search.Get(key)
	if len(entries) == 0 {
		jsonError(w, "symbol not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "entries": entries})
}

func (s *Server) handleValidation(w http.ResponseWriter, r *http.Request) {
	site := s.site(w, r)
	if site == nil {
		return
	}
	res := validate.Site(site, validate.Options{SkipLinks: !s.cfg.CheckLinks})
	writeJSON(w, http.StatusOK, map[string]any{
		"site_id": site.ID,
		"ok":      res.OK(),
		"result":  res,
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	site := s.site(w, r)
	if site == nil {
		return
	}
	res := validate.Site(site, validate.Options{SkipLinks: !s.cfg.CheckLinks})
	body, err := report.HTML(site, res)
	if err != nil {
		s.log.Error("render report failed", "site_id", site.ID, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	site := s.site(w, r)
	if site == nil {
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if format == export.FormatScript {
		jsonError(w, "script export is a file set; use the CLI", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, site, format); err != nil {
		s.log.Error("export failed", "site_id", site.ID, "format", format, "error", err)
		jsonError(w, "export failed", http.StatusInternalServerError)
		return
	}
	ctype := "application/json"
	if format == export.FormatYAML {
		ctype = "application/yaml"
	}
	w.Header().Set("Content-Type", ctype)
	w.Write(buf.Bytes())
}
