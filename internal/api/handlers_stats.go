package api

import (
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	sites := s.orchestrator.Sites().List()
	entries := 0
	for _, site := range sites {
		entries += site.Search.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sites":           len(sites),
		"entries":         entries,
		"queue_depth":     s.orchestrator.QueueDepth(),
		"workers":         s.cfg.WorkerCount,
		"publish_enabled": s.orchestrator.PathstoreClient() != nil,
		"catalog_enabled": s.orchestrator.Catalog() != nil,
	})
}
