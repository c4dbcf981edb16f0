// Package pathstoretest provides an in-memory pathstore server for tests.
package pathstoretest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/doxnav/internal/pathstore"
)

// Server is a fake pathstore backed by a map.
type Server struct {
	*httptest.Server

	mu    sync.Mutex
	nodes map[string]any
	links []pathstore.LinkRequest
	puts  int
	fails int // remaining requests to answer with 503
}

// NewServer starts a fake pathstore. Callers must Close it.
func NewServer() *Server {
	s := &Server{nodes: make(map[string]any)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Client returns a pathstore client for the fake.
func (s *Server) Client() *pathstore.Client {
	return pathstore.NewClient(s.URL, "test-key")
}

// FailNext makes the next n requests fail with 503.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = n
}

// Node returns the stored value at key.
func (s *Server) Node(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.nodes[key]
	return v, ok
}

// Keys returns the stored keys under prefix, sorted.
func (s *Server) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.nodes {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Links returns the recorded links.
func (s *Server) Links() []pathstore.LinkRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pathstore.LinkRequest(nil), s.links...)
}

// Puts returns the number of successful node writes.
func (s *Server) Puts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer test-key" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.fails > 0 {
		s.fails--
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path == "/links" && r.Method == http.MethodPut {
		var req pathstore.LinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.links = append(s.links, req)
		w.WriteHeader(http.StatusCreated)
		return
	}

	key, ok := strings.CutPrefix(r.URL.Path, "/kv/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut:
		var req pathstore.NodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.nodes[key] = req.Value
		s.puts++
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		if prefix, ok := strings.CutSuffix(key, "/*"); ok {
			var nodes []pathstore.ListChildrenResponse
			for k, v := range s.nodes {
				if strings.HasPrefix(k, prefix+"/") {
					nodes = append(nodes, pathstore.ListChildrenResponse{Key: strings.ReplaceAll(k, "/", "."), Value: v})
				}
			}
			sort.Slice(nodes, func(i, j int) bool { return nodes[i].Key < nodes[j].Key })
			json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
			return
		}
		v, ok := s.nodes[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(pathstore.NodeResponse{Key: key, Value: v})
	case http.MethodDelete:
		if _, ok := s.nodes[key]; !ok && r.URL.Query().Get("children") != "true" {
			http.NotFound(w, r)
			return
		}
		delete(s.nodes, key)
		if r.URL.Query().Get("children") == "true" {
			for k := range s.nodes {
				if strings.HasPrefix(k, key+"/") {
					delete(s.nodes, k)
				}
			}
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
