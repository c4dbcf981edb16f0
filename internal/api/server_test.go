package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/config"
	"github.com/dgallion1/doxnav/internal/pipeline"
	"github.com/google/go-cmp/cmp"
)

const testKey = "secret"

func newTestServer(t *testing.T) (*Server, *pipeline.Orchestrator) {
	t.Helper()
	cfg := config.Config{
		APIKey:         testKey,
		WorkerCount:    1,
		MaxQueueSize:   4,
		MaxUploadBytes: 1 << 20,
		MaxUploadFiles: 10,
		JobTTL:         time.Hour,
		CheckLinks:     true,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, bundle.NewRegistry(), nil, nil, log)
	if _, err := orch.Preload("ant", "../bundle/testdata/site"); err != nil {
		t.Fatalf("preload: %v", err)
	}
	return NewServer(orch, log, cfg), orch
}

func do(t *testing.T, s *Server, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong key", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "Basic " + testKey, http.StatusUnauthorized},
		{"valid", "Bearer " + testKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestListAndGetSite(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/sites", nil, nil)
	var list struct {
		Sites []siteSummary `json:"sites"`
	}
	decode(t, rec, &list)
	if len(list.Sites) != 1 || list.Sites[0].ID != "ant" || list.Sites[0].Entries != 54 {
		t.Fatalf("unexpected sites %+v", list.Sites)
	}

	rec = do(t, s, http.MethodGet, "/api/sites/ant", nil, nil)
	var detail siteDetail
	decode(t, rec, &detail)
	if diff := cmp.Diff(map[string]int{"functions": 2, "variables": 52}, detail.Categories); diff != "" {
		t.Errorf("categories mismatch (-want +got):\n%s", diff)
	}
	if detail.NavStats == nil || detail.NavStats.Nodes == 0 {
		t.Errorf("expected nav stats, got %+v", detail.NavStats)
	}

	rec = do(t, s, http.MethodGet, "/api/sites/nope", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown site, got %d", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/sites/ant/search?q=Gamma&limit=3", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Normalized string `json:"normalized"`
		Matches    []struct {
			Key   string `json:"key"`
			Exact bool   `json:"exact"`
		} `json:"matches"`
	}
	decode(t, rec, &res)
	if res.Normalized != "gamma" || len(res.Matches) != 3 {
		t.Fatalf("unexpected search result %+v", res)
	}
	if res.Matches[0].Key != "gamma" || !res.Matches[0].Exact {
		t.Errorf("expected exact match first, got %+v", res.Matches[0])
	}

	rec = do(t, s, http.MethodGet, "/api/sites/ant/search?q=get&category=functions", nil, nil)
	decode(t, rec, &res)
	if len(res.Matches) != 2 {
		t.Errorf("expected 2 function matches, got %+v", res.Matches)
	}

	for _, target := range []string{
		"/api/sites/ant/search",
		"/api/sites/ant/search?q=x&limit=abc",
		"/api/sites/ant/search?q=x&limit=0",
	} {
		if rec := do(t, s, http.MethodGet, target, nil, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestSymbol(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/sites/ant/symbols/gains", nil, nil)
	var res struct {
		Entries []struct {
			DisplayName string `json:"display_name"`
			Occurrences []any  `json:"occurrences"`
		} `json:"entries"`
	}
	decode(t, rec, &res)
	if len(res.Entries) != 1 || res.Entries[0].DisplayName != "Gains" || len(res.Entries[0].Occurrences) != 2 {
		t.Errorf("unexpected symbol %+v", res)
	}
	if rec := do(t, s, http.MethodGet, "/api/sites/ant/symbols/missing", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestNav(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/sites/ant/nav/path?link=unpacker.html", nil, nil)
	var res struct {
		Path []string `json:"path"`
		Page string   `json:"page"`
	}
	decode(t, rec, &res)
	if diff := cmp.Diff([]string{"ant", "Unpacker"}, res.Path); diff != "" {
		t.Errorf("path mismatch (-want +got):\n%s", diff)
	}

	if rec := do(t, s, http.MethodGet, "/api/sites/ant/nav/path", nil, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without link, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/sites/ant/nav/path?link=none.html", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown link, got %d", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/sites/ant/nav", nil, nil)
	var tree struct {
		Root []struct {
			Label string `json:"label"`
		} `json:"root"`
	}
	decode(t, rec, &tree)
	if len(tree.Root) != 1 || tree.Root[0].Label != "ant" {
		t.Errorf("unexpected tree root %+v", tree.Root)
	}

	rec = do(t, s, http.MethodGet, "/api/sites/ant/nav?flat=true", nil, nil)
	var flat struct {
		Nodes []struct {
			Path string `json:"path"`
		} `json:"nodes"`
	}
	decode(t, rec, &flat)
	if len(flat.Nodes) == 0 || flat.Nodes[0].Path != "0" {
		t.Errorf("unexpected flat nodes %+v", flat.Nodes)
	}
}

func TestValidationAndReport(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/sites/ant/validation", nil, nil)
	var res struct {
		OK bool `json:"ok"`
	}
	decode(t, rec, &res)
	if !res.OK {
		t.Errorf("expected fixture to validate, got %s", rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/sites/ant/report", nil, nil)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "<table>") {
		t.Error("expected report tables")
	}
}

func TestExport(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/sites/ant/export?format=yaml", nil, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/yaml" {
		t.Fatalf("unexpected yaml export %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "content_hash:") {
		t.Error("expected yaml document")
	}

	rec = do(t, s, http.MethodGet, "/api/sites/ant/export", nil, nil)
	var doc struct {
		Entries []any `json:"entries"`
	}
	decode(t, rec, &doc)
	if len(doc.Entries) != 54 {
		t.Errorf("expected 54 entries, got %d", len(doc.Entries))
	}

	for _, f := range []string{"script", "xml"} {
		if rec := do(t, s, http.MethodGet, "/api/sites/ant/export?format="+f, nil, nil); rec.Code != http.StatusBadRequest {
			t.Errorf("format %s: expected 400, got %d", f, rec.Code)
		}
	}
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (io.Reader, http.Header) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, http.Header{"Content-Type": {mw.FormDataContentType()}}
}

func TestUpload(t *testing.T) {
	s, orch := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	defer orch.Stop()

	body, header := multipartBody(t,
		map[string]string{"site_id": "beta", "name": "Beta"},
		map[string]string{
			"navtreedata.js":  `var NAVTREE = [ [ "beta", "index.html", null ] ];`,
			"search/all_0.js": `var searchData=[['one',['One',['../a.html',1,'a']]]];`,
		})
	rec := do(t, s, http.MethodPost, "/api/sites", body, header)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		JobID   string `json:"job_id"`
		SiteID  string `json:"site_id"`
		PollURL string `json:"poll_url"`
	}
	decode(t, rec, &accepted)
	if accepted.SiteID != "beta" {
		t.Errorf("expected site id beta, got %q", accepted.SiteID)
	}

	var status struct {
		Status string `json:"status"`
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		decode(t, do(t, s, http.MethodGet, accepted.PollURL, nil, nil), &status)
		if pipeline.JobStatus(status.Status).Done() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", status.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if status.Status != string(pipeline.StatusCompleted) {
		t.Fatalf("expected completed, got %s", status.Status)
	}

	rec = do(t, s, http.MethodGet, "/api/sites/beta/search?q=one", nil, nil)
	if !strings.Contains(rec.Body.String(), `"display_name":"One"`) {
		t.Errorf("expected uploaded entry to be searchable, got %s", rec.Body.String())
	}

	if rec := do(t, s, http.MethodGet, "/api/ingest/unknown/status", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestUpload_Rejects(t *testing.T) {
	s, _ := newTestServer(t)

	body, header := multipartBody(t, map[string]string{"site_id": "bad id!"}, map[string]string{"a.js": "x"})
	if rec := do(t, s, http.MethodPost, "/api/sites", body, header); rec.Code != http.StatusBadRequest {
		t.Errorf("bad site id: expected 400, got %d", rec.Code)
	}

	body, header = multipartBody(t, nil, nil)
	if rec := do(t, s, http.MethodPost, "/api/sites", body, header); rec.Code != http.StatusBadRequest {
		t.Errorf("no files: expected 400, got %d", rec.Code)
	}

	files := make(map[string]string)
	for i := range 11 {
		files[string(rune('a'+i))+".js"] = "x"
	}
	body, header = multipartBody(t, nil, files)
	if rec := do(t, s, http.MethodPost, "/api/sites", body, header); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("too many files: expected 413, got %d", rec.Code)
	}
}

func TestBundlePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"navtreedata.js", "navtreedata.js", false},
		{"variables_7.js", "search/variables_7.js", false},
		{"search/all_0.js", "search/all_0.js", false},
		{"html/search/all_0.js", "html/search/all_0.js", false},
		{`html\classfoo.html`, "html/classfoo.html", false},
		{"/abs/page.html", "abs/page.html", false},
		{"../etc/passwd", "", true},
		{"a/../../b", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := bundlePath(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("bundlePath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("bundlePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDeleteSite(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := do(t, s, http.MethodDelete, "/api/sites/ant", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/sites/ant", nil, nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestPublishedAndStats(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := do(t, s, http.MethodGet, "/api/sites/ant/published", nil, nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without pathstore, got %d", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api/stats", nil, nil)
	var stats struct {
		Sites          int  `json:"sites"`
		Entries        int  `json:"entries"`
		PublishEnabled bool `json:"publish_enabled"`
	}
	decode(t, rec, &stats)
	if stats.Sites != 1 || stats.Entries != 54 || stats.PublishEnabled {
		t.Errorf("unexpected stats %+v", stats)
	}
}
