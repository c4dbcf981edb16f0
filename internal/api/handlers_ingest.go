package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/dgallion1/doxnav/internal/pipeline"
	"github.com/dgallion1/doxnav/internal/searchindex"
	"github.com/go-chi/chi/v5"
)

var siteIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("upload exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	siteID := strings.TrimSpace(r.FormValue("site_id"))
	if siteID != "" && !siteIDPattern.MatchString(siteID) {
		jsonError(w, "site_id must be 1-64 letters, digits, '-' or '_'", http.StatusBadRequest)
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	if len(headers) > s.cfg.MaxUploadFiles {
		jsonError(w, fmt.Sprintf("too many files (max %d)", s.cfg.MaxUploadFiles), http.StatusRequestEntityTooLarge)
		return
	}
	paths := r.MultipartForm.Value["paths"]
	if len(paths) > 0 && len(paths) != len(headers) {
		jsonError(w, "paths must have one entry per file", http.StatusBadRequest)
		return
	}

	files := make(map[string][]byte, len(headers))
	var total int64
	for i, fh := range headers {
		name := fh.Filename
		if len(paths) > 0 {
			name = paths[i]
		}
		p, err := bundlePath(name)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, err := readPart(fh, s.cfg.MaxUploadBytes-total)
		if err != nil {
			jsonError(w, fmt.Sprintf("%s: %s", p, err), http.StatusRequestEntityTooLarge)
			return
		}
		total += int64(len(data))
		files[p] = data
	}

	job := pipeline.NewJob(siteID, strings.TrimSpace(r.FormValue("name")), files, r.FormValue("force") == "true")
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"site_id":  job.SiteID,
		"status":   pipeline.StatusQueued,
		"files":    len(files),
		"poll_url": fmt.Sprintf("/api/ingest/%s/status", job.ID),
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	body := map[string]any{
		"job_id":   snap.ID,
		"site_id":  snap.SiteID,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"progress": snap.Progress,
	}
	if snap.DuplicateOf != "" {
		body["duplicate_of"] = snap.DuplicateOf
	}
	writeJSON(w, http.StatusOK, body)
}

// readPart reads one uploaded file, failing once more than limit bytes
// would be read.
func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	if limit <= 0 || fh.Size > limit {
		return nil, errors.New("upload exceeds max size")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, errors.New("upload exceeds max size")
	}
	return data, nil
}

// bundlePath turns a client-supplied file name into a clean relative path
// inside the bundle. Multipart file names arrive without directories, so a
// bare search shard name is placed under search/.
func bundlePath(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid path %q", name)
		}
	}
	p := strings.TrimLeft(path.Clean("/"+name), "/")
	if p == "" {
		return "", fmt.Errorf("invalid path %q", name)
	}
	if !strings.Contains(p, "/") {
		if _, _, ok := searchindex.ShardInfo(p); ok {
			p = "search/" + p
		}
	}
	return p, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
