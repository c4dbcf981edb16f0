// Package export re-serializes a loaded site as JSON, YAML or as the
// generator's own data scripts.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/navtree"
	"github.com/dgallion1/doxnav/internal/searchindex"
	"gopkg.in/yaml.v3"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
	FormatScript Format = "script"
)

// ParseFormat accepts a format name, case-insensitively. "yml" is an alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "script", "js":
		return FormatScript, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// Document is the structured form of a site.
type Document struct {
	ID          string              `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string              `json:"name,omitempty" yaml:"name,omitempty"`
	ContentHash string              `json:"content_hash" yaml:"content_hash"`
	NavStats    *navtree.Stats      `json:"nav_stats,omitempty" yaml:"nav_stats,omitempty"`
	Nav         *navtree.Tree       `json:"nav,omitempty" yaml:"nav,omitempty"`
	Categories  map[string]int      `json:"categories" yaml:"categories"`
	Entries     []searchindex.Entry `json:"entries" yaml:"entries"`
}

func NewDocument(site *bundle.Site) Document {
	doc := Document{
		ID:          site.ID,
		Name:        site.Name,
		ContentHash: site.ContentHash,
		Nav:         site.Nav,
		Categories:  site.Search.Categories(),
		Entries:     site.Search.Entries(),
	}
	if site.Nav != nil {
		st := site.Nav.Stats()
		doc.NavStats = &st
	}
	return doc
}

// JSON writes the site as indented JSON.
func JSON(w io.Writer, site *bundle.Site) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(site)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// YAML writes the site as a YAML document.
func YAML(w io.Writer, site *bundle.Site) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(site)); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// Write dispatches on format. FormatScript is not a single stream; use
// Script and WriteDir for it.
func Write(w io.Writer, site *bundle.Site, format Format) error {
	switch format {
	case FormatJSON:
		return JSON(w, site)
	case FormatYAML:
		return YAML(w, site)
	}
	return fmt.Errorf("format %q cannot be streamed", format)
}

// WriteDir writes files below dir, creating directories as needed.
func WriteDir(dir string, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, files[name], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}
	return nil
}
