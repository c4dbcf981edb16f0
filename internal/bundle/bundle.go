// Package bundle loads a generated documentation site (its navigation tree,
// search shards and optionally its HTML pages) into memory.
package bundle

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"testing/fstest"
	"time"

	"github.com/dgallion1/doxnav/internal/jsdata"
	"github.com/dgallion1/doxnav/internal/navtree"
	"github.com/dgallion1/doxnav/internal/searchindex"
)

// NavTreeFile is the generator's navigation script.
const NavTreeFile = "navtreedata.js"

var (
	// ErrEmptyBundle is returned when neither a navigation tree nor any
	// search shard is present.
	ErrEmptyBundle = errors.New("bundle contains no navtreedata.js and no search shards")
)

// Site is one loaded documentation bundle. It is read-only once loaded.
type Site struct {
	ID          string
	Name        string
	Nav         *navtree.Tree      // nil when the bundle has no navigation tree
	Search      *searchindex.Index // never nil
	Pages       fs.FS              // HTML pages, nil when none were supplied
	PageDir     string             // directory of Pages holding the generated pages
	Files       map[string][]byte  // raw uploaded files, nil for directory loads
	ContentHash string
	LoadedAt    time.Time
	Warnings    []string
	Unresolved  []string // child-tree scripts referenced but not supplied
	PageCount   int
	ShardCount  int
}

// Load reads a bundle from fsys. The navigation script may sit at any depth;
// the shallowest one wins. Search shards are the *_N.js files declaring
// searchData.
func Load(fsys fs.FS) (*Site, error) {
	var (
		navPath   string
		indexPath string
		shards    []string
		scripts = make(map[string]string) // base name -> path
		pages   int
	)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		base := path.Base(p)
		switch {
		case base == NavTreeFile:
			if navPath == "" || depth(p) < depth(navPath) {
				navPath = p
			}
		case strings.HasSuffix(base, ".html"):
			pages++
			if base == "index.html" && (indexPath == "" || depth(p) < depth(indexPath)) {
				indexPath = p
			}
		case strings.HasSuffix(base, ".js"):
			// Flat uploads lose the search/ directory, so shard-like names
			// elsewhere are tried as shards and kept as scripts too.
			if _, _, ok := searchindex.ShardInfo(base); ok {
				shards = append(shards, p)
				if inSearchDir(p) {
					return nil
				}
			}
			if _, seen := scripts[base]; !seen || depth(p) < depth(scripts[base]) {
				scripts[base] = p
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk bundle: %w", err)
	}
	if navPath == "" && len(shards) == 0 {
		return nil, ErrEmptyBundle
	}

	var hashed []string
	site := &Site{LoadedAt: time.Now().UTC(), PageCount: pages}
	if pages > 0 {
		site.Pages = fsys
		// pages sit next to navtreedata.js, or next to the top index.html
		switch {
		case navPath != "":
			site.PageDir = path.Dir(navPath)
		case indexPath != "":
			site.PageDir = path.Dir(indexPath)
		default:
			site.PageDir = "."
		}
	}

	if navPath != "" {
		tree, used, warnings, err := loadNav(fsys, navPath, scripts)
		if err != nil {
			return nil, err
		}
		hashed = append(hashed, navPath)
		hashed = append(hashed, used...)
		site.Nav = tree
		site.Warnings = append(site.Warnings, warnings...)
		site.Unresolved = tree.ChildRefs()
	}

	sort.Strings(shards)
	var entries []searchindex.Entry
	for _, p := range shards {
		s, err := decodeFile(fsys, p)
		if err != nil {
			if !inSearchDir(p) {
				continue
			}
			return nil, err
		}
		if _, ok := s.Get(searchindex.VarSearchData); !ok {
			if inSearchDir(p) {
				site.Warnings = append(site.Warnings, fmt.Sprintf("%s: no searchData, skipped", p))
			}
			continue
		}
		es, err := searchindex.ParseShard(p, s)
		if err != nil {
			return nil, err
		}
		entries = append(entries, es...)
		hashed = append(hashed, p)
		site.ShardCount++
	}
	if site.Nav == nil && site.ShardCount == 0 {
		return nil, ErrEmptyBundle
	}
	site.Search = searchindex.NewIndex(entries...)

	site.ContentHash, err = hashFiles(fsys, hashed)
	if err != nil {
		return nil, err
	}
	return site, nil
}

// LoadFiles loads a bundle from in-memory files keyed by slash-separated
// relative path, and keeps the files on the site.
func LoadFiles(files map[string][]byte) (*Site, error) {
	site, err := Load(FilesFS(files))
	if err != nil {
		return nil, err
	}
	site.Files = files
	return site, nil
}

// FilesFS exposes in-memory files as an fs.FS.
func FilesFS(files map[string][]byte) fs.FS {
	m := make(fstest.MapFS, len(files))
	for name, data := range files {
		m[strings.TrimPrefix(path.Clean(name), "/")] = &fstest.MapFile{Data: data, Mode: 0o444}
	}
	return m
}

// loadNav decodes the navigation tree and attaches child-tree scripts. It
// returns the paths of the scripts used.
func loadNav(fsys fs.FS, navPath string, scripts map[string]string) (*navtree.Tree, []string, []string, error) {
	s, err := decodeFile(fsys, navPath)
	if err != nil {
		return nil, nil, nil, err
	}
	tree, err := navtree.FromScript(s)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", navPath, err)
	}

	// Child scripts may reference further scripts; each is loaded once.
	var used, warnings []string
	tried := make(map[string]bool)
	for {
		var pending []string
		for _, ref := range tree.ChildRefs() {
			if !tried[ref] {
				pending = append(pending, ref)
			}
		}
		if len(pending) == 0 {
			break
		}
		for _, ref := range pending {
			tried[ref] = true
			p, ok := scripts[ref+".js"]
			if !ok {
				continue
			}
			cs, err := decodeFile(fsys, p)
			if err != nil {
				warnings = append(warnings, err.Error())
				continue
			}
			raw, ok := cs.Get(ref)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("%s: missing var %s", p, ref))
				continue
			}
			children, err := navtree.DecodeNodes(raw)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v", p, err))
				continue
			}
			tree.Resolve(ref, children)
			used = append(used, p)
		}
	}
	return tree, used, warnings, nil
}

func decodeFile(fsys fs.FS, p string) (*jsdata.Script, error) {
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	s, err := jsdata.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", p, err)
	}
	return s, nil
}

func hashFiles(fsys fs.FS, paths []string) (string, error) {
	sort.Strings(paths)
	h := sha256.New()
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", p, err)
		}
		fmt.Fprintf(h, "%s\x00%d\x00", p, len(data))
		h.Write(data)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func inSearchDir(p string) bool {
	return path.Base(path.Dir(p)) == "search"
}

func depth(p string) int {
	return strings.Count(p, "/")
}
