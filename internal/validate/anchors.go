package validate

import (
	"fmt"
	"io/fs"
	"path"

	"golang.org/x/net/html"
)

// AnchorScanner collects the id and name attributes of generated pages.
type AnchorScanner struct {
	fsys fs.FS
	dir  string
}

// NewAnchorScanner reads pages from dir within fsys. The generator writes
// pages next to navtreedata.js, which may be nested (e.g. "html/").
func NewAnchorScanner(fsys fs.FS, dir string) *AnchorScanner {
	return &AnchorScanner{fsys: fsys, dir: dir}
}

// Anchors returns the set of fragment targets in page.
func (s *AnchorScanner) Anchors(page string) (map[string]bool, error) {
	f, err := s.fsys.Open(s.resolve(page))
	if err != nil {
		return nil, fmt.Errorf("page not found: %s", page)
	}
	defer f.Close()

	doc, err := html.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", page, err)
	}
	ids := make(map[string]bool)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" || (a.Key == "name" && n.Data == "a") {
					ids[a.Val] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return ids, nil
}

func (s *AnchorScanner) resolve(page string) string {
	if s.dir == "" || s.dir == "." {
		return page
	}
	return path.Join(s.dir, page)
}
