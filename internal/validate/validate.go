// Package validate runs structural well-formedness checks over a loaded
// documentation site. Findings are data, not Go errors.
package validate

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/doxname"
	"github.com/dgallion1/doxnav/internal/navtree"
	"github.com/dgallion1/doxnav/internal/searchindex"
)

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem codes.
const (
	CodeNavLabel        = "nav.label"
	CodeNavLink         = "nav.link"
	CodeNavChildrenRef  = "nav.children_ref"
	CodeNavIndexOrder   = "nav.index_order"
	CodeSearchKey       = "search.key"
	CodeSearchDuplicate = "search.duplicate_key"
	CodeSearchKeyMatch  = "search.key_mismatch"
	CodeSearchOccs      = "search.occurrences"
	CodeSearchPage      = "search.page"
	CodePageMissing     = "link.page_missing"
	CodeAnchorMissing   = "link.anchor_missing"
	CodeLoad            = "load.warning"
)

// Problem is one finding.
type Problem struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Path     string   `json:"path"` // where: nav index path or shard:key
	Message  string   `json:"message"`
}

// Result is the outcome of checking one site.
type Result struct {
	Problems []Problem `json:"problems"`
	Errors   int       `json:"errors"`
	Warnings int       `json:"warnings"`
	Checked  Counts    `json:"checked"`
}

// Counts records how much was inspected.
type Counts struct {
	NavNodes    int `json:"nav_nodes"`
	Entries     int `json:"entries"`
	Occurrences int `json:"occurrences"`
	Pages       int `json:"pages"`
	Anchors     int `json:"anchors"`
}

// OK reports whether no errors were found. Warnings do not count.
func (r *Result) OK() bool { return r.Errors == 0 }

func (r *Result) add(code string, sev Severity, path, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Code: code, Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	if sev == SeverityError {
		r.Errors++
	} else {
		r.Warnings++
	}
}

// Options tunes Site.
type Options struct {
	// SkipLinks disables the page/anchor existence check even when pages
	// are available.
	SkipLinks bool
}

// Site checks everything a loaded site carries.
func Site(site *bundle.Site, opts Options) *Result {
	r := &Result{Problems: []Problem{}}
	for _, w := range site.Warnings {
		r.add(CodeLoad, SeverityWarning, "", "%s", w)
	}
	if site.Nav != nil {
		checkNav(r, site.Nav)
	}
	if site.Search != nil {
		checkSearch(r, site.Search.Entries())
	}
	if site.Pages != nil && !opts.SkipLinks {
		checkLinks(r, site)
	}
	return r
}

// Nav checks a navigation tree on its own.
func Nav(tree *navtree.Tree) *Result {
	r := &Result{Problems: []Problem{}}
	checkNav(r, tree)
	return r
}

// Entries checks search entries on their own.
func Entries(entries []searchindex.Entry) *Result {
	r := &Result{Problems: []Problem{}}
	checkSearch(r, entries)
	return r
}

func checkNav(r *Result, tree *navtree.Tree) {
	for _, fn := range tree.Flatten() {
		r.Checked.NavNodes++
		if strings.TrimSpace(fn.Label) == "" {
			r.add(CodeNavLabel, SeverityError, "nav/"+fn.Path, "empty label")
		}
		if fn.Link != "" && strings.IndexFunc(fn.Link, unicode.IsSpace) >= 0 {
			r.add(CodeNavLink, SeverityError, "nav/"+fn.Path, "link %q contains whitespace", fn.Link)
		}
	}
	for _, ref := range tree.ChildRefs() {
		r.add(CodeNavChildrenRef, SeverityWarning, "nav", "child script %s.js not supplied", ref)
	}
	for i := 1; i < len(tree.Index); i++ {
		if tree.Index[i-1] > tree.Index[i] {
			r.add(CodeNavIndexOrder, SeverityWarning, fmt.Sprintf("nav/index/%d", i), "index entry %q sorts before %q", tree.Index[i], tree.Index[i-1])
		}
	}
}

func checkSearch(r *Result, entries []searchindex.Entry) {
	// key uniqueness is per exact display name
	seen := make(map[string]map[string]string) // display -> key -> first location
	for _, e := range entries {
		r.Checked.Entries++
		where := e.Shard + ":" + e.Key
		if e.Key == "" {
			r.add(CodeSearchKey, SeverityError, where, "empty key for %q", e.DisplayName)
		}
		if len(e.Occurrences) == 0 {
			r.add(CodeSearchOccs, SeverityError, where, "no occurrences")
		}
		if want := doxname.SearchID(e.DisplayName); e.Key != "" && e.DisplayName != "" && e.Key != want {
			r.add(CodeSearchKeyMatch, SeverityWarning, where, "key does not encode display name %q (expected %q)", e.DisplayName, want)
		}

		byKey := seen[e.DisplayName]
		if byKey == nil {
			byKey = make(map[string]string)
			seen[e.DisplayName] = byKey
		}
		if first, dup := byKey[e.Category+"/"+e.Key]; dup {
			r.add(CodeSearchDuplicate, SeverityError, where, "key repeated for %q (first at %s)", e.DisplayName, first)
		} else {
			byKey[e.Category+"/"+e.Key] = where
		}

		for i, o := range e.Occurrences {
			r.Checked.Occurrences++
			if o.Page == "" {
				r.add(CodeSearchPage, SeverityError, fmt.Sprintf("%s/%d", where, i), "occurrence has no page")
			}
		}
	}
}

func checkLinks(r *Result, site *bundle.Site) {
	targets := make(map[string]map[string]bool) // page -> anchors wanted
	want := func(link string) {
		page, anchor := doxname.SplitLink(link)
		if page == "" {
			return
		}
		if targets[page] == nil {
			targets[page] = make(map[string]bool)
		}
		if anchor != "" {
			targets[page][anchor] = true
		}
	}
	if site.Nav != nil {
		for _, fn := range site.Nav.Flatten() {
			if fn.Link != "" {
				want(fn.Link)
			}
		}
	}
	for _, e := range site.Search.Entries() {
		for _, o := range e.Occurrences {
			want(o.Link)
		}
	}

	pages := make([]string, 0, len(targets))
	for p := range targets {
		pages = append(pages, p)
	}
	sort.Strings(pages)

	scanner := NewAnchorScanner(site.Pages, site.PageDir)
	for _, page := range pages {
		r.Checked.Pages++
		ids, err := scanner.Anchors(page)
		if err != nil {
			r.add(CodePageMissing, SeverityError, page, "%v", err)
			continue
		}
		anchors := make([]string, 0, len(targets[page]))
		for a := range targets[page] {
			anchors = append(anchors, a)
		}
		sort.Strings(anchors)
		for _, a := range anchors {
			r.Checked.Anchors++
			if !ids[a] {
				r.add(CodeAnchorMissing, SeverityError, page+"#"+a, "anchor not found in page")
			}
		}
	}
}
