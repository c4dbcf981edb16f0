// Package report renders a site summary and its validation findings as
// Markdown and as sanitized HTML.
package report

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/validate"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// MaxProblems caps the problems table; the rest are counted only.
const MaxProblems = 500

// Markdown writes the report for site and its validation result.
func Markdown(site *bundle.Site, res *validate.Result) string {
	var b strings.Builder
	title := site.Name
	if title == "" {
		title = site.ID
	}
	if title == "" {
		title = "documentation bundle"
	}
	fmt.Fprintf(&b, "# Report: %s\n\n", escape(title))

	status := "**OK**"
	if !res.OK() {
		status = "**FAILED**"
	}
	fmt.Fprintf(&b, "Validation: %s (%d errors, %d warnings)\n\n", status, res.Errors, res.Warnings)
	if site.ContentHash != "" {
		fmt.Fprintf(&b, "Content hash: `%s`\n\n", site.ContentHash)
	}

	b.WriteString("## Navigation\n\n")
	if site.Nav == nil {
		b.WriteString("No navigation tree.\n\n")
	} else {
		st := site.Nav.Stats()
		b.WriteString("| Nodes | Leaves | Depth | Links | Unresolved |\n|---|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n", st.Nodes, st.Leaves, st.MaxDepth, st.Links, st.Unresolved)
	}

	b.WriteString("## Search index\n\n")
	cats := site.Search.Categories()
	if len(cats) == 0 {
		b.WriteString("No search shards.\n\n")
	} else {
		names := make([]string, 0, len(cats))
		for c := range cats {
			names = append(names, c)
		}
		sort.Strings(names)
		b.WriteString("| Category | Entries |\n|---|---|\n")
		for _, c := range names {
			fmt.Fprintf(&b, "| %s | %d |\n", escape(c), cats[c])
		}
		fmt.Fprintf(&b, "\n%d entries in %d shards.\n\n", site.Search.Len(), site.ShardCount)
	}

	b.WriteString("## Problems\n\n")
	if len(res.Problems) == 0 {
		b.WriteString("None.\n")
		return b.String()
	}
	b.WriteString("| Severity | Code | Where | Message |\n|---|---|---|---|\n")
	for i, p := range res.Problems {
		if i == MaxProblems {
			fmt.Fprintf(&b, "\n%d more not shown.\n", len(res.Problems)-MaxProblems)
			break
		}
		fmt.Fprintf(&b, "| %s | `%s` | %s | %s |\n", p.Severity, p.Code, escape(p.Path), escape(p.Message))
	}
	return b.String()
}

var (
	md        = goldmark.New(goldmark.WithExtensions(extension.Table))
	cellAlign = regexp.MustCompile(`^(left|right|center)$`)
	policy    = newPolicy()
)

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("align").Matching(cellAlign).OnElements("th", "td")
	return p
}

// HTML renders the Markdown report and sanitizes the result. Labels and
// messages come from uploaded files and are treated as untrusted.
func HTML(site *bundle.Site, res *validate.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(site, res)), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return policy.SanitizeBytes(buf.Bytes()), nil
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;", "\n", " ",
)

func escape(s string) string {
	return mdEscaper.Replace(s)
}
