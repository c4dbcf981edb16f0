package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/doxnav/internal/bundle"
	"github.com/dgallion1/doxnav/internal/jsdata"
	"github.com/dgallion1/doxnav/internal/navtree"
	"github.com/dgallion1/doxnav/internal/searchindex"
	"golang.org/x/net/html"
)

// Script regenerates the generator's data scripts: navtreedata.js, one
// script per child tree and one search shard per category and key initial.
// Keys are slash-separated paths relative to the bundle root.
func Script(site *bundle.Site) (map[string][]byte, error) {
	files := make(map[string][]byte)
	if site.Nav != nil {
		if err := writeNav(files, site.Nav); err != nil {
			return nil, err
		}
	}
	for name, data := range SearchShards(site.Search.Entries()) {
		files[name] = data
	}
	return files, nil
}

func writeNav(files map[string][]byte, tree *navtree.Tree) error {
	var b bytes.Buffer
	children := make(map[string][]*navtree.Node)

	fmt.Fprintf(&b, "var %s =\n", navtree.VarTree)
	writeNodes(&b, tree.Root, 1, children)
	b.WriteString(";\n")

	if len(tree.Index) > 0 {
		fmt.Fprintf(&b, "\nvar %s =\n[\n", navtree.VarIndex)
		for i, page := range tree.Index {
			b.WriteString(jsdata.Quote(page, '"'))
			if i < len(tree.Index)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString("];\n")
	}

	names := make([]string, 0, len(tree.Messages))
	for name := range tree.Messages {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 0 {
		b.WriteByte('\n')
	}
	for _, name := range names {
		fmt.Fprintf(&b, "var %s = %s;\n", name, jsdata.Quote(tree.Messages[name], '\''))
	}
	files[bundle.NavTreeFile] = b.Bytes()

	// Child scripts may themselves refer to further scripts.
	written := make(map[string]bool)
	for len(children) > 0 {
		refs := make([]string, 0, len(children))
		for ref := range children {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		for _, ref := range refs {
			nodes := children[ref]
			delete(children, ref)
			if written[ref] {
				continue
			}
			written[ref] = true
			if !isIdent(ref) {
				return fmt.Errorf("child script name %q is not an identifier", ref)
			}
			var cb bytes.Buffer
			fmt.Fprintf(&cb, "var %s =\n", ref)
			writeNodes(&cb, nodes, 1, children)
			cb.WriteString(";\n")
			files[ref+".js"] = cb.Bytes()
		}
	}
	return nil
}

// writeNodes emits a node list in the generator's layout. Resolved child
// trees are split back out into their own script.
func writeNodes(b *bytes.Buffer, nodes []*navtree.Node, depth int, children map[string][]*navtree.Node) {
	b.WriteString("[\n")
	indent := strings.Repeat("  ", depth)
	for i, n := range nodes {
		link := "null"
		if n.Link != "" {
			link = jsdata.Quote(n.Link, '"')
		}
		fmt.Fprintf(b, "%s[ %s, %s, ", indent, jsdata.Quote(n.Label, '"'), link)
		switch {
		case n.ChildrenRef != "":
			if len(n.Children) > 0 {
				children[n.ChildrenRef] = n.Children
			}
			b.WriteString(jsdata.Quote(n.ChildrenRef, '"'))
			b.WriteString(" ]")
		case len(n.Children) > 0:
			writeNodes(b, n.Children, depth+1, children)
			b.WriteString(" ]")
		default:
			b.WriteString("null ]")
		}
		if i < len(nodes)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	if depth > 1 {
		b.WriteString(strings.Repeat("  ", depth-1))
	}
	b.WriteString("]")
}

// SearchShards groups entries by category and key initial and renders one
// searchData script per group. Groups are numbered in initial order within
// their category, in hex, as the generator names them.
func SearchShards(entries []searchindex.Entry) map[string][]byte {
	type group struct {
		initial string
		entries []searchindex.Entry
	}
	byCat := make(map[string]map[string]*group)
	for _, e := range entries {
		if byCat[e.Category] == nil {
			byCat[e.Category] = make(map[string]*group)
		}
		g := byCat[e.Category][e.Initial()]
		if g == nil {
			g = &group{initial: e.Initial()}
			byCat[e.Category][e.Initial()] = g
		}
		g.entries = append(g.entries, e)
	}

	files := make(map[string][]byte)
	for cat, groups := range byCat {
		initials := make([]string, 0, len(groups))
		for in := range groups {
			initials = append(initials, in)
		}
		sort.Strings(initials)
		for n, in := range initials {
			g := groups[in]
			sort.SliceStable(g.entries, func(i, j int) bool { return g.entries[i].Key < g.entries[j].Key })
			files[fmt.Sprintf("search/%s_%x.js", cat, n)] = shardScript(g.entries)
		}
	}
	return files
}

func shardScript(entries []searchindex.Entry) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "var %s=\n[\n", searchindex.VarSearchData)
	for i, e := range entries {
		fmt.Fprintf(&b, "  [%s,[%s", jsdata.Quote(e.Key, '\''), jsdata.Quote(html.EscapeString(e.DisplayName), '\''))
		for _, o := range e.Occurrences {
			inFrame := 0
			if o.InFrame {
				inFrame = 1
			}
			fmt.Fprintf(&b, ",[%s,%d", jsdata.Quote(o.Link, '\''), inFrame)
			if o.Label != "" {
				b.WriteByte(',')
				b.WriteString(jsdata.Quote(o.Label, '\''))
			}
			b.WriteByte(']')
		}
		b.WriteString("]]")
		if i < len(entries)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString("];\n")
	return b.Bytes()
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
