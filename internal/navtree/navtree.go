package navtree

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgallion1/doxnav/internal/jsdata"
)

// Variable names the generator uses in navtreedata.js.
const (
	VarTree  = "NAVTREE"
	VarIndex = "NAVTREEINDEX"
)

// Node is one entry of the navigation sidebar.
type Node struct {
	Label       string  `json:"label" yaml:"label"`
	Link        string  `json:"link,omitempty" yaml:"link,omitempty"`                 // page id, empty when the generator wrote null
	Children    []*Node `json:"children,omitempty" yaml:"children,omitempty"`         // inline or resolved children
	ChildrenRef string  `json:"children_ref,omitempty" yaml:"children_ref,omitempty"` // script holding the children
}

// IsLeaf reports whether the node has neither inline nor referenced children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0 && n.ChildrenRef == ""
}

// Tree is the decoded contents of navtreedata.js.
type Tree struct {
	Root     []*Node           `json:"root" yaml:"root"`
	Index    []string          `json:"index,omitempty" yaml:"index,omitempty"`       // first page of each navtreeindex chunk
	Messages map[string]string `json:"messages,omitempty" yaml:"messages,omitempty"` // other string vars (SYNCONMSG, ...)
}

// FromScript builds a tree from a decoded navtreedata.js.
func FromScript(s *jsdata.Script) (*Tree, error) {
	raw, ok := s.Get(VarTree)
	if !ok {
		return nil, fmt.Errorf("missing %s", VarTree)
	}
	root, err := DecodeNodes(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", VarTree, err)
	}
	t := &Tree{Root: root}

	if rawIdx, ok := s.Get(VarIndex); ok {
		items, err := jsdata.AsArray(rawIdx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", VarIndex, err)
		}
		for i, it := range items {
			page, ok := it.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected string", VarIndex, i)
			}
			t.Index = append(t.Index, page)
		}
	}

	for _, name := range s.Order {
		if name == VarTree || name == VarIndex {
			continue
		}
		if str, ok := s.Vars[name].(string); ok {
			if t.Messages == nil {
				t.Messages = make(map[string]string)
			}
			t.Messages[name] = str
		}
	}
	return t, nil
}

// DecodeNodes converts a decoded [label, link, children] array list into
// nodes. Child-tree scripts use the same shape.
func DecodeNodes(raw any) ([]*Node, error) {
	items, err := jsdata.AsArray(raw)
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(items))
	for i, it := range items {
		n, err := decodeNode(it)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeNode(raw any) (*Node, error) {
	fields, err := jsdata.AsArray(raw)
	if err != nil {
		return nil, err
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("expected at least [label, link], got %d elements", len(fields))
	}
	label, ok := fields[0].(string)
	if !ok {
		return nil, fmt.Errorf("label is not a string")
	}
	link, ok := jsdata.AsString(fields[1])
	if !ok {
		return nil, fmt.Errorf("%q: link is neither string nor null", label)
	}
	n := &Node{Label: label, Link: link}
	if len(fields) < 3 {
		return n, nil
	}
	switch c := fields[2].(type) {
	case nil:
	case string:
		n.ChildrenRef = c
	case []any:
		children, err := DecodeNodes(c)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", label, err)
		}
		n.Children = children
	default:
		return nil, fmt.Errorf("%q: children must be null, a script name or an array", label)
	}
	return n, nil
}

// Walk visits every node in pre-order. Returning false from fn stops the
// descent into that node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			if fn(n, depth) {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(t.Root, 0)
}

// Find returns the first node (pre-order) whose link equals link.
func (t *Tree) Find(link string) *Node {
	path := t.nodePath(link)
	if len(path) == 0 {
		return nil
	}
	return path[len(path)-1]
}

// Path returns the labels from the root down to the first node linking to
// link, or nil when no node does.
func (t *Tree) Path(link string) []string {
	nodes := t.nodePath(link)
	if nodes == nil {
		return nil
	}
	labels := make([]string, len(nodes))
	for i, n := range nodes {
		labels[i] = n.Label
	}
	return labels
}

func (t *Tree) nodePath(link string) []*Node {
	if link == "" {
		return nil
	}
	var stack []*Node
	var search func(nodes []*Node) bool
	search = func(nodes []*Node) bool {
		for _, n := range nodes {
			stack = append(stack, n)
			if n.Link == link || search(n.Children) {
				return true
			}
			stack = stack[:len(stack)-1]
		}
		return false
	}
	if search(t.Root) {
		return stack
	}
	return nil
}

// FlatNode is a node with its position in the tree.
type FlatNode struct {
	Path  string `json:"path" yaml:"path"` // index path, e.g. "0/4/1"
	Depth int    `json:"depth" yaml:"depth"`
	Label string `json:"label" yaml:"label"`
	Link  string `json:"link,omitempty" yaml:"link,omitempty"`
}

// Flatten lists every node in pre-order with its index path.
func (t *Tree) Flatten() []FlatNode {
	var out []FlatNode
	var walk func(nodes []*Node, prefix string, depth int)
	walk = func(nodes []*Node, prefix string, depth int) {
		for i, n := range nodes {
			p := fmt.Sprintf("%d", i)
			if prefix != "" {
				p = prefix + "/" + p
			}
			out = append(out, FlatNode{Path: p, Depth: depth, Label: n.Label, Link: n.Link})
			walk(n.Children, p, depth+1)
		}
	}
	walk(t.Root, "", 0)
	return out
}

// Stats summarises a tree.
type Stats struct {
	Nodes      int `json:"nodes"`
	Leaves     int `json:"leaves"`
	MaxDepth   int `json:"max_depth"`
	Links      int `json:"links"`
	Unresolved int `json:"unresolved_refs"`
}

// Stats counts nodes, leaves and links.
func (t *Tree) Stats() Stats {
	var s Stats
	t.Walk(func(n *Node, depth int) bool {
		s.Nodes++
		if n.IsLeaf() {
			s.Leaves++
		}
		if n.Link != "" {
			s.Links++
		}
		if n.ChildrenRef != "" && n.Children == nil {
			s.Unresolved++
		}
		if depth+1 > s.MaxDepth {
			s.MaxDepth = depth + 1
		}
		return true
	})
	return s
}

// ChunkFor returns the navtreeindex chunk that holds page: the last chunk
// whose first page sorts at or before it. It returns -1 when the tree has no
// index or page sorts before the first chunk.
func (t *Tree) ChunkFor(page string) int {
	if len(t.Index) == 0 {
		return -1
	}
	i := sort.Search(len(t.Index), func(i int) bool { return t.Index[i] > page })
	return i - 1
}

// ChildRefs returns the distinct child-tree script names that have not been
// resolved yet, in tree order. A node whose script resolved to an empty
// list holds a non-nil empty Children slice.
func (t *Tree) ChildRefs() []string {
	seen := make(map[string]bool)
	var refs []string
	t.Walk(func(n *Node, _ int) bool {
		if n.ChildrenRef != "" && n.Children == nil && !seen[n.ChildrenRef] {
			seen[n.ChildrenRef] = true
			refs = append(refs, n.ChildrenRef)
		}
		return true
	})
	return refs
}

// Resolve attaches the children of every node referring to script name.
// It returns the number of nodes updated.
func (t *Tree) Resolve(name string, children []*Node) int {
	if children == nil {
		children = []*Node{}
	}
	updated := 0
	t.Walk(func(n *Node, _ int) bool {
		if n.ChildrenRef == name && n.Children == nil {
			n.Children = children
			updated++
			return false
		}
		return true
	})
	return updated
}

// String renders the tree as an indented outline.
func (t *Tree) String() string {
	var sb strings.Builder
	t.Walk(func(n *Node, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(n.Label)
		if n.Link != "" {
			sb.WriteString(" (")
			sb.WriteString(n.Link)
			sb.WriteString(")")
		}
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}
