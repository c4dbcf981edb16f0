package searchindex

import (
	"sort"
	"strings"

	"github.com/dgallion1/doxnav/internal/doxname"
)

// Index is an immutable, key-ordered collection of search entries.
type Index struct {
	entries []Entry        // sorted by key, stable across shards
	byKey   map[string][]int
	counts  map[string]int // entries per category
}

// NewIndex builds an index. Entries keep their relative order for equal keys.
func NewIndex(entries ...Entry) *Index {
	idx := &Index{
		entries: make([]Entry, len(entries)),
		byKey:   make(map[string][]int),
		counts:  make(map[string]int),
	}
	copy(idx.entries, entries)
	sort.SliceStable(idx.entries, func(i, j int) bool {
		return idx.entries[i].Key < idx.entries[j].Key
	})
	for i, e := range idx.entries {
		idx.byKey[e.Key] = append(idx.byKey[e.Key], i)
		idx.counts[e.Category]++
	}
	return idx
}

// Len returns the number of entries.
func (x *Index) Len() int { return len(x.entries) }

// Entries returns the entries in key order. The slice must not be modified.
func (x *Index) Entries() []Entry { return x.entries }

// Get returns every entry with the given key, across categories.
func (x *Index) Get(key string) []Entry {
	ids := x.byKey[key]
	out := make([]Entry, 0, len(ids))
	for _, i := range ids {
		out = append(out, x.entries[i])
	}
	return out
}

// Categories returns the number of entries per category.
func (x *Index) Categories() map[string]int {
	out := make(map[string]int, len(x.counts))
	for k, v := range x.counts {
		out[k] = v
	}
	return out
}

// Query selects entries for Lookup.
type Query struct {
	Text     string
	Category string // empty matches every category
	Limit    int    // 0 means no limit
}

// Match is a lookup result.
type Match struct {
	Entry
	Exact bool `json:"exact"`
}

// NormalizeQuery maps typed text onto the key space: surrounding space is
// dropped and the text is encoded like a symbol name.
func NormalizeQuery(text string) string {
	return doxname.SearchID(strings.TrimSpace(text))
}

// Lookup returns entries whose key starts with the normalized query text.
// Exact key matches come first, then the rest in key order. An empty query
// matches nothing.
func (x *Index) Lookup(q Query) []Match {
	prefix := NormalizeQuery(q.Text)
	if prefix == "" {
		return nil
	}
	start := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Key >= prefix
	})

	var exact, partial []Match
	for i := start; i < len(x.entries); i++ {
		e := x.entries[i]
		if !strings.HasPrefix(e.Key, prefix) {
			break
		}
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		if e.Key == prefix {
			exact = append(exact, Match{Entry: e, Exact: true})
		} else {
			partial = append(partial, Match{Entry: e})
		}
	}
	out := append(exact, partial...)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
