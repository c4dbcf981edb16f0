package searchindex

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgallion1/doxnav/internal/doxname"
	"github.com/dgallion1/doxnav/internal/jsdata"
)

// VarSearchData is the variable every search shard declares.
const VarSearchData = "searchData"

// Occurrence is one place a symbol is documented.
type Occurrence struct {
	Link       string `json:"link" yaml:"link"` // as written, e.g. "../classfoo.html#a12"
	Page       string `json:"page" yaml:"page"`
	Anchor     string `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	InFrame    bool   `json:"in_frame" yaml:"in_frame"`
	Label      string `json:"label" yaml:"label"` // raw scope label
	Scope      string `json:"scope" yaml:"scope"`
	SourceFile string `json:"source_file,omitempty" yaml:"source_file,omitempty"`
}

// Entry is one indexed symbol.
type Entry struct {
	Key         string       `json:"key" yaml:"key"`
	DisplayName string       `json:"display_name" yaml:"display_name"`
	Category    string       `json:"category" yaml:"category"`
	Shard       string       `json:"shard" yaml:"shard"`
	Occurrences []Occurrence `json:"occurrences" yaml:"occurrences"`
}

var shardName = regexp.MustCompile(`^([a-z]+)_([0-9a-f]+)\.js$`)

// ShardInfo extracts the category and shard number from a search script
// name such as "search/variables_7.js".
func ShardInfo(name string) (category string, n int, ok bool) {
	m := shardName.FindStringSubmatch(path.Base(name))
	if m == nil {
		return "", 0, false
	}
	v, err := strconv.ParseInt(m[2], 16, 32)
	if err != nil {
		return "", 0, false
	}
	return m[1], int(v), true
}

// ParseShard decodes the entries of one search script.
func ParseShard(name string, s *jsdata.Script) ([]Entry, error) {
	category, _, ok := ShardInfo(name)
	if !ok {
		return nil, fmt.Errorf("%s: not a search shard name", name)
	}
	raw, ok := s.Get(VarSearchData)
	if !ok {
		return nil, fmt.Errorf("%s: missing %s", name, VarSearchData)
	}
	items, err := jsdata.AsArray(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	shard := path.Base(name)
	entries := make([]Entry, 0, len(items))
	for i, it := range items {
		e, err := decodeEntry(it)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %d: %w", name, i, err)
		}
		e.Category = category
		e.Shard = shard
		entries = append(entries, e)
	}
	return entries, nil
}

// decodeEntry reads ['key',['Name',[link,inframe,label],...]].
func decodeEntry(raw any) (Entry, error) {
	fields, err := jsdata.AsArray(raw)
	if err != nil {
		return Entry{}, err
	}
	if len(fields) != 2 {
		return Entry{}, fmt.Errorf("expected [key, body], got %d elements", len(fields))
	}
	key, ok := fields[0].(string)
	if !ok {
		return Entry{}, fmt.Errorf("key is not a string")
	}
	body, err := jsdata.AsArray(fields[1])
	if err != nil {
		return Entry{}, fmt.Errorf("%s: body: %w", key, err)
	}
	if len(body) == 0 {
		return Entry{}, fmt.Errorf("%s: empty body", key)
	}
	display, ok := body[0].(string)
	if !ok {
		return Entry{}, fmt.Errorf("%s: display name is not a string", key)
	}

	e := Entry{Key: key, DisplayName: doxname.Unescape(display), Occurrences: []Occurrence{}}
	for i, rawOcc := range body[1:] {
		occ, err := decodeOccurrence(rawOcc)
		if err != nil {
			return Entry{}, fmt.Errorf("%s: occurrence %d: %w", key, i, err)
		}
		e.Occurrences = append(e.Occurrences, occ)
	}
	return e, nil
}

func decodeOccurrence(raw any) (Occurrence, error) {
	fields, err := jsdata.AsArray(raw)
	if err != nil {
		return Occurrence{}, err
	}
	if len(fields) < 1 {
		return Occurrence{}, fmt.Errorf("empty occurrence")
	}
	link, ok := jsdata.AsString(fields[0])
	if !ok {
		return Occurrence{}, fmt.Errorf("link is not a string")
	}
	occ := Occurrence{Link: link}
	occ.Page, occ.Anchor = doxname.SplitLink(link)
	if len(fields) > 1 {
		switch v := fields[1].(type) {
		case float64:
			occ.InFrame = v != 0
		case bool:
			occ.InFrame = v
		}
	}
	if len(fields) > 2 {
		label, ok := jsdata.AsString(fields[2])
		if !ok {
			return Occurrence{}, fmt.Errorf("scope label is not a string")
		}
		occ.Label = label
		occ.Scope, occ.SourceFile = doxname.SplitScope(label)
	}
	return occ, nil
}

// Qualified returns the best qualified name for an occurrence: the scope
// label when present, else the name decoded from the page file.
func (o Occurrence) Qualified() string {
	if o.Scope != "" {
		return o.Scope
	}
	return doxname.DecodePageName(o.Page).Name
}

// Initial returns the lower-case first character of the key, the unit the
// generator groups shards by.
func (e Entry) Initial() string {
	if e.Key == "" {
		return ""
	}
	if strings.HasPrefix(e.Key, "_") && len(e.Key) >= 3 {
		return e.Key[:3]
	}
	return e.Key[:1]
}
