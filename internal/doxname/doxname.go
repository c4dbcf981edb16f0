// Package doxname implements the generator's naming rules: the escaping of
// search keys and page file names, link splitting and label unescaping.
package doxname

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// SearchID returns the search key for a symbol name. Bytes outside
// [A-Za-z0-9] below 0x80 are written as _XX hex, and the result is
// lower-cased, including non-ASCII letters when the name is valid UTF-8.
func SearchID(name string) string {
	const hex = "0123456789abcdef"
	var sb strings.Builder
	sb.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isIDByte(c) {
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('_')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0xf])
	}
	id := sb.String()
	if utf8.ValidString(id) {
		return strings.ToLower(id)
	}
	return id
}

func isIDByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

// DecodeSearchID reverses SearchID up to case.
func DecodeSearchID(key string) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c != '_' {
			sb.WriteByte(c)
			continue
		}
		if i+2 >= len(key) {
			return "", fmt.Errorf("truncated escape at offset %d in %q", i, key)
		}
		hi, ok1 := unhex(key[i+1])
		lo, ok2 := unhex(key[i+2])
		if !ok1 || !ok2 {
			return "", fmt.Errorf("bad escape %q at offset %d", key[i:i+3], i)
		}
		sb.WriteByte(hi<<4 | lo)
		i += 2
	}
	return sb.String(), nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Unescape decodes HTML character references in a generated label.
func Unescape(label string) string {
	if !strings.Contains(label, "&") {
		return label
	}
	return html.UnescapeString(label)
}

// fileSep joins a member label and its defining file in search scripts
// ("&#160;" once unescaped).
const fileSep = ":\u00a0"

// SplitScope separates a search label of the form "name():&#160;file.cc"
// into the scope part and the defining file. Labels without the suffix are
// returned whole with an empty file.
func SplitScope(label string) (scope, file string) {
	label = Unescape(label)
	if i := strings.Index(label, fileSep); i >= 0 {
		return label[:i], label[i+len(fileSep):]
	}
	return label, ""
}

// SplitLink splits a generated link such as "../classfoo.html#a12" into the
// page file name and the anchor. The relative prefix search scripts use is
// removed.
func SplitLink(link string) (page, anchor string) {
	link = strings.TrimPrefix(link, "../")
	if i := strings.IndexByte(link, '#'); i >= 0 {
		return link[:i], link[i+1:]
	}
	return link, ""
}

// Page kinds recognised by DecodePageName.
const (
	KindClass     = "class"
	KindStruct    = "struct"
	KindUnion     = "union"
	KindInterface = "interface"
	KindNamespace = "namespace"
	KindFile      = "file"
	KindSource    = "source"
	KindMembers   = "members"
	KindDir       = "dir"
	KindGroup     = "group"
	KindPage      = "page"
)

// PageName is the decoded form of a generated page file name.
type PageName struct {
	Kind string `json:"kind" yaml:"kind"`
	Name string `json:"name" yaml:"name"`
}

var compoundPrefixes = []string{KindNamespace, KindInterface, KindStruct, KindClass, KindUnion}

// indexPages are generated listing pages whose names collide with the
// compound prefixes.
var indexPages = []string{"namespaces", "namespacemembers", "classes", "structs", "unions", "interfaces"}

// DecodePageName recovers the compound kind and qualified name from a page
// file name like "classant_1_1calibration_1_1_energy.html".
func DecodePageName(file string) PageName {
	base := file
	if i := strings.IndexByte(base, '#'); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSuffix(base, ".html")

	switch {
	case strings.HasPrefix(base, "dir_"):
		return PageName{Kind: KindDir, Name: strings.TrimPrefix(base, "dir_")}
	case strings.HasPrefix(base, "group__"):
		return PageName{Kind: KindGroup, Name: UnescapeFileName(strings.TrimPrefix(base, "group__"))}
	case strings.HasSuffix(base, "_source"):
		return PageName{Kind: KindSource, Name: UnescapeFileName(strings.TrimSuffix(base, "_source"))}
	case strings.HasSuffix(base, "-members"):
		inner := DecodePageName(strings.TrimSuffix(base, "-members"))
		return PageName{Kind: KindMembers, Name: inner.Name}
	}

	// Escaped dots only occur in file names.
	if full := UnescapeFileName(base); strings.Contains(full, ".") && !strings.Contains(full, "::") {
		return PageName{Kind: KindFile, Name: full}
	}
	for _, p := range indexPages {
		if strings.HasPrefix(base, p) {
			return PageName{Kind: KindPage, Name: base}
		}
	}
	for _, p := range compoundPrefixes {
		if strings.HasPrefix(base, p) && len(base) > len(p) {
			return PageName{Kind: p, Name: UnescapeFileName(strings.TrimPrefix(base, p))}
		}
	}
	return PageName{Kind: KindPage, Name: base}
}

var nameEscapes = map[string]byte{
	"1": ':', "2": '/', "3": '<', "4": '>', "5": '*', "6": '&', "7": '|', "8": '.', "9": '!',
	"00": ',', "01": ' ', "02": '{', "03": '}', "04": '?', "05": '^', "06": '%',
	"07": '(', "08": ')', "09": '+', "0a": '=', "0b": '$', "0c": '\\', "0d": '@',
	"0e": ']', "0f": '[', "0g": '#', "0h": '"', "0i": '~', "0j": '\'', "0k": ';', "0l": '`',
}

// UnescapeFileName reverses the generator's file-name escaping: "__" is an
// underscore, "_x" an upper-case letter and "_N"/"_0N" a punctuation byte.
func UnescapeFileName(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' || i+1 >= len(s) {
			sb.WriteByte(c)
			continue
		}
		n := s[i+1]
		switch {
		case n == '_':
			sb.WriteByte('_')
			i++
		case n >= 'a' && n <= 'z':
			sb.WriteByte(n - ('a' - 'A'))
			i++
		case n == '0' && i+2 < len(s):
			if b, ok := nameEscapes[s[i+1:i+3]]; ok {
				sb.WriteByte(b)
				i += 2
			} else {
				sb.WriteByte(c)
			}
		case n >= '1' && n <= '9':
			sb.WriteByte(nameEscapes[string(n)])
			i++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// EscapeFileName applies the generator's file-name escaping to a qualified
// name; it is the inverse of UnescapeFileName.
func EscapeFileName(name string) string {
	rev := make(map[byte]string, len(nameEscapes))
	for k, v := range nameEscapes {
		rev[v] = k
	}
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_':
			sb.WriteString("__")
		case c >= 'A' && c <= 'Z':
			sb.WriteByte('_')
			sb.WriteByte(c + ('a' - 'A'))
		default:
			if esc, ok := rev[c]; ok {
				sb.WriteByte('_')
				sb.WriteString(esc)
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}
