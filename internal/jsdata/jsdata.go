// Package jsdata decodes the data-only scripts a documentation generator
// writes next to its HTML output (navtreedata.js, navtreeindexN.js,
// search/*.js). Those files are a series of `var NAME = <literal>;`
// statements whose literals are plain arrays, objects, strings, numbers,
// booleans and null.
//
// Decoded values use the same Go types as encoding/json: string, float64,
// bool, nil, []any and map[string]any.
package jsdata

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Script is the set of variables declared by one data script.
type Script struct {
	Vars  map[string]any
	Order []string // declaration order
}

// Get returns a declared variable.
func (s *Script) Get(name string) (any, bool) {
	v, ok := s.Vars[name]
	return v, ok
}

// SyntaxError reports malformed script input.
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

// Decode parses a data script.
func Decode(src []byte) (*Script, error) {
	d := &decoder{src: src, line: 1, col: 1}
	s := &Script{Vars: make(map[string]any)}
	for {
		d.skipSpace()
		if d.eof() {
			return s, nil
		}
		if d.peek() == ';' {
			d.next()
			continue
		}
		name, err := d.statement()
		if err != nil {
			return nil, err
		}
		if _, dup := s.Vars[name.name]; !dup {
			s.Order = append(s.Order, name.name)
		}
		s.Vars[name.name] = name.value
	}
}

type assignment struct {
	name  string
	value any
}

type decoder struct {
	src  []byte
	pos  int
	line int
	col  int
}

func (d *decoder) eof() bool { return d.pos >= len(d.src) }

func (d *decoder) peek() byte {
	if d.eof() {
		return 0
	}
	return d.src[d.pos]
}

func (d *decoder) next() byte {
	c := d.src[d.pos]
	d.pos++
	if c == '\n' {
		d.line++
		d.col = 1
	} else {
		d.col++
	}
	return c
}

func (d *decoder) errorf(format string, args ...any) error {
	return &SyntaxError{Line: d.line, Column: d.col, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) skipSpace() {
	for !d.eof() {
		c := d.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			d.next()
		case c == '/' && d.pos+1 < len(d.src) && d.src[d.pos+1] == '/':
			for !d.eof() && d.peek() != '\n' {
				d.next()
			}
		case c == '/' && d.pos+1 < len(d.src) && d.src[d.pos+1] == '*':
			d.next()
			d.next()
			for !d.eof() {
				if d.peek() == '*' && d.pos+1 < len(d.src) && d.src[d.pos+1] == '/' {
					d.next()
					d.next()
					break
				}
				d.next()
			}
		case c == 0xEF && strings.HasPrefix(string(d.src[d.pos:]), "\ufeff"):
			d.pos += 3
		default:
			return
		}
	}
}

func (d *decoder) statement() (assignment, error) {
	word := d.ident()
	switch word {
	case "var", "let", "const":
		d.skipSpace()
		word = d.ident()
	}
	if word == "" {
		return assignment{}, d.errorf("expected variable declaration, found %q", d.peek())
	}
	d.skipSpace()
	if d.eof() || d.peek() != '=' {
		return assignment{}, d.errorf("expected '=' after %s", word)
	}
	d.next()
	v, err := d.value()
	if err != nil {
		return assignment{}, err
	}
	d.skipSpace()
	if !d.eof() && d.peek() == ';' {
		d.next()
	}
	return assignment{name: word, value: v}, nil
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_' || c == '$':
		return true
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case !first && c >= '0' && c <= '9':
		return true
	}
	return false
}

func (d *decoder) ident() string {
	start := d.pos
	for !d.eof() && isIdentByte(d.peek(), d.pos == start) {
		d.next()
	}
	return string(d.src[start:d.pos])
}

func (d *decoder) value() (any, error) {
	d.skipSpace()
	if d.eof() {
		return nil, d.errorf("unexpected end of input")
	}
	switch c := d.peek(); {
	case c == '[':
		return d.array()
	case c == '{':
		return d.object()
	case c == '\'' || c == '"':
		return d.str()
	case c == '-' || (c >= '0' && c <= '9'):
		return d.number()
	default:
		word := d.ident()
		switch word {
		case "null", "undefined":
			return nil, nil
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "":
			return nil, d.errorf("unexpected character %q", c)
		}
		return nil, d.errorf("unsupported identifier %q in literal", word)
	}
}

func (d *decoder) array() (any, error) {
	d.next() // [
	out := []any{}
	for {
		d.skipSpace()
		if d.eof() {
			return nil, d.errorf("unterminated array")
		}
		if d.peek() == ']' {
			d.next()
			return out, nil
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		d.skipSpace()
		if d.eof() {
			return nil, d.errorf("unterminated array")
		}
		switch d.peek() {
		case ',':
			d.next()
		case ']':
		default:
			return nil, d.errorf("expected ',' or ']' in array, found %q", d.peek())
		}
	}
}

func (d *decoder) object() (any, error) {
	d.next() // {
	out := map[string]any{}
	for {
		d.skipSpace()
		if d.eof() {
			return nil, d.errorf("unterminated object")
		}
		if d.peek() == '}' {
			d.next()
			return out, nil
		}
		var key string
		if c := d.peek(); c == '\'' || c == '"' {
			k, err := d.str()
			if err != nil {
				return nil, err
			}
			key = k
		} else {
			key = d.ident()
			if key == "" {
				return nil, d.errorf("expected object key, found %q", c)
			}
		}
		d.skipSpace()
		if d.eof() || d.peek() != ':' {
			return nil, d.errorf("expected ':' after key %q", key)
		}
		d.next()
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		out[key] = v
		d.skipSpace()
		if d.eof() {
			return nil, d.errorf("unterminated object")
		}
		switch d.peek() {
		case ',':
			d.next()
		case '}':
		default:
			return nil, d.errorf("expected ',' or '}' in object, found %q", d.peek())
		}
	}
}

func (d *decoder) str() (string, error) {
	quote := d.next()
	var sb strings.Builder
	for {
		if d.eof() {
			return "", d.errorf("unterminated string")
		}
		c := d.next()
		switch {
		case c == quote:
			return sb.String(), nil
		case c == '\n':
			return "", d.errorf("newline in string")
		case c != '\\':
			sb.WriteByte(c)
			continue
		}
		if d.eof() {
			return "", d.errorf("unterminated escape")
		}
		e := d.next()
		switch e {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '0':
			sb.WriteByte(0)
		case 'u':
			r, err := d.hexRune(4)
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
		case 'x':
			r, err := d.hexRune(2)
			if err != nil {
				return "", err
			}
			sb.WriteRune(r)
		case '\n':
			// line continuation
		default:
			sb.WriteByte(e)
		}
	}
}

func (d *decoder) hexRune(n int) (rune, error) {
	if d.pos+n > len(d.src) {
		return 0, d.errorf("short escape sequence")
	}
	v, err := strconv.ParseUint(string(d.src[d.pos:d.pos+n]), 16, 32)
	if err != nil {
		return 0, d.errorf("bad escape sequence %q", d.src[d.pos:d.pos+n])
	}
	for range n {
		d.next()
	}
	r := rune(v)
	if !utf8.ValidRune(r) {
		r = utf8.RuneError
	}
	return r, nil
}

func (d *decoder) number() (any, error) {
	start := d.pos
	if d.peek() == '-' {
		d.next()
	}
	for !d.eof() {
		c := d.peek()
		if (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
			d.next()
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(string(d.src[start:d.pos]), 64)
	if err != nil {
		return nil, d.errorf("bad number %q", d.src[start:d.pos])
	}
	return f, nil
}
