package jsdata

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecode_NavTreeShape(t *testing.T) {
	src := `var NAVTREE =
[
  [ "ant", "index.html", [
    [ "Todo List", "todo.html", null ],
    [ "Namespaces", null, [
      [ "Namespace List", "namespaces.html", "namespaces" ]
    ] ]
  ] ]
];

var SYNCONMSG = 'click to disable panel synchronisation';
`
	s, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"NAVTREE", "SYNCONMSG"}, s.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	want := []any{
		[]any{"ant", "index.html", []any{
			[]any{"Todo List", "todo.html", nil},
			[]any{"Namespaces", nil, []any{
				[]any{"Namespace List", "namespaces.html", "namespaces"},
			}},
		}},
	}
	got, _ := s.Get("NAVTREE")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NAVTREE mismatch (-want +got):\n%s", diff)
	}
	msg, _ := s.Get("SYNCONMSG")
	if msg != "click to disable panel synchronisation" {
		t.Errorf("expected sync message, got %v", msg)
	}
}

func TestDecode_SearchDataShape(t *testing.T) {
	src := `var searchData=
[
  ['gains',['Gains',['../classant_1_1calibration_1_1_energy.html#ae1e56c1d804b3a3a109c2a2f67abd0ec',1,'ant::calibration::Energy::Gains()'],['../classant_1_1calibration_1_1_time.html#a93de776a63bc1c8cd090e4187d5008eb',1,'ant::calibration::Time::Gains()']]]
];
`
	s, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := s.Get("searchData")
	entries, err := AsArray(data)
	if err != nil {
		t.Fatalf("expected array: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0].([]any)
	if entry[0] != "gains" {
		t.Errorf("expected key %q, got %v", "gains", entry[0])
	}
	body := entry[1].([]any)
	if len(body) != 3 {
		t.Fatalf("expected display name plus 2 occurrences, got %d elements", len(body))
	}
	occ := body[1].([]any)
	if n, ok := AsInt(occ[1]); !ok || n != 1 {
		t.Errorf("expected in-frame flag 1, got %v", occ[1])
	}
}

func TestDecode_ObjectsAndEscapes(t *testing.T) {
	src := `/* generated */
var NAVTREEINDEX0 =
{
"annotated.html":[2,0], // trailing comment
'it\'s.html':[2,1,"aA\x42"],
key:true,
};`
	s, err := Decode([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := s.Get("NAVTREEINDEX0")
	want := map[string]any{
		"annotated.html": []any{2.0, 0.0},
		"it's.html":      []any{2.0, 1.0, "aAB"},
		"key":            true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("object mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unterminated array", "var a = [1, 2", 1},
		{"missing equals", "var a [1]", 1},
		{"bad literal", "var a = foo", 1},
		{"unterminated string", "var a =\n 'abc", 2},
		{"missing comma", "var a = [1 2]", 1},
	}
	for _, tt := range tests {
		_, err := Decode([]byte(tt.src))
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected *SyntaxError, got %T", tt.name, err)
			continue
		}
		if se.Line != tt.line {
			t.Errorf("%s: expected line %d, got %d", tt.name, tt.line, se.Line)
		}
	}
}

func TestDecode_Empty(t *testing.T) {
	s, err := Decode([]byte("  \n// nothing\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Vars) != 0 {
		t.Errorf("expected no vars, got %d", len(s.Vars))
	}
}

func TestQuote_RoundTrip(t *testing.T) {
	inputs := []string{"plain", "it's", `back\slash`, "tab\there", "getEgamma():&#160;sigmaPlus.cc"}
	for _, in := range inputs {
		for _, q := range []byte{'\'', '"'} {
			src := "var x = " + Quote(in, q) + ";"
			s, err := Decode([]byte(src))
			if err != nil {
				t.Fatalf("decode %s: %v", src, err)
			}
			if got := s.Vars["x"]; got != in {
				t.Errorf("round trip with %c: expected %q, got %q", q, in, got)
			}
		}
	}
}

func TestAsString_Null(t *testing.T) {
	s, ok := AsString(nil)
	if !ok || s != "" {
		t.Errorf("expected null to decode as empty string, got %q ok=%v", s, ok)
	}
	if _, ok := AsString(1.0); ok {
		t.Error("expected number to be rejected")
	}
}
