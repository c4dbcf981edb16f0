package searchindex

import (
	"testing"

	"github.com/dgallion1/doxnav/internal/jsdata"
	"github.com/google/go-cmp/cmp"
)

const shard = `var searchData=
[
  ['g',['G',['../structchannel_graph__t.html#a564f9638cf2230269b31cbfc69750c44',1,'channelGraph_t']]],
  ['gain',['Gain',['../structant_1_1calibration_1_1converter_1_1_multi_hit_reference.html#a1c97750ea610cc7f8c5b48f484290f36',1,'ant::calibration::converter::MultiHitReference']]],
  ['gains',['Gains',['../classant_1_1calibration_1_1_energy.html#ae1e56c1d804b3a3a109c2a2f67abd0ec',1,'ant::calibration::Energy::Gains()'],['../classant_1_1calibration_1_1_time.html#a93de776a63bc1c8cd090e4187d5008eb',1,'ant::calibration::Time::Gains()']]],
  ['gamma_5ffrom_5fomega_5fe_5fmc',['gamma_from_omega_E_mc',['../classant_1_1analysis_1_1physics_1_1_omega_m_c_cross_section.html#ae07291a618538bf6debedcba19c5634e',1,'ant::analysis::physics::OmegaMCCrossSection']]],
  ['getegamma',['getEgamma',['../sigma_plus_8cc.html#a1d9ba1372227832ba05cfba88bcbe74d',1,'getEgamma():&#160;sigmaPlus.cc'],['../single_pi0_8cc.html#a1d9ba1372227832ba05cfba88bcbe74d',1,'getEgamma():&#160;singlePi0.cc']]]
];
`

func parseSample(t *testing.T) []Entry {
	t.Helper()
	s, err := jsdata.Decode([]byte(shard))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	entries, err := ParseShard("search/variables_7.js", s)
	if err != nil {
		t.Fatalf("parse shard: %v", err)
	}
	return entries
}

func TestShardInfo(t *testing.T) {
	tests := []struct {
		name     string
		category string
		n        int
		ok       bool
	}{
		{"search/variables_7.js", "variables", 7, true},
		{"all_1a.js", "all", 26, true},
		{"search/search.js", "", 0, false},
		{"navtreedata.js", "", 0, false},
	}
	for _, tt := range tests {
		cat, n, ok := ShardInfo(tt.name)
		if cat != tt.category || n != tt.n || ok != tt.ok {
			t.Errorf("ShardInfo(%q): expected (%q, %d, %v), got (%q, %d, %v)", tt.name, tt.category, tt.n, tt.ok, cat, n, ok)
		}
	}
}

func TestParseShard(t *testing.T) {
	entries := parseSample(t)
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	gains := entries[2]
	if gains.Key != "gains" || gains.DisplayName != "Gains" {
		t.Errorf("unexpected entry %q / %q", gains.Key, gains.DisplayName)
	}
	if gains.Category != "variables" || gains.Shard != "variables_7.js" {
		t.Errorf("unexpected category/shard %q / %q", gains.Category, gains.Shard)
	}
	if len(gains.Occurrences) != 2 {
		t.Fatalf("expected 2 occurrences, got %d", len(gains.Occurrences))
	}
	want := Occurrence{
		Link:    "../classant_1_1calibration_1_1_energy.html#ae1e56c1d804b3a3a109c2a2f67abd0ec",
		Page:    "classant_1_1calibration_1_1_energy.html",
		Anchor:  "ae1e56c1d804b3a3a109c2a2f67abd0ec",
		InFrame: true,
		Label:   "ant::calibration::Energy::Gains()",
		Scope:   "ant::calibration::Energy::Gains()",
	}
	if diff := cmp.Diff(want, gains.Occurrences[0]); diff != "" {
		t.Errorf("occurrence mismatch (-want +got):\n%s", diff)
	}

	get := entries[4].Occurrences[1]
	if get.Scope != "getEgamma()" || get.SourceFile != "singlePi0.cc" {
		t.Errorf("expected scope/file split, got %q / %q", get.Scope, get.SourceFile)
	}
}

func TestParseShard_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		src  string
	}{
		{"bad file name", "search.js", `var searchData=[];`},
		{"missing var", "all_0.js", `var x=[];`},
		{"entry shape", "all_0.js", `var searchData=[['a']];`},
		{"empty body", "all_0.js", `var searchData=[['a',[]]];`},
		{"bad occurrence", "all_0.js", `var searchData=[['a',['A',[1,1,'x']]]];`},
	}
	for _, tt := range tests {
		s, err := jsdata.Decode([]byte(tt.src))
		if err != nil {
			t.Fatalf("%s: decode: %v", tt.name, err)
		}
		if _, err := ParseShard(tt.file, s); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestParseShard_EmptyOccurrences(t *testing.T) {
	// An entry without occurrences decodes; validation reports it.
	s, _ := jsdata.Decode([]byte(`var searchData=[['a',['A']]];`))
	entries, err := ParseShard("all_0.js", s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries[0].Occurrences) != 0 {
		t.Errorf("expected no occurrences, got %d", len(entries[0].Occurrences))
	}
}

func TestLookup(t *testing.T) {
	idx := NewIndex(parseSample(t)...)

	keys := func(ms []Match) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.Key)
		}
		return out
	}

	got := idx.Lookup(Query{Text: "ga"})
	if diff := cmp.Diff([]string{"gain", "gains", "gamma_5ffrom_5fomega_5fe_5fmc"}, keys(got)); diff != "" {
		t.Errorf("prefix lookup mismatch (-want +got):\n%s", diff)
	}

	got = idx.Lookup(Query{Text: "Gain"})
	if len(got) != 2 || !got[0].Exact || got[1].Exact {
		t.Errorf("expected exact match first, got %+v", keys(got))
	}

	got = idx.Lookup(Query{Text: "gamma_from"})
	if diff := cmp.Diff([]string{"gamma_5ffrom_5fomega_5fe_5fmc"}, keys(got)); diff != "" {
		t.Errorf("escaped lookup mismatch (-want +got):\n%s", diff)
	}

	if got := idx.Lookup(Query{Text: "g", Limit: 2}); len(got) != 2 || got[0].Key != "g" {
		t.Errorf("expected limited results starting with exact match, got %v", keys(got))
	}
	if got := idx.Lookup(Query{Text: "  "}); got != nil {
		t.Errorf("expected no results for blank query, got %v", keys(got))
	}
	if got := idx.Lookup(Query{Text: "ga", Category: "functions"}); len(got) != 0 {
		t.Errorf("expected category filter to exclude all, got %v", keys(got))
	}
	if got := idx.Lookup(Query{Text: "zzz"}); len(got) != 0 {
		t.Errorf("expected no results, got %v", keys(got))
	}
}

func TestIndex_GetAndCategories(t *testing.T) {
	entries := parseSample(t)
	fn := entries[4]
	fn.Category = "functions"
	idx := NewIndex(append(entries, fn)...)

	if got := idx.Get("getegamma"); len(got) != 2 {
		t.Fatalf("expected key in two categories, got %d", len(got))
	}
	cats := idx.Categories()
	if cats["variables"] != 5 || cats["functions"] != 1 {
		t.Errorf("unexpected categories %v", cats)
	}
	if idx.Len() != 6 {
		t.Errorf("expected 6 entries, got %d", idx.Len())
	}
}

func TestOccurrence_Qualified(t *testing.T) {
	o := Occurrence{Page: "classant_1_1calibration_1_1_energy.html"}
	if got := o.Qualified(); got != "ant::calibration::Energy" {
		t.Errorf("expected page-derived name, got %q", got)
	}
	o.Scope = "ant::calibration::Energy::Gains()"
	if got := o.Qualified(); got != o.Scope {
		t.Errorf("expected scope, got %q", got)
	}
}

func TestEntry_Initial(t *testing.T) {
	if got := (Entry{Key: "gains"}).Initial(); got != "g" {
		t.Errorf("expected %q, got %q", "g", got)
	}
	if got := (Entry{Key: "_5f_5fdata"}).Initial(); got != "_5f" {
		t.Errorf("expected %q, got %q", "_5f", got)
	}
}
