package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/doxnav/internal/bundle"
)

var fixtureDir = filepath.Join("..", "bundle", "testdata", "site")

func init() {
	color.NoColor = true
}

// run executes the root command and returns stdout, stderr and the error.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "doxnav", cmd.Use)

	for _, name := range []string{"validate", "search", "tree", "export", "report"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := run(t, "--format", "xml", "validate", fixtureDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"unknown flag", []string{"validate", "--bogus", fixtureDir}, "unknown flag: --bogus"},
		{"unknown global flag", []string{"--bogus", "validate", fixtureDir}, "unknown flag: --bogus"},
		{"missing arg", []string{"validate"}, "accepts 1 arg(s), received 0"},
		{"extra arg", []string{"tree", fixtureDir, "more"}, "accepts 1 arg(s), received 2"},
		{"search missing query", []string{"search", fixtureDir}, "accepts 2 arg(s), received 1"},
		{"bad flag value", []string{"tree", "--depth", "x", fixtureDir}, "invalid argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestValidate(t *testing.T) {
	out, _, err := run(t, "validate", fixtureDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ valid")
	assert.Contains(t, out, "54 entries")

	out, _, err = run(t, "--format", "json", "validate", fixtureDir)
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidate_Errors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "navtreedata.js"),
		[]byte(`var NAVTREE = [ [ "", "index.html", null ] ];`), 0o644))

	out, _, err := run(t, "validate", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "nav.label")
	assert.Contains(t, out, "✗ 1 error(s)")
}

func TestValidate_MissingDir(t *testing.T) {
	_, _, err := run(t, "validate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = run(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, bundle.ErrEmptyBundle)
}

func TestSearch(t *testing.T) {
	out, _, err := run(t, "search", fixtureDir, "Gains")
	require.NoError(t, err)
	assert.Contains(t, out, "Gains [variables]")
	assert.Contains(t, out, "classant_1_1calibration_1_1_time.html#a93de776a63bc1c8cd090e4187d5008eb")

	out, _, err = run(t, "--format", "json", "search", "--category", "functions", fixtureDir, "get")
	require.NoError(t, err)
	var resp struct {
		Data []searchMatch `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "getegamma", resp.Data[0].Key)

	out, _, err = run(t, "search", fixtureDir, "zzz")
	require.NoError(t, err)
	assert.Contains(t, out, `no matches for "zzz"`)
}

type searchMatch struct {
	Key   string `json:"key"`
	Exact bool   `json:"exact"`
}

func TestTree(t *testing.T) {
	out, _, err := run(t, "tree", "--depth", "2", fixtureDir)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "ant  index.html", lines[0])
	assert.Contains(t, out, "  Unpacker  unpacker.html")
	assert.NotContains(t, out, "How to write a new unpacker?")

	out, _, err = run(t, "tree", "--path", "unpacker.html", fixtureDir)
	require.NoError(t, err)
	assert.Contains(t, out, "ant › Unpacker")

	_, _, err = run(t, "tree", "--path", "missing.html", fixtureDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestExport(t *testing.T) {
	out, _, err := run(t, "export", "--to", "yaml", fixtureDir)
	require.NoError(t, err)
	assert.Contains(t, out, "content_hash:")

	file := filepath.Join(t.TempDir(), "site.json")
	_, _, err = run(t, "export", "--out", file, fixtureDir)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	_, _, err = run(t, "export", "--to", "script", fixtureDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = run(t, "export", "--to", "xml", fixtureDir)
	require.Error(t, err)
}

func TestExport_ScriptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	out, _, err := run(t, "export", "--to", "script", "--out", dir, fixtureDir)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	orig, err := bundle.Load(os.DirFS(fixtureDir))
	require.NoError(t, err)
	again, err := bundle.Load(os.DirFS(dir))
	require.NoError(t, err)
	assert.Equal(t, orig.Search.Len(), again.Search.Len())
	assert.Equal(t, orig.Nav.Stats(), again.Nav.Stats())
}

func TestReport(t *testing.T) {
	out, _, err := run(t, "report", fixtureDir)
	require.NoError(t, err)
	assert.Contains(t, out, "# Report: site")
	assert.Contains(t, out, "| variables | 52 |")

	file := filepath.Join(t.TempDir(), "report.html")
	_, _, err = run(t, "report", "--html", "--out", file, fixtureDir)
	require.NoError(t, err)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<table>")
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "load", assert.AnError)))
}
