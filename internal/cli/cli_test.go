package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geodash/internal/record"
	"geodash/internal/tables"
)

const sampleCSV = "Sparte;Ort;PLZ;Strasse;Haus-Nr;Art;KW-Zahl;Datum\n" +
	"Strom;A;21502;Hauptstr.;1;X;10;2021-05-01\n" +
	"Gas;B;21493;Nebenweg;2;Y;bad;\n"

// run executes the root command against a SQLite store in dir.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	base := []string{"--store", "sqlite", "--sqlite-path", filepath.Join(dir, "geodash.db"), "--log-level", "disabled"}
	root.SetArgs(append(base, args...))
	err := root.Execute()
	return out.String(), err
}

func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("VITE_API_URL", "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.csv"), []byte(sampleCSV), 0o600))
	return dir
}

func TestInspectTable(t *testing.T) {
	dir := workspace(t)

	out, err := run(t, dir, "inspect-table", "Worth")
	require.NoError(t, err)
	assert.Contains(t, out, "Tabelle: "+tables.Worth)
	assert.Contains(t, out, "[PK]")
	assert.Contains(t, out, "Primary Key: id")
	assert.Contains(t, out, "KW-Zahl")

	_, err = run(t, dir, "inspect-table", "Nirgendwo")
	assert.Error(t, err)
}

func TestImportThenLoad(t *testing.T) {
	dir := workspace(t)

	out, err := run(t, dir, "import", filepath.Join(dir, "sample.csv"), "--table", tables.Worth)
	require.NoError(t, err)
	assert.Contains(t, out, "2 Einträge")

	out, err = run(t, dir, "load", "-o", "json")
	require.NoError(t, err)
	var res struct {
		Total  int `json:"total"`
		Tables []struct {
			Table string `json:"table"`
			Count int    `json:"count"`
		} `json:"tables"`
		Notifications []struct {
			Title string `json:"title"`
		} `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.Total)
	assert.Len(t, res.Tables, len(tables.Defaults()))
	require.NotEmpty(t, res.Notifications)
	assert.Equal(t, "Daten geladen", res.Notifications[len(res.Notifications)-1].Title)

	out, err = run(t, dir, "load")
	require.NoError(t, err)
	assert.Contains(t, out, "Worth")
	assert.Contains(t, out, "Gesamt")
}

func TestImport_RejectsUnknownTable(t *testing.T) {
	dir := workspace(t)
	_, err := run(t, dir, "import", filepath.Join(dir, "sample.csv"), "--table", "pg_user")
	assert.ErrorIs(t, err, tables.ErrTableNotAllowed)
}

func TestExportCSV_Filtered(t *testing.T) {
	dir := workspace(t)
	_, err := run(t, dir, "import", filepath.Join(dir, "sample.csv"), "--table", tables.Kollow)
	require.NoError(t, err)

	out, err := run(t, dir, "export", "--format", "csv", "--ort", "A")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Hauptstr.")

	_, err = run(t, dir, "export", "--format", "pdf")
	assert.Error(t, err)
}

func TestExportXLSX_File(t *testing.T) {
	dir := workspace(t)
	target := filepath.Join(dir, "out.xlsx")
	_, err := run(t, dir, "export", "--out", target)
	require.NoError(t, err)
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRender_YAMLUsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	v := struct {
		NotFound int `json:"not_found"`
	}{3}
	require.NoError(t, render(&buf, formatYAML, v, nil))
	assert.Equal(t, "not_found: 3\n", buf.String())

	assert.Error(t, render(&buf, "xml", v, nil))
}

func TestLoad_YAML(t *testing.T) {
	dir := workspace(t)
	_, err := run(t, dir, "import", filepath.Join(dir, "sample.csv"), "--table", tables.Worth)
	require.NoError(t, err)

	out, err := run(t, dir, "load", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 2")
	assert.Contains(t, out, "geocoded: 0")
}

func TestMissingCoords(t *testing.T) {
	lat, lon := 53.4, 10.3
	recs := []record.Record{
		{Ort: "A", Latitude: &lat, Longitude: &lon},
		{Ort: "B"},
		{Ort: "C"},
		{Ort: "D"},
	}
	assert.Len(t, missingCoords(recs, 0), 3)
	got := missingCoords(recs, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "B", got[0].Ort)
}

// chdir changes the working directory for the duration of the test,
// restoring it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
