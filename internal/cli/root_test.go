package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/curtislbyrd/D3tectConvert/internal/dataset"
)

const testMappings = `{
  "results": {
    "bindings": [
      {
        "off_tech_id":    {"value": "T1566.001"},
        "off_tech_label": {"value": "Spearphishing Attachment"},
        "def_tech":       {"value": "http://d3fend.mitre.org/ontologies/d3fend.owl#D3-NTA"},
        "def_tech_label": {"value": "Network Traffic Analysis"}
      }
    ]
  }
}`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIndexCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "mappings.json")
	out := filepath.Join(dir, "search_index.json")
	if err := os.WriteFile(in, []byte(testMappings), 0o600); err != nil {
		t.Fatal(err)
	}

	output, err := runCLI(t, "index", "--in", in, "--out", out)
	if err != nil {
		t.Fatalf("index: %v\n%s", err, output)
	}
	if !strings.Contains(output, "wrote 1 techniques") {
		t.Errorf("output = %q", output)
	}

	records, err := dataset.ReadIndex(out)
	if err != nil {
		t.Fatalf("reading produced index: %v", err)
	}
	if len(records) != 1 || records[0].AttackID != "T1566.001" {
		t.Errorf("index content = %+v", records)
	}
}

func TestIndexCommand_SQLite(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "mappings.json")
	out := filepath.Join(dir, "search.sqlite")
	if err := os.WriteFile(in, []byte(testMappings), 0o600); err != nil {
		t.Fatal(err)
	}

	if output, err := runCLI(t, "index", "--in", in, "--out", out, "--format", "sqlite"); err != nil {
		t.Fatalf("index: %v\n%s", err, output)
	}

	records, err := dataset.ReadSQLite(out)
	if err != nil {
		t.Fatalf("reading produced db: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected 1 record, got %d", len(records))
	}
}

func TestIndexCommand_BadFormat(t *testing.T) {
	in := filepath.Join(t.TempDir(), "mappings.json")
	if err := os.WriteFile(in, []byte(testMappings), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := runCLI(t, "index", "--in", in, "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "invalid format") {
		t.Errorf("err = %v, want invalid format error", err)
	}
}

func TestCheckCommand(t *testing.T) {
	dir := t.TempDir()
	datasetPath := filepath.Join(dir, "mappings.json")
	if err := os.WriteFile(datasetPath, []byte(testMappings), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "d3tect.yaml")
	if err := os.WriteFile(cfgPath, []byte("dataset:\n  path: mappings.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	output, err := runCLI(t, "check", "--config", cfgPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, output)
	}
	for _, want := range []string{"techniques:       1", "countermeasures:  1", "T1566.001"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(output, "d3tect "+Version) {
		t.Errorf("output = %q", output)
	}
}

func TestCheckCommand_MissingDataset(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "d3tect.yaml")
	if err := os.WriteFile(cfgPath, []byte("dataset:\n  path: nope.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "check", "--config", cfgPath); err == nil {
		t.Error("expected error for missing dataset")
	}
}
