package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TFMV/dirlisten/internal/config"
)

func TestCheckEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"config.yaml", "app.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "cache"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	c := config.Config{
		Directory: dir,
		Rules: []config.Rule{
			{Event: "update", Pattern: `config\.ya?ml`},
			{Event: "update", Pattern: `.*`},
			{Event: "delete", Pattern: `.*\.log`},
		},
	}
	r := c.Builder(context.Background(), io.Discard, nil).Registry()

	results, err := checkEntries(c, r)
	if err != nil {
		t.Fatalf("checkEntries failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(results))
	}

	// Sorted by name.
	if results[0].Name != "app.log" || results[1].Name != "cache" || results[2].Name != "config.yaml" {
		t.Errorf("Unexpected order: %+v", results)
	}
	if !results[1].IsDir {
		t.Errorf("Expected cache to be reported as a directory")
	}
	if got := results[0].Rules["delete"]; got != `.*\.log` {
		t.Errorf("Expected app.log delete rule, got %q", got)
	}
	if got := results[2].Rules["update"]; got != `config\.ya?ml` {
		t.Errorf("Expected the first matching update rule to win, got %q", got)
	}
	if _, ok := results[2].Rules["create"]; ok {
		t.Errorf("Expected no create rule for config.yaml")
	}
}

func TestCheckEntriesMissingDirectory(t *testing.T) {
	c := config.Config{Directory: filepath.Join(t.TempDir(), "missing")}
	r := c.Builder(context.Background(), io.Discard, nil).Registry()
	if _, err := checkEntries(c, r); err == nil {
		t.Errorf("Expected an error for a missing directory")
	}
}

func TestWriteCheck(t *testing.T) {
	results := []entryCheck{
		{Name: "a.txt", Rules: map[string]string{"create": ".*"}},
		{Name: "sub", IsDir: true, Rules: map[string]string{}},
	}

	var text bytes.Buffer
	if err := writeCheck(&text, results, "text"); err != nil {
		t.Fatalf("writeCheck failed: %v", err)
	}
	out := text.String()
	for _, want := range []string{"a.txt\n", "  create  .*\n", "  update  -\n", "sub/\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected text output to contain %q, got:\n%s", want, out)
		}
	}

	var js bytes.Buffer
	if err := writeCheck(&js, results, "json"); err != nil {
		t.Fatalf("writeCheck failed: %v", err)
	}
	var decoded []entryCheck
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON output: %v", err)
	}
	if len(decoded) != 2 || decoded[0].Rules["create"] != ".*" {
		t.Errorf("Unexpected JSON output: %s", js.String())
	}

	if err := writeCheck(io.Discard, results, "xml"); err == nil {
		t.Errorf("Expected an unknown format to fail")
	}
}

func TestFlagRules(t *testing.T) {
	watchOnCreate = []string{`.*\.csv`}
	watchOnDelete = []string{`a`, `b`}
	watchExec = "import {}"
	t.Cleanup(func() {
		watchOnCreate, watchOnDelete, watchExec = nil, nil, ""
	})

	rules := flagRules()
	if len(rules) != 3 {
		t.Fatalf("Expected 3 rules, got %d", len(rules))
	}
	if rules[0].Event != "create" || rules[0].Exec != "import {}" {
		t.Errorf("Unexpected first rule: %+v", rules[0])
	}
	if rules[1].Pattern != "a" || rules[2].Pattern != "b" || rules[2].Event != "delete" {
		t.Errorf("Unexpected delete rules: %+v", rules[1:])
	}
}
