package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSchemaCommandChecksEveryFile(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "core.yaml", `
definitions:
  core:
    types:
      Project:
        properties:
          name: str
`)
	bad := writeFile(t, dir, "bad.yaml", `
definitions:
  core:
    types:
      Project:
        properties:
          name: nope
`)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"schema", good, bad})

	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected a non-nil error when any schema file is invalid")
	}

	// Both files are reported, the bad one does not stop the loop.
	if !strings.Contains(out.String(), "core.yaml") {
		t.Errorf("output missing the valid file: %s", out.String())
	}
	if !strings.Contains(out.String(), "bad.yaml") {
		t.Errorf("output missing the invalid file: %s", out.String())
	}
	if !strings.Contains(out.String(), "namespace core") {
		t.Errorf("output missing the namespace summary: %s", out.String())
	}
}
