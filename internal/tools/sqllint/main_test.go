package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRepositoryQueriesPass(t *testing.T) {
	l := newLinter()
	if err := l.walk(filepath.Join("..", "..", "sqlinline")); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(l.findings) != 0 {
		t.Fatalf("unexpected findings: %v", l.findings)
	}
	if len(l.markers) == 0 {
		t.Fatal("no queries were inspected")
	}
}

func TestReportsMissingAndDuplicateMarkers(t *testing.T) {
	dir := t.TempDir()
	src := "package q\n\n" +
		"const (\n" +
		"\tQGood = `--sql 0b8f1f7c-6c1b-4d7e-9d3e-8f0a6b2c1d11\nselect 1`\n" +
		"\tQBare = `select * from jobs`\n" +
		"\tQDup = `--sql 0b8f1f7c-6c1b-4d7e-9d3e-8f0a6b2c1d11\nupdate jobs set status = 'queued'`\n" +
		"\tLabel = \"selected items\"\n" +
		")\n"
	if err := os.WriteFile(filepath.Join(dir, "q.go"), []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	l := newLinter()
	if err := l.walk(dir); err != nil {
		t.Fatalf("walk: %v", err)
	}
	got := l.sorted()
	if len(got) != 2 {
		t.Fatalf("findings = %v", got)
	}
	if got[0].name != "QBare" || !strings.Contains(got[0].message, "missing") {
		t.Fatalf("first finding = %v", got[0])
	}
	if got[1].name != "QDup" || !strings.Contains(got[1].message, "QGood") {
		t.Fatalf("second finding = %v", got[1])
	}
}
