package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/ttdsnap/ttd"
	"github.com/chazu/ttdsnap/vm"
	"github.com/chazu/ttdsnap/wire"
)

// project creates a directory with a ttdsnap.toml whose archive lives inside
// it.
func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := "[store]\npath = \"archive.db\"\n"
	if err := os.WriteFile(filepath.Join(dir, "ttdsnap.toml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func ttdsnap(t *testing.T, dir string, args ...string) (int, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"-C", dir}, args...), &stdout, &stderr)
	if code == 2 {
		t.Logf("stderr: %s", stderr.String())
	}
	return code, stdout.String()
}

func TestSampleAndReplay(t *testing.T) {
	dir := project(t)
	file := filepath.Join(dir, "a.snap")

	code, out := ttdsnap(t, dir, "sample", "-o", file, "-format", "cbor", "-compress")
	if code != 0 {
		t.Fatalf("sample exited %d", code)
	}
	if !strings.Contains(out, "cbor+zstd") {
		t.Errorf("sample output %q does not name the encoding", out)
	}

	code, out = ttdsnap(t, dir, "replay", "-passes", "2", file)
	if code != 0 {
		t.Fatalf("replay exited %d: %s", code, out)
	}
	if !strings.Contains(out, "equivalent") {
		t.Errorf("replay output %q, want equivalent", out)
	}
}

func TestInspect(t *testing.T) {
	dir := project(t)
	file := filepath.Join(dir, "a.snap")
	if code, _ := ttdsnap(t, dir, "sample", "-o", file); code != 0 {
		t.Fatalf("sample exited %d", code)
	}

	code, out := ttdsnap(t, dir, "inspect", "-types", file)
	if code != 0 {
		t.Fatalf("inspect exited %d", code)
	}
	for _, want := range []string{"binary,", "root sample = ", "root answer = 42", "type "} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect output missing %q", want)
		}
	}

	_, out = ttdsnap(t, dir, "inspect", "-kind", "Promise", file)
	if !strings.Contains(out, " Promise type=") || strings.Contains(out, " Date type=") {
		t.Error("-kind Promise did not filter records")
	}
}

func TestDiff(t *testing.T) {
	dir := project(t)
	a := filepath.Join(dir, "a.snap")
	b := filepath.Join(dir, "b.snap")
	if code, _ := ttdsnap(t, dir, "sample", "-o", a); code != 0 {
		t.Fatalf("sample exited %d", code)
	}
	if code, _ := ttdsnap(t, dir, "sample", "-o", b, "-format", "cbor"); code != 0 {
		t.Fatalf("sample exited %d", code)
	}

	code, out := ttdsnap(t, dir, "diff", a, b)
	if code != 0 {
		t.Fatalf("diff of equal heaps exited %d: %s", code, out)
	}
	if !strings.Contains(out, "pass: true") {
		t.Errorf("diff output %q, want a YAML report", out)
	}

	// A heap with one extra global property diverges.
	h := vm.NewHeap()
	roots := vm.Sample(h)
	h.Global().Define("drift", h.Str("x"), ttd.AttrAll)
	ex, err := ttd.NewExtractor(h, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := ex.ExtractAll(roots)
	if err != nil {
		t.Fatal(err)
	}
	data, err := encode(snap, wire.Options{Format: wire.FormatBinary})
	if err != nil {
		t.Fatal(err)
	}
	drifted := filepath.Join(dir, "c.snap")
	if err := os.WriteFile(drifted, data, 0o644); err != nil {
		t.Fatal(err)
	}

	code, out = ttdsnap(t, dir, "diff", a, drifted)
	if code != 1 {
		t.Fatalf("diff exited %d, want 1", code)
	}
	if !strings.Contains(out, "pass: false") || !strings.Contains(out, "drift") {
		t.Errorf("diff output %q does not report the drift", out)
	}
}

func TestArchive(t *testing.T) {
	dir := project(t)
	file := filepath.Join(dir, "a.snap")
	if code, _ := ttdsnap(t, dir, "sample", "-o", file); code != 0 {
		t.Fatalf("sample exited %d", code)
	}

	code, out := ttdsnap(t, dir, "archive", "put", "-name", "boot", file)
	if code != 0 {
		t.Fatalf("archive put exited %d", code)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		t.Fatal("archive put printed no id")
	}

	_, out = ttdsnap(t, dir, "archive", "ls")
	if !strings.Contains(out, id) || !strings.Contains(out, "boot") {
		t.Errorf("archive ls output %q missing %s", out, id)
	}

	got := filepath.Join(dir, "got.snap")
	if code, _ := ttdsnap(t, dir, "archive", "get", "-o", got, "boot"); code != 0 {
		t.Fatalf("archive get exited %d", code)
	}
	want, _ := os.ReadFile(file)
	have, _ := os.ReadFile(got)
	if !bytes.Equal(want, have) {
		t.Error("archive get returned different bytes")
	}

	if code, _ := ttdsnap(t, dir, "archive", "rm", id); code != 0 {
		t.Fatalf("archive rm exited %d", code)
	}
	if code, _ := ttdsnap(t, dir, "archive", "get", id); code != 2 {
		t.Errorf("archive get after rm exited %d, want 2", code)
	}
}

func TestUnknownCommand(t *testing.T) {
	if code, _ := ttdsnap(t, t.TempDir(), "frobnicate"); code != 2 {
		t.Errorf("exit %d, want 2", code)
	}
}
