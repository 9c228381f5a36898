package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/ttdsnap/wire"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "replay-lab"

[snapshot]
format = "cbor"
compress = true

[compare]
strict-cross-site = false

[extract]
wellknown-cache = 64
slab-chunk = 1024

[log]
verbosity = 2
file = "logs/ttd.log"

[store]
path = "/var/lib/ttdsnap/archive.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "replay-lab" {
		t.Errorf("project name = %q, want replay-lab", m.Project.Name)
	}
	if got := m.WireOptions(); got != (wire.Options{Format: wire.FormatCBOR, Compress: true}) {
		t.Errorf("WireOptions() = %+v", got)
	}
	if m.CompareOptions().StrictCrossSite {
		t.Error("strict-cross-site = true, want false")
	}
	if m.Extract.WellKnownCache != 64 || m.Extract.SlabChunk != 1024 {
		t.Errorf("extract = %+v", m.Extract)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got := m.LogFile(); got == nil || *got != filepath.Join(m.Dir, "logs", "ttd.log") {
		t.Errorf("LogFile() = %v", got)
	}
	if got := m.StorePath(); got != "/var/lib/ttdsnap/archive.db" {
		t.Errorf("StorePath() = %q", got)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := m.WireOptions(); got != (wire.Options{Format: wire.FormatBinary}) {
		t.Errorf("default WireOptions() = %+v", got)
	}
	if !m.CompareOptions().StrictCrossSite {
		t.Error("default strict-cross-site = false, want true")
	}
	if m.Extract.WellKnownCache != 256 {
		t.Errorf("default wellknown-cache = %d, want 256", m.Extract.WellKnownCache)
	}
	if m.LogFile() != nil {
		t.Errorf("default LogFile() = %v, want nil", *m.LogFile())
	}
	if got, want := m.StorePath(), filepath.Join(m.Dir, ".ttdsnap", "archive.db"); got != want {
		t.Errorf("StorePath() = %q, want %q", got, want)
	}
}

func TestLoadManifestBadFormat(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[snapshot]
format = "json"
`)
	if _, err := Load(dir); !errors.Is(err, wire.ErrUnknownFormat) {
		t.Errorf("got %v, want ErrUnknownFormat", err)
	}
}

func TestLoadManifestSyntaxError(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[snapshot\nformat = ")
	if _, err := Load(dir); err == nil {
		t.Error("Load accepted invalid TOML")
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no ttdsnap.toml exists")
	}
}
