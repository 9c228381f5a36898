// Package manifest handles ttdsnap.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/ttdsnap/ttd"
	"github.com/chazu/ttdsnap/wire"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "ttdsnap.toml"

// Manifest represents a ttdsnap.toml configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	Compare  CompareConfig  `toml:"compare"`
	Extract  ExtractConfig  `toml:"extract"`
	Log      LogConfig      `toml:"log"`
	Store    StoreConfig    `toml:"store"`

	// Dir is the directory containing the ttdsnap.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// SnapshotConfig selects how snapshots are persisted.
type SnapshotConfig struct {
	Format   string `toml:"format"`
	Compress bool   `toml:"compress"`
}

// CompareConfig configures the equivalence checker.
type CompareConfig struct {
	StrictCrossSite bool `toml:"strict-cross-site"`
}

// ExtractConfig sizes the extraction and inflation caches.
type ExtractConfig struct {
	WellKnownCache int `toml:"wellknown-cache"`
	SlabChunk      int `toml:"slab-chunk"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// StoreConfig locates the snapshot archive.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no ttdsnap.toml exists.
func Default() *Manifest {
	return &Manifest{
		Snapshot: SnapshotConfig{Format: string(wire.FormatBinary)},
		Compare:  CompareConfig{StrictCrossSite: true},
		Extract: ExtractConfig{
			WellKnownCache: ttd.DefaultWellKnownCache,
			SlabChunk:      ttd.DefaultSlabChunk,
		},
		Store: StoreConfig{Path: filepath.Join(".ttdsnap", "archive.db")},
		Dir:   ".",
	}
}

// Load parses a ttdsnap.toml file from the given directory. Keys the file
// leaves out keep their defaults.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if _, err := wire.ParseFormat(m.Snapshot.Format); err != nil {
		return nil, fmt.Errorf("%s: snapshot.format: %w", path, err)
	}
	if m.Extract.WellKnownCache <= 0 {
		m.Extract.WellKnownCache = ttd.DefaultWellKnownCache
	}
	if m.Extract.SlabChunk <= 0 {
		m.Extract.SlabChunk = ttd.DefaultSlabChunk
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a ttdsnap.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// WireOptions returns the writer options for new snapshots.
func (m *Manifest) WireOptions() wire.Options {
	f, _ := wire.ParseFormat(m.Snapshot.Format)
	return wire.Options{Format: f, Compress: m.Snapshot.Compress}
}

// CompareOptions returns the equivalence checker policy.
func (m *Manifest) CompareOptions() ttd.CompareOptions {
	return ttd.CompareOptions{StrictCrossSite: m.Compare.StrictCrossSite}
}

// StorePath returns the archive path, resolved against the manifest directory.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// LogFile returns the log file path, or nil to log to stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}
