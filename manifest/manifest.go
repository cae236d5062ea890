// Package manifest handles codeprint.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/codeprint/fingerprint"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "codeprint.toml"

// DefaultAddr is the diagnostics server address used when none is set.
const DefaultAddr = "localhost:4568"

// Manifest represents a codeprint.toml configuration.
type Manifest struct {
	Fingerprint FingerprintConfig `toml:"fingerprint"`
	Coverage    CoverageConfig    `toml:"coverage"`
	Store       StoreConfig       `toml:"store"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`

	// Dir is the directory containing the codeprint.toml file (set at load time).
	Dir string `toml:"-"`
}

// FingerprintConfig selects the digest and the sampling threshold.
type FingerprintConfig struct {
	Digest          string `toml:"digest"`
	SampleThreshold int    `toml:"sample-threshold"`
}

// CoverageConfig configures executed-range snapshots.
type CoverageConfig struct {
	Snapshot string `toml:"snapshot"`
}

// StoreConfig configures the SQLite store.
type StoreConfig struct {
	Path string `toml:"path"`
}

// ServerConfig configures the diagnostics server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LogConfig configures logging. Verbosity follows commonlog: 0 is errors
// only, each step adds a level.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns a manifest with every default applied and no directory.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a codeprint.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a codeprint.toml file,
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

func (m *Manifest) applyDefaults() {
	if m.Fingerprint.Digest == "" {
		m.Fingerprint.Digest = fingerprint.SHA1.Name()
	}
	if m.Fingerprint.SampleThreshold == 0 {
		m.Fingerprint.SampleThreshold = fingerprint.DefaultSampleThreshold
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
}

// Validate checks values that cannot be defaulted.
func (m *Manifest) Validate() error {
	if _, err := fingerprint.DigestByName(m.Fingerprint.Digest); err != nil {
		return err
	}
	if m.Fingerprint.SampleThreshold < 0 {
		return fmt.Errorf("sample-threshold must be positive, got %d", m.Fingerprint.SampleThreshold)
	}
	return nil
}

// Hasher builds the configured fingerprint hasher.
func (m *Manifest) Hasher() (*fingerprint.Hasher, error) {
	d, err := fingerprint.DigestByName(m.Fingerprint.Digest)
	if err != nil {
		return nil, err
	}
	return fingerprint.NewHasher(
		fingerprint.WithDigest(d),
		fingerprint.WithSampleThreshold(m.Fingerprint.SampleThreshold),
	)
}

// Resolve makes a configured path absolute relative to the manifest
// directory. Empty paths stay empty.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// StorePath returns the resolved SQLite database path.
func (m *Manifest) StorePath() string {
	return m.Resolve(m.Store.Path)
}

// SnapshotPath returns the resolved coverage snapshot path.
func (m *Manifest) SnapshotPath() string {
	return m.Resolve(m.Coverage.Snapshot)
}
