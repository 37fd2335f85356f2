// Package config provides the on-disk configuration and working-directory
// lifecycle management for a single directory partition store.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"

	"github.com/gofrs/flock"
)

// StoreConfig is the on-disk/YAML-facing configuration for one directory
// partition, covering exactly the options spec §6 names: where the
// partition's files live, its cache and durability knobs, its suffix and
// context entry, and which attributes get a user index.
type StoreConfig struct {
	Name              string   `yaml:"name"`
	WorkingDirectory  string   `yaml:"workingDirectory"`
	CacheSize         int      `yaml:"cacheSize"`
	SyncOnWrite       bool     `yaml:"syncOnWrite"`
	SuffixDN          string   `yaml:"suffixDn"`
	ContextEntryLDIF  string   `yaml:"contextEntry"`
	IndexedAttributes []string `yaml:"indexedAttributes"`
	DuplicateLimit    int      `yaml:"duplicateLimit"`
	SchemaPath        string   `yaml:"schemaPath"`
}

// DefaultStoreConfig returns a StoreConfig with spec §6's stated defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		CacheSize:      10000,
		SyncOnWrite:    false,
		DuplicateLimit: 512,
	}
}

// LoadStoreConfig parses a partition config file (YAML), applying
// DefaultStoreConfig for anything left unset.
func LoadStoreConfig(path string) (StoreConfig, error) {
	cfg := DefaultStoreConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return StoreConfig{}, errors.Wrap(err, "config: read %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StoreConfig{}, errors.Wrap(err, "config: parse %s", path)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultStoreConfig().CacheSize
	}
	if cfg.DuplicateLimit <= 0 {
		cfg.DuplicateLimit = DefaultStoreConfig().DuplicateLimit
	}
	return cfg, nil
}

// Save writes cfg back out as YAML, for the diagnostic CLI's config-init
// command.
func (c StoreConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "config: marshal")
	}
	return os.WriteFile(path, data, 0644)
}

// Lifecycle owns the advisory file lock guarding a partition's working
// directory for the process's lifetime, replacing the teacher's abstract
// base-struct lifecycle pattern with plain composition: callers embed or
// hold a *Lifecycle alongside their own state rather than inheriting
// template methods.
type Lifecycle struct {
	dirLock *flock.Flock
	locked  bool
}

// NewLifecycle prepares (without yet acquiring) the lock file for dir.
func NewLifecycle(dir string) *Lifecycle {
	return &Lifecycle{dirLock: flock.New(dir + "/.lock")}
}

// ErrDirectoryBusy is returned by Acquire when another process already
// holds the lock.
var ErrDirectoryBusy = errors.New("config: working directory is locked by another process")

// Acquire takes an exclusive, non-blocking lock on the working directory.
func (l *Lifecycle) Acquire() error {
	ok, err := l.dirLock.TryLock()
	if err != nil {
		return errors.Wrap(err, "config: acquire lock")
	}
	if !ok {
		return ErrDirectoryBusy
	}
	l.locked = true
	return nil
}

// Release gives up the lock, if held.
func (l *Lifecycle) Release() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	return l.dirLock.Unlock()
}
