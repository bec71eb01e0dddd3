// Package configloader reads the YAML and text assets the pipeline is driven
// by. Assets ship embedded in the binary and may be overridden file by file
// from a directory on disk.
package configloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Loader resolves asset names against an override directory first and the
// embedded fallback second.
type Loader struct {
	fallback    fs.FS
	overrideDir string
	cache       sync.Map
}

// NewLoader creates a loader. overrideDir may be empty; fallback may be nil
// when every asset must come from disk.
func NewLoader(overrideDir string, fallback fs.FS) *Loader {
	return &Loader{
		overrideDir: overrideDir,
		fallback:    fallback,
	}
}

// ReadFile returns the raw bytes of the named asset.
func (l *Loader) ReadFile(name string) ([]byte, error) {
	if l.overrideDir != "" {
		data, err := os.ReadFile(filepath.Join(l.overrideDir, name))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read override %s: %w", name, err)
		}
	}

	if l.fallback == nil {
		return nil, fmt.Errorf("asset %s: %w", name, fs.ErrNotExist)
	}
	return fs.ReadFile(l.fallback, name)
}

// Load reads the named YAML asset and unmarshals it into target.
func (l *Loader) Load(name string, target any) error {
	data, err := l.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read file %s: %w", name, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML %s: %w", name, err)
	}

	return nil
}

// LoadCached loads a YAML asset once. Later calls with the same name return
// the first result regardless of factory.
func (l *Loader) LoadCached(name string, factory func() any) (any, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached, nil
	}

	target := factory()
	if err := l.Load(name, target); err != nil {
		return nil, err
	}

	actual, _ := l.cache.LoadOrStore(name, target)
	return actual, nil
}

// ClearCache clears the configuration cache.
func (l *Loader) ClearCache() {
	l.cache.Range(func(key, _ any) bool {
		l.cache.Delete(key)
		return true
	})
}
