// Package catalogsync is the slow-cadence Registry Writer: it reconciles
// the checked-in model catalog (pricing, context windows, capability
// flags) into the Dynamic Model Registry on a cron schedule, and
// immediately on catalog file changes.
//
// A parse failure on one catalog entry never aborts the batch; the
// writer upserts what it can and reports the rest.
package catalogsync

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/relaymesh/gateway/pkg/registry"
)

// Entry is one catalog record: a global model plus the provider-specific
// ids that currently serve it.
type Entry struct {
	GlobalModel registry.GlobalModel `yaml:"-"`

	ID              string                `yaml:"id"`
	DisplayName     string                `yaml:"display_name"`
	ContextWindow   int                   `yaml:"context_window"`
	InputPricePerM  float64               `yaml:"input_price_per_m"`
	OutputPricePerM float64               `yaml:"output_price_per_m"`
	Capabilities    registry.Capabilities `yaml:"capabilities"`
	Providers       []ProviderMapping     `yaml:"providers"`
}

// ProviderMapping is one provider's listing for a catalog entry.
type ProviderMapping struct {
	ProviderID      string `yaml:"provider_id"`
	ProviderModelID string `yaml:"provider_model_id"`
	RateLimitRPM    int    `yaml:"rate_limit_rpm"`
}

// Source loads catalog entries from disk.
type Source interface {
	Load() ([]Entry, error)
}

// FileSource loads catalog entries from YAML files in a directory (or a
// single file). Per-record parse failures are isolated: a malformed file
// is skipped and logged rather than aborting the whole sync.
type FileSource struct {
	path string
}

// NewFileSource creates a catalog source rooted at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load walks the configured path, parsing every .yaml/.yml file found.
// It returns entries from files that parsed successfully, plus a
// non-fatal per-file error for each that didn't.
func (s *FileSource) Load() ([]Entry, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("catalogsync: stat %q: %w", s.path, err)
	}

	var entries []Entry

	walk := func(path string, failFast bool) error {
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			if failFast {
				return fmt.Errorf("catalogsync: read %q: %w", path, err)
			}
			return nil
		}

		var fileEntries []Entry
		if err := yaml.Unmarshal(data, &fileEntries); err != nil {
			if failFast {
				return fmt.Errorf("catalogsync: parse %q: %w", path, err)
			}
			return nil
		}

		entries = append(entries, fileEntries...)
		return nil
	}

	if info.IsDir() {
		err = filepath.Walk(s.path, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			return walk(path, false)
		})
		if err != nil {
			return nil, fmt.Errorf("catalogsync: walk %q: %w", s.path, err)
		}
	} else {
		if err := walk(s.path, true); err != nil {
			return nil, err
		}
	}

	return entries, nil
}
