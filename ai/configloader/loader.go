// Package configloader reads YAML configuration such as classifier presets.
package configloader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/hrygo/studynotes/ai/intent"
)

// Loader reads YAML files relative to a base directory.
type Loader struct {
	baseDir string
}

// NewLoader creates a new configuration loader.
func NewLoader(baseDir string) *Loader {
	return &Loader{
		baseDir: baseDir,
	}
}

// Load loads a single YAML file and unmarshals it into target.
func (l *Loader) Load(subPath string, target any) error {
	data, err := l.ReadFileWithFallback(subPath)
	if err != nil {
		return fmt.Errorf("read file %s: %w", subPath, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshal YAML %s: %w", subPath, err)
	}

	return nil
}

// ReadFileWithFallback tries to read file from path relative to baseDir,
// then falls back to executable directory for production builds.
func (l *Loader) ReadFileWithFallback(path string) ([]byte, error) {
	if filepath.IsAbs(path) {
		return os.ReadFile(path)
	}

	absPath := filepath.Join(l.baseDir, path)
	data, err := os.ReadFile(absPath)
	if err == nil {
		return data, nil
	}

	execPath, execErr := os.Executable()
	if execErr != nil {
		return nil, err
	}
	return os.ReadFile(filepath.Join(filepath.Dir(execPath), l.baseDir, path))
}

// presetFile is the on-disk preset catalog:
//
//	presets:
//	  lecture:
//	    base: accuracy
//	    context_threshold: 0.45
type presetFile struct {
	Presets map[string]yaml.Node `yaml:"presets"`
}

type presetHeader struct {
	Base string `yaml:"base"`
}

// LoadPresets reads a preset catalog. Each preset starts from its base
// (balanced by default) and overrides only the keys it sets.
func (l *Loader) LoadPresets(subPath string) (map[string]intent.Config, error) {
	var file presetFile
	if err := l.Load(subPath, &file); err != nil {
		return nil, err
	}

	presets := make(map[string]intent.Config, len(file.Presets))
	for name, node := range file.Presets {
		var header presetHeader
		if err := node.Decode(&header); err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		if header.Base == "" {
			header.Base = intent.PresetBalanced
		}
		cfg, ok := intent.Preset(header.Base)
		if !ok {
			return nil, fmt.Errorf("preset %s: unknown base %q", name, header.Base)
		}
		if err := node.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		presets[name] = cfg
	}
	return presets, nil
}

// RegisterPresets loads a catalog into store and returns the registered names.
func (l *Loader) RegisterPresets(subPath string, store *intent.ConfigStore) ([]string, error) {
	presets, err := l.LoadPresets(subPath)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := store.RegisterPreset(name, presets[name]); err != nil {
			return nil, fmt.Errorf("register preset %s: %w", name, err)
		}
	}
	return names, nil
}
