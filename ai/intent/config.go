package intent

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Config tunes a single classification call.
// The classifier reads ContextThreshold, StrictMode and MaxAnalysisBudgetMs;
// the remaining flags are consumed by callers such as the chat pipeline.
type Config struct {
	ContextThreshold    float64 `json:"context_threshold" yaml:"context_threshold" mapstructure:"context_threshold"`
	StrictMode          bool    `json:"strict_mode" yaml:"strict_mode" mapstructure:"strict_mode"`
	MaxAnalysisBudgetMs int     `json:"max_analysis_budget_ms" yaml:"max_analysis_budget_ms" mapstructure:"max_analysis_budget_ms"`

	Enabled           bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	FallbackToContext bool `json:"fallback_to_context" yaml:"fallback_to_context" mapstructure:"fallback_to_context"`
	EnhancedAnalysis  bool `json:"enhanced_analysis" yaml:"enhanced_analysis" mapstructure:"enhanced_analysis"`
	LogDecisions      bool `json:"log_decisions" yaml:"log_decisions" mapstructure:"log_decisions"`
	Debug             bool `json:"debug" yaml:"debug" mapstructure:"debug"`
}

// Preset names.
const (
	PresetBalanced    = "balanced"
	PresetPerformance = "performance"
	PresetAccuracy    = "accuracy"
	PresetDisabled    = "disabled"
)

// DefaultConfig returns the balanced preset.
func DefaultConfig() Config {
	return Config{
		ContextThreshold:    0.6,
		StrictMode:          false,
		MaxAnalysisBudgetMs: 50,
		Enabled:             true,
		FallbackToContext:   true,
	}
}

// builtinPresets trade latency (fewer retrievals) against recall.
var builtinPresets = map[string]Config{
	PresetBalanced: DefaultConfig(),
	PresetPerformance: {
		ContextThreshold:    0.8,
		MaxAnalysisBudgetMs: 20,
		Enabled:             true,
		FallbackToContext:   true,
	},
	PresetAccuracy: {
		ContextThreshold:    0.4,
		StrictMode:          true,
		MaxAnalysisBudgetMs: 100,
		Enabled:             true,
		FallbackToContext:   true,
		EnhancedAnalysis:    true,
	},
	// Classifier off; the pipeline always fetches context.
	PresetDisabled: {
		ContextThreshold:    0,
		MaxAnalysisBudgetMs: 50,
		Enabled:             false,
		FallbackToContext:   true,
	},
}

// Preset returns a named preset.
func Preset(name string) (Config, bool) {
	cfg, ok := builtinPresets[name]
	return cfg, ok
}

// PresetNames returns the built-in preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(builtinPresets))
	for name := range builtinPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the fields the classifier reads.
func (c Config) Validate() error {
	if math.IsNaN(c.ContextThreshold) || c.ContextThreshold < 0 || c.ContextThreshold > 1 {
		return fmt.Errorf("context threshold %v outside [0,1]", c.ContextThreshold)
	}
	if c.MaxAnalysisBudgetMs < 0 {
		return fmt.Errorf("analysis budget %dms is negative", c.MaxAnalysisBudgetMs)
	}
	return nil
}

// Budget returns the soft analysis budget; zero means unbounded.
func (c Config) Budget() time.Duration {
	return time.Duration(c.MaxAnalysisBudgetMs) * time.Millisecond
}

// ConfigStore holds the live classifier configuration. Presets replace every
// field at once so readers never observe a half-applied preset.
type ConfigStore struct {
	mu      sync.RWMutex
	current Config
	preset  string
	presets map[string]Config

	// changeMu orders listener calls with the changes that caused them.
	changeMu  sync.Mutex
	listeners []func(Config)
}

// NewConfigStore creates a store seeded with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	presets := make(map[string]Config, len(builtinPresets))
	for name, p := range builtinPresets {
		presets[name] = p
	}
	return &ConfigStore{current: cfg, presets: presets}
}

// Snapshot returns a copy of the current configuration.
func (s *ConfigStore) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// PresetName returns the last applied preset, or "" after a manual update.
func (s *ConfigStore) PresetName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preset
}

// OnChange registers fn to run after every successful Update or ApplyPreset.
// fn must not modify the store.
func (s *ConfigStore) OnChange(fn func(Config)) {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Update replaces the configuration after validating it.
func (s *ConfigStore) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	s.mu.Lock()
	s.current = cfg
	s.preset = ""
	s.mu.Unlock()

	s.notify(cfg)
	return nil
}

// ApplyPreset switches to a named preset.
func (s *ConfigStore) ApplyPreset(name string) error {
	s.changeMu.Lock()
	defer s.changeMu.Unlock()

	s.mu.Lock()
	cfg, ok := s.presets[name]
	if ok {
		s.current = cfg
		s.preset = name
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown preset %q", name)
	}
	s.notify(cfg)
	return nil
}

func (s *ConfigStore) notify(cfg Config) {
	for _, fn := range s.listeners {
		fn(cfg)
	}
}

// RegisterPreset adds or overrides a named preset.
func (s *ConfigStore) RegisterPreset(name string, cfg Config) error {
	if name == "" {
		return fmt.Errorf("preset name is required")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("preset %s: %w", name, err)
	}
	s.mu.Lock()
	s.presets[name] = cfg
	s.mu.Unlock()
	return nil
}

// Presets returns a copy of all known presets.
func (s *ConfigStore) Presets() map[string]Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Config, len(s.presets))
	for name, cfg := range s.presets {
		out[name] = cfg
	}
	return out
}
