package main

import (
	"context"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/hrygo/studynotes/ai"
	"github.com/hrygo/studynotes/ai/configloader"
	"github.com/hrygo/studynotes/ai/core/llm"
	"github.com/hrygo/studynotes/ai/core/retrieval"
	"github.com/hrygo/studynotes/ai/filter"
	"github.com/hrygo/studynotes/ai/intent"
	"github.com/hrygo/studynotes/ai/metrics"
	"github.com/hrygo/studynotes/ai/rag"
	"github.com/hrygo/studynotes/internal/logging"
	"github.com/hrygo/studynotes/internal/profile"
	"github.com/hrygo/studynotes/server"
	"github.com/hrygo/studynotes/store"
	"github.com/hrygo/studynotes/store/db"
)

// app holds the services shared by the CLI commands.
type app struct {
	aiConfig   *ai.Config
	metrics    *metrics.PrometheusExporter
	classifier *intent.Classifier
	configs    *intent.ConfigStore
	backend    retrieval.Backend // nil when embeddings are not configured
	pipeline   *rag.Pipeline

	closers []func() error
}

// newApp wires classifier, retrieval and generation from the profile.
func newApp(ctx context.Context, prof *profile.Profile) (*app, error) {
	a := &app{
		aiConfig: ai.NewConfigFromProfile(prof),
		metrics:  metrics.NewPrometheusExporter(metrics.DefaultConfig()),
	}
	if err := a.aiConfig.Validate(); err != nil {
		if !a.aiConfig.Enabled {
			return nil, err
		}
		slog.Warn("AI generation disabled", "error", err)
		a.aiConfig.Enabled = false
		if err := a.aiConfig.Validate(); err != nil {
			return nil, err
		}
	}

	var err error
	a.configs, err = newConfigStore(a.aiConfig.Classifier)
	if err != nil {
		return nil, err
	}
	followDebugToggle(a.configs)
	if path := a.aiConfig.Classifier.ConfigFile; path != "" {
		if err := watchClassifierConfig(path, a.configs); err != nil {
			return nil, err
		}
	}

	cache := intent.NewResultCache(intent.CacheConfig{
		Capacity: a.aiConfig.Classifier.CacheSize,
		TTL:      a.aiConfig.Classifier.CacheTTL,
	})
	a.classifier = intent.NewClassifier(
		intent.WithCache(cache),
		intent.WithObserver(a.metrics),
		intent.WithLogger(slog.Default()),
	)

	if !embeddingConfigured(&a.aiConfig.Embedding) {
		return a, nil
	}
	if err := a.openBackend(ctx, prof); err != nil {
		a.Close()
		return nil, err
	}

	opts := []rag.Option{
		rag.WithObserver(a.metrics),
		rag.WithLogger(slog.Default()),
		rag.WithRedactor(filter.NewFilter(filter.DefaultConfig())),
	}
	if a.aiConfig.Enabled {
		llmService, err := llm.NewService(&a.aiConfig.LLM)
		if err != nil {
			a.Close()
			return nil, errors.Wrap(err, "failed to create LLM service")
		}
		go llmService.Warmup(ctx)
		opts = append(opts, rag.WithGenerator(llmService))
	}

	a.pipeline = rag.NewPipeline(a.classifier, a.configs, retrieval.NewAdaptiveRetriever(a.backend), rag.Config{
		TopK:              a.aiConfig.Retrieval.TopK,
		MinScore:          float32(a.aiConfig.Retrieval.MinScore),
		PromptTokenBudget: a.aiConfig.Retrieval.PromptTokenBudget,
		Model:             a.aiConfig.LLM.Model,
	}, opts...)
	return a, nil
}

func (a *app) openBackend(ctx context.Context, prof *profile.Profile) error {
	embedder, err := ai.NewEmbeddingService(&a.aiConfig.Embedding)
	if err != nil {
		return errors.Wrap(err, "failed to create embedding service")
	}

	switch a.aiConfig.Retrieval.Backend {
	case "store":
		dbDriver, err := db.NewDBDriver(prof)
		if err != nil {
			return errors.Wrap(err, "failed to create db driver")
		}
		storeInstance := store.New(dbDriver, prof)
		a.closers = append(a.closers, storeInstance.Close)
		if err := storeInstance.Migrate(ctx); err != nil {
			return errors.Wrap(err, "failed to migrate")
		}
		a.backend = retrieval.NewStoreBackend(storeInstance, embedder, retrieval.DefaultChunkTokens)
	default:
		backend, err := retrieval.NewChromemBackend(retrieval.ChromemConfig{
			PersistPath: a.aiConfig.Retrieval.PersistPath,
			ChunkTokens: retrieval.DefaultChunkTokens,
		}, embedder)
		if err != nil {
			return errors.Wrap(err, "failed to open chromem index")
		}
		a.backend = backend
	}
	return nil
}

func (a *app) serverDependencies() server.Dependencies {
	return server.Dependencies{
		Classifier: a.classifier,
		Configs:    a.configs,
		Pipeline:   a.pipeline,
		Metrics:    a.metrics.Handler(),
	}
}

// Close releases stores opened by newApp.
func (a *app) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			slog.Warn("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

func embeddingConfigured(cfg *ai.EmbeddingConfig) bool {
	return cfg.Model != "" && (cfg.APIKey != "" || cfg.Provider == "ollama")
}

// newConfigStore registers the preset catalog and applies the startup preset.
func newConfigStore(cfg ai.ClassifierConfig) (*intent.ConfigStore, error) {
	configs := intent.NewConfigStore(intent.DefaultConfig())
	if cfg.PresetFile != "" {
		names, err := configloader.NewLoader(".").RegisterPresets(cfg.PresetFile, configs)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load presets")
		}
		slog.Debug("Loaded classifier presets", "file", cfg.PresetFile, "presets", names)
	}
	if cfg.Preset != "" {
		if err := configs.ApplyPreset(cfg.Preset); err != nil {
			return nil, err
		}
	}
	return configs, nil
}

// readClassifierConfig decodes a classifier file. The optional preset key picks
// the starting config; other keys override it.
func readClassifierConfig(v *viper.Viper, configs *intent.ConfigStore) (intent.Config, error) {
	cfg := intent.DefaultConfig()
	if name := v.GetString("preset"); name != "" {
		preset, ok := configs.Presets()[name]
		if !ok {
			return intent.Config{}, errors.Errorf("unknown preset %q", name)
		}
		cfg = preset
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return intent.Config{}, errors.Wrap(err, "failed to decode classifier config")
	}
	return cfg, cfg.Validate()
}

// followDebugToggle keeps the log level in step with the classifier's Debug flag,
// whichever path changed it.
func followDebugToggle(configs *intent.ConfigStore) {
	configs.OnChange(func(cfg intent.Config) {
		logging.EnableDebug(cfg.Debug)
	})
	logging.EnableDebug(configs.Snapshot().Debug)
}

// watchClassifierConfig applies the file now and on every change.
// An invalid edit is logged and the running config stays in place.
func watchClassifierConfig(path string, configs *intent.ConfigStore) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read classifier config %s", path)
	}

	cfg, err := readClassifierConfig(v, configs)
	if err != nil {
		return errors.Wrapf(err, "invalid classifier config %s", path)
	}
	if err := configs.Update(cfg); err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := readClassifierConfig(v, configs)
		if err == nil {
			err = configs.Update(cfg)
		}
		if err != nil {
			slog.Warn("Ignoring classifier config change", "file", e.Name, "error", err)
			return
		}
		slog.Info("Classifier config reloaded", "file", e.Name, "context_threshold", cfg.ContextThreshold)
	})
	v.WatchConfig()
	return nil
}
