package v1

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/studynotes/ai/intent"
)

// AnalyzeIntentRequest is the body of POST /api/v1/intent/analyze.
type AnalyzeIntentRequest struct {
	Query    string         `json:"query"`
	Enhanced *bool          `json:"enhanced,omitempty"` // defaults to the config's enhanced_analysis
	Config   *intent.Config `json:"config,omitempty"`   // per-request override
}

// IntentConfigResponse describes the active classifier configuration.
type IntentConfigResponse struct {
	Preset  string        `json:"preset,omitempty"`
	Config  intent.Config `json:"config"`
	Presets []string      `json:"presets"`
}

// UpdateIntentConfigRequest switches to a preset or replaces the config.
type UpdateIntentConfigRequest struct {
	Preset string         `json:"preset,omitempty"`
	Config *intent.Config `json:"config,omitempty"`
}

func (s *APIV1Service) AnalyzeIntent(c echo.Context) error {
	var req AnalyzeIntentRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}

	cfg := s.Configs.Snapshot()
	if req.Config != nil {
		if err := req.Config.Validate(); err != nil {
			return jsonError(c, http.StatusBadRequest, err.Error())
		}
		cfg = *req.Config
	}
	enhanced := cfg.EnhancedAnalysis
	if req.Enhanced != nil {
		enhanced = *req.Enhanced
	}

	var result *intent.Result
	if enhanced {
		result = s.Classifier.AnalyzeEnhanced(req.Query, cfg)
	} else {
		result = s.Classifier.Analyze(req.Query, cfg)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *APIV1Service) GetIntentConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, s.configResponse())
}

func (s *APIV1Service) UpdateIntentConfig(c echo.Context) error {
	var req UpdateIntentConfigRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}

	preset := strings.TrimSpace(req.Preset)
	switch {
	case preset != "" && req.Config != nil:
		return jsonError(c, http.StatusBadRequest, "set either preset or config, not both")
	case preset != "":
		if err := s.Configs.ApplyPreset(preset); err != nil {
			return jsonError(c, http.StatusBadRequest, err.Error())
		}
	case req.Config != nil:
		if err := s.Configs.Update(*req.Config); err != nil {
			return jsonError(c, http.StatusBadRequest, err.Error())
		}
	default:
		return jsonError(c, http.StatusBadRequest, "preset or config is required")
	}

	slog.Info("Intent config updated", "preset", s.Configs.PresetName())
	return c.JSON(http.StatusOK, s.configResponse())
}

func (s *APIV1Service) ListIntentPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Configs.Presets())
}

func (s *APIV1Service) GetIntentCacheStats(c echo.Context) error {
	cache := s.Classifier.Cache()
	if cache == nil {
		return jsonError(c, http.StatusNotFound, "result cache is disabled")
	}
	return c.JSON(http.StatusOK, cache.Stats())
}

func (s *APIV1Service) PurgeIntentCache(c echo.Context) error {
	cache := s.Classifier.Cache()
	if cache == nil {
		return jsonError(c, http.StatusNotFound, "result cache is disabled")
	}
	cache.Purge()
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) configResponse() IntentConfigResponse {
	presets := s.Configs.Presets()
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return IntentConfigResponse{
		Preset:  s.Configs.PresetName(),
		Config:  s.Configs.Snapshot(),
		Presets: names,
	}
}
