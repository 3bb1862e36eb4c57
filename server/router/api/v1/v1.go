package v1

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/studynotes/ai/intent"
	"github.com/hrygo/studynotes/ai/rag"
	"github.com/hrygo/studynotes/internal/profile"
)

// APIV1Service serves the classifier and chat JSON API.
type APIV1Service struct {
	Profile    *profile.Profile
	Classifier *intent.Classifier
	Configs    *intent.ConfigStore
	Pipeline   *rag.Pipeline // nil when no retrieval backend is configured

	chatLimiter *rateLimiter
}

func NewAPIV1Service(profile *profile.Profile, classifier *intent.Classifier, configs *intent.ConfigStore, pipeline *rag.Pipeline) *APIV1Service {
	return &APIV1Service{
		Profile:    profile,
		Classifier: classifier,
		Configs:    configs,
		Pipeline:   pipeline,
		chatLimiter: newRateLimiter(RateLimitConfig{
			RequestsPerSecond: profile.ChatRateLimit,
			Burst:             profile.ChatRateBurst,
		}),
	}
}

// RegisterRoutes mounts the API under /api/v1.
func (s *APIV1Service) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/intent/analyze", s.AnalyzeIntent)
	g.GET("/intent/config", s.GetIntentConfig)
	g.PUT("/intent/config", s.UpdateIntentConfig)
	g.GET("/intent/presets", s.ListIntentPresets)
	g.GET("/intent/cache", s.GetIntentCacheStats)
	g.DELETE("/intent/cache", s.PurgeIntentCache)
	g.POST("/chat", s.Chat, s.chatLimiter.middleware())
}

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Message string `json:"message"`
}

func jsonError(c echo.Context, status int, message string) error {
	return c.JSON(status, errorResponse{Message: message})
}

// requestTimeout bounds chat handling, including generation.
func (s *APIV1Service) requestTimeout() time.Duration {
	if s.Profile != nil && s.Profile.LLMTimeout > 0 {
		return time.Duration(s.Profile.LLMTimeout)*time.Second + 10*time.Second
	}
	return 2 * time.Minute
}
