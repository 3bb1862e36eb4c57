package v1

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/studynotes/ai/rag"
)

func (s *APIV1Service) Chat(c echo.Context) error {
	if s.Pipeline == nil {
		return jsonError(c, http.StatusServiceUnavailable, "chat is not configured")
	}

	var req rag.Request
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.requestTimeout())
	defer cancel()

	answer, err := s.Pipeline.Answer(ctx, req)
	switch {
	case errors.Is(err, rag.ErrEmptyQuery):
		return jsonError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return jsonError(c, http.StatusGatewayTimeout, "chat timed out")
	case err != nil:
		slog.Error("Chat request failed", "error", err)
		return jsonError(c, http.StatusBadGateway, "failed to generate answer")
	}
	return c.JSON(http.StatusOK, answer)
}
