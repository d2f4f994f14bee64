package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/middleware/validation"
	"github.com/review-agent/backend/internal/query"
	"github.com/review-agent/backend/pkg/logger"
)

// Answerer is the question pipeline as seen by the transport layer.
type Answerer interface {
	AnswerQuestion(ctx context.Context, question string) query.Answer
}

type QueryHandler struct {
	engine Answerer
}

func NewQueryHandler(engine Answerer) *QueryHandler {
	return &QueryHandler{
		engine: engine,
	}
}

// HandleAsk answers one question. Pipeline failures are still answers, so
// the response is 200 whenever the request itself was valid.
func (h *QueryHandler) HandleAsk(c *fiber.Ctx) error {
	question, ok := c.Locals(validation.QuestionKey).(string)
	if !ok {
		var req struct {
			Question string `json:"question"`
		}
		if err := c.BodyParser(&req); err != nil {
			logger.Error("Failed to parse request body", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		if req.Question == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Question is required",
			})
		}
		question = req.Question
	}

	ans := h.engine.AnswerQuestion(c.Context(), question)

	return c.JSON(fiber.Map{
		"id":         ans.ID,
		"question":   ans.Question,
		"answer":     ans.Text,
		"status":     ans.Status,
		"statement":  ans.Statement,
		"attempts":   ans.Attempts,
		"cached":     ans.Cached,
		"source":     ans.Source,
		"latency_ms": ans.LatencyMS,
	})
}
