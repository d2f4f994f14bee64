package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/middleware/ratelimit"
	"github.com/review-agent/backend/internal/middleware/validation"
	"github.com/review-agent/backend/internal/query"
	"github.com/review-agent/backend/pkg/logger"
)

const tooManyQuestions = "Too many questions. Please wait a moment and try again."

type WebSocketHandler struct {
	engine            Answerer
	timeout           time.Duration
	maxQuestionLength int
	allow             func(client string) bool
}

func NewWebSocketHandler(engine Answerer, timeout time.Duration, maxQuestionLength int) *WebSocketHandler {
	return &WebSocketHandler{
		engine:            engine,
		timeout:           timeout,
		maxQuestionLength: maxQuestionLength,
	}
}

// WithLimit charges every question against the client's rate limit.
func (h *WebSocketHandler) WithLimit(allow func(client string) bool) *WebSocketHandler {
	h.allow = allow
	return h
}

type wsRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// HandleConnection answers "question" frames one at a time. Each question
// produces a status frame, one chunk frame per answer line and a complete
// frame.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsRequest
		if err := c.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			return
		}

		if msg.Type != "question" {
			continue
		}

		if h.allow != nil {
			client, _ := c.Locals(ratelimit.LocalsKey).(string)
			if !h.allow(client) {
				h.sendError(c, tooManyQuestions)
				continue
			}
		}

		question, problem := validation.Clean(msg.Content, h.maxQuestionLength)
		if problem != "" {
			h.sendError(c, problem)
			continue
		}

		if err := h.streamAnswer(c, question); err != nil {
			logger.Warn("Failed to stream answer", zap.Error(err))
			return
		}
	}
}

func (h *WebSocketHandler) streamAnswer(c *websocket.Conn, question string) error {
	ctx := context.Background()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	if err := h.send(c, "status", "Generating query..."); err != nil {
		return err
	}

	ans := h.engine.AnswerQuestion(ctx, question)

	lines := strings.SplitAfter(ans.Text, "\n")
	for _, line := range lines {
		if err := h.send(c, "chunk", line); err != nil {
			return err
		}
	}

	return h.sendComplete(c, ans)
}

func (h *WebSocketHandler) send(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(map[string]any{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, ans query.Answer) error {
	return c.WriteJSON(map[string]any{
		"type":       "complete",
		"message_id": ans.ID,
		"status":     ans.Status,
		"statement":  ans.Statement,
		"attempts":   ans.Attempts,
		"cached":     ans.Cached,
		"source":     ans.Source,
		"latency_ms": ans.LatencyMS,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]any{
		"type":  "error",
		"error": errorMsg,
	})
}
