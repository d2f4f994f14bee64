package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/storage/models"
	"github.com/review-agent/backend/pkg/logger"
)

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 200
)

// AuditReader lists audit records for reviewers.
type AuditReader interface {
	ListFailures(ctx context.Context, limit int) ([]models.FailureRecord, error)
	ListSuccesses(ctx context.Context, limit int) ([]models.SuccessRecord, error)
}

type AuditHandler struct {
	reader AuditReader
}

func NewAuditHandler(reader AuditReader) *AuditHandler {
	return &AuditHandler{
		reader: reader,
	}
}

func (h *AuditHandler) ListFailures(c *fiber.Ctx) error {
	records, err := h.reader.ListFailures(c.Context(), limit(c))
	if err != nil {
		logger.Error("Failed to list failure records", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list failure records",
		})
	}
	if records == nil {
		records = []models.FailureRecord{}
	}

	return c.JSON(fiber.Map{
		"failures": records,
		"count":    len(records),
	})
}

func (h *AuditHandler) ListSuccesses(c *fiber.Ctx) error {
	records, err := h.reader.ListSuccesses(c.Context(), limit(c))
	if err != nil {
		logger.Error("Failed to list success records", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list success records",
		})
	}
	if records == nil {
		records = []models.SuccessRecord{}
	}

	return c.JSON(fiber.Map{
		"successes": records,
		"count":     len(records),
	})
}

func limit(c *fiber.Ctx) int {
	n := c.QueryInt("limit", defaultAuditLimit)
	if n < 1 {
		return defaultAuditLimit
	}
	return min(n, maxAuditLimit)
}
