package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/review-agent/backend/internal/catalog"
)

type SchemaHandler struct {
	catalog catalog.Catalog
}

func NewSchemaHandler(cat catalog.Catalog) *SchemaHandler {
	return &SchemaHandler{
		catalog: cat,
	}
}

func (h *SchemaHandler) GetSchema(c *fiber.Ctx) error {
	columns := make([]fiber.Map, 0, len(h.catalog.Columns))
	for _, col := range h.catalog.Columns {
		columns = append(columns, fiber.Map{
			"name":        col.Name,
			"type":        col.Type,
			"domain":      col.Domain(),
			"description": col.Description,
		})
	}

	return c.JSON(fiber.Map{
		"table":   h.catalog.Table,
		"columns": columns,
	})
}
