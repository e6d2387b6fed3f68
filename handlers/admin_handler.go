package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tgregoire/invgov-backend/services"
)

// AdminHandler serves operator-only endpoints, gated by a shared token.
type AdminHandler struct {
	Loader     *services.HierarchyLoader
	AdminToken string
}

func NewAdminHandler(loader *services.HierarchyLoader, adminToken string) *AdminHandler {
	return &AdminHandler{Loader: loader, AdminToken: adminToken}
}

func (h *AdminHandler) authorized(c *fiber.Ctx) bool {
	return h.AdminToken != "" && c.Get("X-Admin-Token") == h.AdminToken
}

// ImportHierarchy replaces the cached organizational hierarchy from an
// uploaded xlsx workbook.
func (h *AdminHandler) ImportHierarchy(c *fiber.Ctx) error {
	if !h.authorized(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid admin token"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file upload is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not open uploaded file"})
	}
	defer file.Close()

	imported, skipped, err := h.Loader.Import(file)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"imported": imported,
		"skipped":  skipped,
	})
}
