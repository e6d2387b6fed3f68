package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/shared"
)

// identityHeader carries the already-resolved login. Authentication happens
// upstream of this service; the core trusts the string it is handed.
const identityHeader = "X-Remote-User"

// respondError maps the error taxonomy onto the contractual status codes.
// Illegal transitions and unknown IDs are 4xx with a descriptive message,
// never a silent 200.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case shared.IsIllegalTransition(err):
		status = fiber.StatusConflict
	case shared.IsNotFound(err):
		status = fiber.StatusNotFound
	case shared.IsCode(err, "INVALID_REQUEST"):
		status = fiber.StatusBadRequest
	case shared.IsCode(err, shared.CodeRemoteUnavailable):
		status = fiber.StatusServiceUnavailable
	case shared.IsTimeout(err):
		status = fiber.StatusGatewayTimeout
	}

	message := err.Error()
	if se, ok := err.(*shared.ServiceError); ok {
		se.LogError()
		message = se.Message
	}

	return c.Status(status).JSON(fiber.Map{"error": message})
}

// actingUsername extracts the acting login from the request, defaulting to
// an anonymous marker so handlers never branch on a missing header.
func actingUsername(c *fiber.Ctx) string {
	if username := c.Get(identityHeader); username != "" {
		return username
	}
	return "anonymous"
}

// IdentityResolver resolves an authenticated login against the cached
// hierarchy: who they are, and who stands above them.
type IdentityResolver interface {
	IdentityFor(username string) models.Identity
	ResolveApprovalChain(username string) ([]models.ApprovalStep, error)
}
