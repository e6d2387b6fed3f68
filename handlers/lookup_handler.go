package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/services"
)

// LookupHandler serves the read-only reference endpoints: summary rollups,
// account search, theater/industry pickers, budgets and the acting user.
type LookupHandler struct {
	Service *services.RequestService
	Store   services.Store
	Routing IdentityResolver
}

func NewLookupHandler(service *services.RequestService, store services.Store, routing IdentityResolver) *LookupHandler {
	return &LookupHandler{Service: service, Store: store, Routing: routing}
}

func (h *LookupHandler) Summary(c *fiber.Ctx) error {
	filter := models.RequestFilter{
		Theater:         c.Query("theater"),
		IndustrySegment: c.Query("industry_segment"),
		Quarter:         c.Query("quarter"),
	}

	summary, err := h.Service.Summary(filter, actingUsername(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(summary)
}

func (h *LookupHandler) SearchAccounts(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query parameter q is required"})
	}

	limit := 25
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	accounts, err := h.Store.SearchAccounts(query, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(accounts)
}

func (h *LookupHandler) TheatersIndustries(c *fiber.Ctx) error {
	lookup, err := h.Store.TheaterIndustryLookups()
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(lookup)
}

func (h *LookupHandler) Budgets(c *fiber.Ctx) error {
	budgets, err := h.Store.ListBudgets(c.Query("fiscal_year"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(budgets)
}

// CurrentUser returns the acting identity resolved against the cached
// hierarchy, falling back to a bare identity for unknown logins.
func (h *LookupHandler) CurrentUser(c *fiber.Ctx) error {
	return c.JSON(h.Routing.IdentityFor(actingUsername(c)))
}

// ApprovalChain resolves the manager chain for a login, defaulting to the
// acting user when no username is given.
func (h *LookupHandler) ApprovalChain(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		username = actingUsername(c)
	}

	chain, err := h.Routing.ResolveApprovalChain(username)
	if err != nil {
		return respondError(c, err)
	}
	if chain == nil {
		chain = []models.ApprovalStep{}
	}

	return c.JSON(chain)
}
