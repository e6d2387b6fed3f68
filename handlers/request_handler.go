package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tgregoire/invgov-backend/models"
	"github.com/tgregoire/invgov-backend/services"
)

type RequestHandler struct {
	Service *services.RequestService
	Routing IdentityResolver
}

func NewRequestHandler(service *services.RequestService, routing IdentityResolver) *RequestHandler {
	return &RequestHandler{Service: service, Routing: routing}
}

func (h *RequestHandler) actor(c *fiber.Ctx) models.Identity {
	return h.Routing.IdentityFor(actingUsername(c))
}

func requestID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid request id")
	}
	return id, nil
}

func (h *RequestHandler) List(c *fiber.Ctx) error {
	filter := models.RequestFilter{
		Theater:         c.Query("theater"),
		IndustrySegment: c.Query("industry_segment"),
		Quarter:         c.Query("quarter"),
		Status:          c.Query("status"),
	}

	requests, err := h.Service.List(filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(requests)
}

func (h *RequestHandler) Get(c *fiber.Ctx) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	req, err := h.Service.Get(id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(req)
}

func (h *RequestHandler) Create(c *fiber.Ctx) error {
	var input services.RequestInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	req, err := h.Service.Create(input, h.actor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(req)
}

func (h *RequestHandler) Update(c *fiber.Ctx) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	var input services.RequestInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	req, err := h.Service.Update(id, input, h.actor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(req)
}

func (h *RequestHandler) Delete(c *fiber.Ctx) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	if err := h.Service.Delete(id, h.actor(c)); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "request deleted"})
}

// transitionBody is the optional JSON body shared by the workflow endpoints.
type transitionBody struct {
	Comment *string `json:"comment"`
	Submit  bool    `json:"submit"`
}

func (h *RequestHandler) transition(c *fiber.Ctx, action string) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	var body transitionBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	req, err := h.Service.Transition(id, services.TransitionRequest{
		Action:    action,
		Comment:   body.Comment,
		SubmitNow: body.Submit,
	}, h.actor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(req)
}

func (h *RequestHandler) Submit(c *fiber.Ctx) error   { return h.transition(c, services.ActionSubmit) }
func (h *RequestHandler) Approve(c *fiber.Ctx) error  { return h.transition(c, services.ActionApprove) }
func (h *RequestHandler) Withdraw(c *fiber.Ctx) error { return h.transition(c, services.ActionWithdraw) }
func (h *RequestHandler) SendBack(c *fiber.Ctx) error { return h.transition(c, services.ActionSendBack) }
func (h *RequestHandler) Reject(c *fiber.Ctx) error   { return h.transition(c, services.ActionReject) }
func (h *RequestHandler) Deny(c *fiber.Ctx) error     { return h.transition(c, services.ActionDeny) }
func (h *RequestHandler) Revise(c *fiber.Ctx) error   { return h.transition(c, services.ActionRevise) }

func (h *RequestHandler) History(c *fiber.Ctx) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	events, err := h.Service.History(id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(events)
}

// Steps exposes the request's approval chain annotated with the record's
// progress through it.
func (h *RequestHandler) Steps(c *fiber.Ctx) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	steps, err := h.Service.ApprovalSteps(id)
	if err != nil {
		return respondError(c, err)
	}
	if steps == nil {
		steps = []models.ApprovalStep{}
	}

	return c.JSON(steps)
}

func (h *RequestHandler) ListOpportunities(c *fiber.Ctx) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	links, err := h.Service.ListOpportunities(id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(links)
}

func (h *RequestHandler) LinkOpportunity(c *fiber.Ctx) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	var body struct {
		OpportunityID string `json:"opportunity_id"`
	}
	if err := c.BodyParser(&body); err != nil || body.OpportunityID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "opportunity_id is required"})
	}

	link, err := h.Service.LinkOpportunity(id, body.OpportunityID, h.actor(c))
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(link)
}

func (h *RequestHandler) UnlinkOpportunity(c *fiber.Ctx) error {
	id, err := requestID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request id"})
	}

	opportunityID := c.Params("opportunity_id")
	if opportunityID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "opportunity_id is required"})
	}

	if err := h.Service.UnlinkOpportunity(id, opportunityID, h.actor(c)); err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": "opportunity link removed"})
}
