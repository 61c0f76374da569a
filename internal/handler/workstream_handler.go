package handler

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"

	"github.com/radicle-dev/workstreams-api/internal/domain"
	"github.com/radicle-dev/workstreams-api/internal/kv"
	"github.com/radicle-dev/workstreams-api/internal/service"
	"github.com/radicle-dev/workstreams-api/pkg/validator"
)

type WorkstreamHandler struct {
	workstreamService *service.WorkstreamService
	validator         *validator.Validator
}

func NewWorkstreamHandler(workstreamService *service.WorkstreamService, validator *validator.Validator) *WorkstreamHandler {
	return &WorkstreamHandler{
		workstreamService: workstreamService,
		validator:         validator,
	}
}

// List returns all workstreams of a user
// GET /users/:address/workstreams
func (h *WorkstreamHandler) List(c *fiber.Ctx) error {
	owner, ok := parseAddressParam(c)
	if !ok {
		return nil
	}

	workstreams, err := h.workstreamService.List(c.Context(), owner)
	if err != nil {
		return workstreamError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(workstreams)
}

// Get returns a single workstream
// GET /users/:address/workstreams/:id
func (h *WorkstreamHandler) Get(c *fiber.Ctx) error {
	owner, ok := parseAddressParam(c)
	if !ok {
		return nil
	}

	ws, err := h.workstreamService.Get(c.Context(), owner, c.Params("id"))
	if err != nil {
		return workstreamError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(ws)
}

// Create adds a workstream to the authenticated owner's record
// POST /users/:address/workstreams
func (h *WorkstreamHandler) Create(c *fiber.Ctx) error {
	// Ownership was already checked by the RequireOwner middleware
	owner, ok := c.Locals("owner").(common.Address)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthenticated",
		})
	}

	var req service.CreateWorkstreamRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ws, err := h.workstreamService.Create(c.Context(), owner, req)
	if err != nil {
		return workstreamError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(ws)
}

// Update replaces a workstream's mutable fields
// PUT /users/:address/workstreams/:id
func (h *WorkstreamHandler) Update(c *fiber.Ctx) error {
	owner, ok := c.Locals("owner").(common.Address)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthenticated",
		})
	}

	var req service.UpdateWorkstreamRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ws, err := h.workstreamService.Update(c.Context(), owner, c.Params("id"), req)
	if err != nil {
		return workstreamError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(ws)
}

// Apply files an application by the authenticated session address
// POST /users/:address/workstreams/:id/applications
func (h *WorkstreamHandler) Apply(c *fiber.Ctx) error {
	owner, ok := parseAddressParam(c)
	if !ok {
		return nil
	}

	// Any authenticated user can apply, not just the owner
	session, ok := c.Locals("session").(*domain.SessionRecord)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "unauthenticated",
		})
	}

	var req service.ApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed request body",
		})
	}
	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	application, err := h.workstreamService.Apply(c.Context(), owner, c.Params("id"), session.Address, req)
	if err != nil {
		return workstreamError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(application)
}

// parseAddressParam validates the :address route parameter, responding with
// 400 itself when the value is not a hex address.
func parseAddressParam(c *fiber.Ctx) (common.Address, bool) {
	raw := c.Params("address")
	if !common.IsHexAddress(raw) {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid address",
		})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func workstreamError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	case errors.Is(err, service.ErrWorkstreamNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "workstream not found",
		})
	case errors.Is(err, service.ErrUnknownDripsHub):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "drips hub is not registered",
		})
	case errors.Is(err, service.ErrInvalidDates):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrBadDripsConfig):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "drips configuration rejected",
		})
	case errors.Is(err, kv.ErrStoreUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "store unavailable",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}
}
