package address

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/auth"
)

// Handler delegates address operations to the address service. Only signed
// in shoppers have an address book.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Get("/api/v1/addresses", h.getAddresses)
	app.Post("/api/v1/addresses", h.addAddress)
	app.Put("/api/v1/addresses/:id<int>", h.updateAddress)
	app.Delete("/api/v1/addresses/:id<int>", h.deleteAddress)
}

type addressRequest struct {
	Label  string `json:"label"`
	Postal Postal `json:"postal"`
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
}

func (h *Handler) getAddresses(c *fiber.Ctx) error {
	userID, err := auth.UserIDFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}
	addrs, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(addrs)
}

func (h *Handler) addAddress(c *fiber.Ctx) error {
	userID, err := auth.UserIDFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}
	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.Validation(err.Error(), nil))
	}
	addr, err := h.service.Add(c.UserContext(), userID, req.Label, req.Postal)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(addr)
}

func (h *Handler) updateAddress(c *fiber.Ctx) error {
	userID, err := auth.UserIDFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}
	id, _ := strconv.ParseInt(c.Params("id"), 10, 64)
	var req addressRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.Validation(err.Error(), nil))
	}
	addr, err := h.service.Update(c.UserContext(), userID, id, req.Label, req.Postal)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(addr)
}

func (h *Handler) deleteAddress(c *fiber.Ctx) error {
	userID, err := auth.UserIDFromCtx(c)
	if err != nil {
		return unauthorized(c)
	}
	id, _ := strconv.ParseInt(c.Params("id"), 10, 64)
	if err := h.service.Delete(c.UserContext(), userID, id); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
