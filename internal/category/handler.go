package category

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/auth"
	"github.com/wichananm65/storefront-backend/internal/validation"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/shops/:shopID<int>/categories", h.listCategories)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	admin := auth.RequireAdmin()
	app.Post("/api/v1/shops/:shopID<int>/categories", admin, h.createCategory)
	app.Delete("/api/v1/categories/:id<int>", admin, h.deleteCategory)
}

type categoryRequest struct {
	Name     string `json:"categoryName" validate:"required,max=100"`
	Position int    `json:"position" validate:"gte=0"`
}

func shopID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("shopID"), 10, 64)
	if err != nil {
		return 0, apperr.Field("shopId", "must be a number")
	}
	return id, nil
}

func (h *Handler) listCategories(c *fiber.Ctx) error {
	id, err := shopID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	items, err := h.service.List(c.UserContext(), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(items)
}

func (h *Handler) createCategory(c *fiber.Ctx) error {
	id, err := shopID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return apperr.Respond(c, err)
	}
	created, err := h.service.Create(c.UserContext(), id, req.Name, req.Position)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) deleteCategory(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return apperr.Respond(c, apperr.Field("categoryId", "must be a number"))
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return apperr.Respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
