package catalog

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/auth"
	"github.com/wichananm65/storefront-backend/internal/validation"
	"github.com/wichananm65/storefront-backend/internal/variant"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/shops/:shopID<int>/products", h.listProducts)
	app.Get("/api/v1/products/:id<int>", h.getProduct)
	app.Post("/api/v1/products/:id<int>/options", h.options)
}

// RegisterProtectedRoutes exposes catalog management to administrators.
func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	admin := auth.RequireAdmin()
	app.Post("/api/v1/products", admin, h.createProduct)
	app.Put("/api/v1/products/:id<int>", admin, h.updateProduct)
	app.Delete("/api/v1/products/:id<int>", admin, h.deleteProduct)
}

type variantRequest struct {
	ID              string            `json:"variantId"`
	Attributes      map[string]string `json:"attributes"`
	Price           decimal.Decimal   `json:"price"`
	DiscountPercent decimal.Decimal   `json:"discountPercent"`
	StockQuantity   int               `json:"stockQuantity" validate:"gte=0"`
	IsDefault       bool              `json:"isDefault"`
}

type productRequest struct {
	ShopID          int64            `json:"shopId" validate:"required,gt=0"`
	CategoryIDs     []int64          `json:"categoryIds"`
	Name            string           `json:"productName" validate:"required,max=200"`
	Price           decimal.Decimal  `json:"price"`
	DiscountPercent decimal.Decimal  `json:"discountPercent"`
	StockQuantity   int              `json:"stockQuantity" validate:"gte=0"`
	Status          Status           `json:"status" validate:"omitempty,oneof=active inactive out_of_stock"`
	Variants        []variantRequest `json:"variants" validate:"dive"`
}

func (r productRequest) product() Product {
	p := Product{
		ShopID:          r.ShopID,
		CategoryIDs:     r.CategoryIDs,
		Name:            r.Name,
		Price:           r.Price,
		DiscountPercent: r.DiscountPercent,
		StockQuantity:   r.StockQuantity,
		Status:          r.Status,
	}
	for _, v := range r.Variants {
		p.Variants = append(p.Variants, Variant{
			ID:              v.ID,
			Attributes:      v.Attributes,
			Price:           v.Price,
			DiscountPercent: v.DiscountPercent,
			StockQuantity:   v.StockQuantity,
			IsDefault:       v.IsDefault,
		})
	}
	return p
}

func (h *Handler) listProducts(c *fiber.Ctx) error {
	shopID, err := strconv.ParseInt(c.Params("shopID"), 10, 64)
	if err != nil {
		return apperr.Respond(c, apperr.Field("shopId", "must be a number"))
	}
	var products []Product
	if raw := c.Query("categoryId"); raw != "" {
		categoryID, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			return apperr.Respond(c, apperr.Field("categoryId", "must be a number"))
		}
		products, err = h.service.ListInCategory(c.UserContext(), shopID, categoryID)
	} else {
		products, err = h.service.List(c.UserContext(), shopID)
	}
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(products)
}

func (h *Handler) getProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	p, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(p)
}

func (h *Handler) options(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	sel := variant.Selection{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&sel); err != nil {
			return apperr.Respond(c, apperr.Validation("selection must be an object of strings", nil))
		}
	}
	opts, err := h.service.Options(c.UserContext(), id, sel)
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(opts)
}

func (h *Handler) createProduct(c *fiber.Ctx) error {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return apperr.Respond(c, err)
	}
	created, err := h.service.Create(c.UserContext(), req.product())
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) updateProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return apperr.Respond(c, err)
	}
	updated, err := h.service.Update(c.UserContext(), id, req.product())
	if err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(updated)
}

func (h *Handler) deleteProduct(c *fiber.Ctx) error {
	id, err := productID(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return apperr.Respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "product deleted"})
}

func productID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Field("productId", "must be a positive number")
	}
	return id, nil
}
