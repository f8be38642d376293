package order

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/auth"
	"github.com/wichananm65/storefront-backend/internal/cart"
	"github.com/wichananm65/storefront-backend/internal/validation"
)

// Handler exposes checkout, the shopper's order history and the shop
// administration routes.
type Handler struct {
	service   *Service
	statsDays int
}

// NewHandler builds the handler. statsDays is the stats window used when the
// request does not name one.
func NewHandler(s *Service, statsDays int) *Handler {
	if statsDays <= 0 {
		statsDays = 30
	}
	return &Handler{service: s, statsDays: statsDays}
}

// RegisterPublicRoutes exposes the tracking lookup, which needs no login.
func (h *Handler) RegisterPublicRoutes(app *fiber.App) {
	app.Get("/api/v1/orders/tracking/:trackingID", h.getByTracking)
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	app.Post("/api/v1/shops/:shopID<int>/checkout", h.checkout)
	app.Get("/api/v1/orders", h.listMine)
	app.Get("/api/v1/orders/:id<int>", h.getMine)
	app.Post("/api/v1/orders/:id<int>/cancel", h.cancel)

	admin := auth.RequireAdmin()
	app.Patch("/api/v1/orders/:id<int>/status", admin, h.updateStatus)
	app.Post("/api/v1/orders/:id<int>/payment", admin, h.updatePayment)
	app.Delete("/api/v1/orders/:id<int>", admin, h.deleteOrder)
	app.Get("/api/v1/shops/:shopID<int>/orders", admin, h.listShop)
	app.Get("/api/v1/shops/:shopID<int>/orders/stats", admin, h.stats)
}

type checkoutRequest struct {
	ShippingAddress   *Address `json:"shippingAddress"`
	ShippingAddressID int64    `json:"shippingAddressId" validate:"gte=0"`
	BillingAddress    *Address `json:"billingAddress"`
	PaymentMethod     string   `json:"paymentMethod" validate:"max=50"`
	Notes             string   `json:"notes" validate:"max=1000"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	Note   string `json:"note" validate:"max=1000"`
}

type paymentRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=pending paid failed refunded"`
	PaymentMethod string `json:"paymentMethod" validate:"max=50"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// respond maps auth failures to 401 and everything else through apperr.
func respond(c *fiber.Ctx, err error) error {
	if errors.Is(err, fiber.ErrUnauthorized) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	return apperr.Respond(c, err)
}

func parseID(c *fiber.Ctx, param, field string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Field(field, "must be a positive number")
	}
	return id, nil
}

// filterFromQuery reads status, limit and offset. status may be a comma
// separated list.
func filterFromQuery(c *fiber.Ctx) (Filter, error) {
	var f Filter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			f.Statuses = append(f.Statuses, Status(strings.TrimSpace(s)))
		}
	}
	var err error
	if raw := c.Query("limit"); raw != "" {
		if f.Limit, err = strconv.Atoi(raw); err != nil {
			return Filter{}, apperr.Field("limit", "must be a number")
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if f.Offset, err = strconv.Atoi(raw); err != nil {
			return Filter{}, apperr.Field("offset", "must be a number")
		}
	}
	return f, nil
}

func (h *Handler) checkout(c *fiber.Ctx) error {
	shopID, err := parseID(c, "shopID", "shopId")
	if err != nil {
		return respond(c, err)
	}
	userID, err := auth.ShopperID(c)
	if err != nil {
		return respond(c, err)
	}
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return respond(c, err)
	}
	o, err := h.service.Checkout(c.UserContext(), cart.Key{ShopID: shopID, UserID: userID}, CheckoutInput{
		ShippingAddress:   req.ShippingAddress,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddress:    req.BillingAddress,
		PaymentMethod:     req.PaymentMethod,
		Notes:             req.Notes,
	})
	if err != nil {
		return respond(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *Handler) listMine(c *fiber.Ctx) error {
	userID, err := auth.ShopperID(c)
	if err != nil {
		return respond(c, err)
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return respond(c, err)
	}
	f.UserID = userID
	if raw := c.Query("shopId"); raw != "" {
		if f.ShopID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return respond(c, apperr.Field("shopId", "must be a number"))
		}
	}
	orders, err := h.service.List(c.UserContext(), f)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) getMine(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "orderId")
	if err != nil {
		return respond(c, err)
	}
	userID, err := auth.ShopperID(c)
	if err != nil {
		return respond(c, err)
	}
	o, err := h.service.GetForUser(c.UserContext(), id, userID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) getByTracking(c *fiber.Ctx) error {
	o, err := h.service.GetByTracking(c.UserContext(), c.Params("trackingID"))
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) cancel(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "orderId")
	if err != nil {
		return respond(c, err)
	}
	userID, err := auth.ShopperID(c)
	if err != nil {
		return respond(c, err)
	}
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return respond(c, apperr.Validation(err.Error(), nil))
		}
	}
	if err := validation.Struct(req); err != nil {
		return respond(c, err)
	}
	o, err := h.service.Cancel(c.UserContext(), id, userID, req.Reason)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) updateStatus(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "orderId")
	if err != nil {
		return respond(c, err)
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return respond(c, err)
	}
	o, err := h.service.UpdateStatus(c.UserContext(), id, Status(req.Status), req.Note)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) updatePayment(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "orderId")
	if err != nil {
		return respond(c, err)
	}
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return respond(c, err)
	}
	o, err := h.service.UpdatePaymentStatus(c.UserContext(), id, PaymentStatus(req.PaymentStatus), req.PaymentMethod)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(o)
}

func (h *Handler) deleteOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id", "orderId")
	if err != nil {
		return respond(c, err)
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return respond(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) listShop(c *fiber.Ctx) error {
	shopID, err := parseID(c, "shopID", "shopId")
	if err != nil {
		return respond(c, err)
	}
	f, err := filterFromQuery(c)
	if err != nil {
		return respond(c, err)
	}
	f.ShopID = shopID
	f.UserID = strings.TrimSpace(c.Query("userId"))
	orders, err := h.service.List(c.UserContext(), f)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(orders)
}

func (h *Handler) stats(c *fiber.Ctx) error {
	shopID, err := parseID(c, "shopID", "shopId")
	if err != nil {
		return respond(c, err)
	}
	days := h.statsDays
	if raw := c.Query("days"); raw != "" {
		if days, err = strconv.Atoi(raw); err != nil {
			return respond(c, apperr.Field("days", "must be a number"))
		}
	}
	st, err := h.service.Stats(c.UserContext(), shopID, days)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(st)
}
