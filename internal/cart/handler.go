package cart

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/wichananm65/storefront-backend/internal/apperr"
	"github.com/wichananm65/storefront-backend/internal/auth"
	"github.com/wichananm65/storefront-backend/internal/validation"
)

// Handler exposes the cart of the calling shopper, who is either the JWT
// user or the guest named by the guest header.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app *fiber.App) {
	const prefix = "/api/v1/shops/:shopID<int>/cart"
	app.Get(prefix, h.getCart)
	app.Delete(prefix, h.clearCart)
	app.Post(prefix+"/lines", h.addLine)
	app.Put(prefix+"/lines", h.setQuantity)
	app.Delete(prefix+"/lines", h.removeLine)
	app.Get(prefix+"/validate", h.validate)
	app.Post(prefix+"/merge", h.merge)
}

type addLineRequest struct {
	ProductID    int64  `json:"productId" validate:"required,gt=0"`
	VariantID    string `json:"variantId"`
	VariantIndex *int   `json:"variantIndex" validate:"omitempty,gte=0"`
	Quantity     int    `json:"quantity" validate:"min=1,max=99"`
}

type setQuantityRequest struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity" validate:"min=0,max=99"`
}

type removeLineRequest struct {
	ProductID int64  `query:"productId" json:"productId" validate:"required,gt=0"`
	VariantID string `query:"variantId" json:"variantId"`
}

type mergeRequest struct {
	GuestID string `json:"guestId"`
	Lines   []Line `json:"lines"`
}

func cartKey(c *fiber.Ctx) (Key, error) {
	shopID, err := strconv.ParseInt(c.Params("shopID"), 10, 64)
	if err != nil || shopID <= 0 {
		return Key{}, apperr.Field("shopId", "must be a positive number")
	}
	userID, err := auth.ShopperID(c)
	if err != nil {
		return Key{}, err
	}
	return Key{ShopID: shopID, UserID: userID}, nil
}

// respond maps auth failures to 401 and everything else through apperr.
func respond(c *fiber.Ctx, err error) error {
	if errors.Is(err, fiber.ErrUnauthorized) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	return apperr.Respond(c, err)
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return respond(c, err)
	}
	view, err := h.service.Get(c.UserContext(), key)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(view)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return respond(c, err)
	}
	if err := h.service.Clear(c.UserContext(), key); err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"message": "cart cleared"})
}

func (h *Handler) addLine(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return respond(c, err)
	}
	var req addLineRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return respond(c, err)
	}
	var view View
	if req.VariantIndex != nil && req.VariantID == "" {
		view, err = h.service.AddLineAt(c.UserContext(), key, req.ProductID, req.Quantity, *req.VariantIndex)
	} else {
		view, err = h.service.AddLine(c.UserContext(), key, req.ProductID, req.Quantity, req.VariantID)
	}
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(view)
}

func (h *Handler) setQuantity(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return respond(c, err)
	}
	var req setQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return respond(c, err)
	}
	view, err := h.service.SetQuantity(c.UserContext(), key, req.ProductID, req.Quantity, req.VariantID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(view)
}

func (h *Handler) removeLine(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return respond(c, err)
	}
	var req removeLineRequest
	if len(c.Body()) > 0 {
		err = c.BodyParser(&req)
	} else {
		err = c.QueryParser(&req)
	}
	if err != nil {
		return respond(c, apperr.Validation(err.Error(), nil))
	}
	if err := validation.Struct(req); err != nil {
		return respond(c, err)
	}
	view, err := h.service.RemoveLine(c.UserContext(), key, req.ProductID, req.VariantID)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(view)
}

func (h *Handler) validate(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return respond(c, err)
	}
	if c.QueryBool("apply") {
		result, view, err := h.service.ApplyCorrection(c.UserContext(), key)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(fiber.Map{"validation": result, "cart": view})
	}
	result, err := h.service.Validate(c.UserContext(), key)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(fiber.Map{"validation": result})
}

// merge folds a guest cart into the caller's cart after sign-in, or merges
// a raw line list into the caller's cart.
func (h *Handler) merge(c *fiber.Ctx) error {
	key, err := cartKey(c)
	if err != nil {
		return respond(c, err)
	}
	var req mergeRequest
	if err := c.BodyParser(&req); err != nil {
		return respond(c, apperr.Validation(err.Error(), nil))
	}
	guestID := strings.TrimSpace(req.GuestID)
	if guestID == "" {
		view, err := h.service.Merge(c.UserContext(), key, req.Lines)
		if err != nil {
			return respond(c, err)
		}
		return c.JSON(view)
	}
	if auth.IsGuest(key.UserID) {
		return respond(c, fiber.ErrUnauthorized)
	}
	source := Key{ShopID: key.ShopID, UserID: auth.GuestUserID(guestID)}
	view, err := h.service.MergeCart(c.UserContext(), key, source)
	if err != nil {
		return respond(c, err)
	}
	return c.JSON(view)
}
