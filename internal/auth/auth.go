// Package auth extracts the shopper identity attached to a request. Tokens are
// issued elsewhere; this package only verifies and reads them.
package auth

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// GuestHeader carries the opaque id of an unauthenticated shopper.
const GuestHeader = "X-Guest-ID"

const guestPrefix = "guest:"

// Middleware verifies HS256 bearer tokens. Requests without an Authorization
// header that carry a guest id are let through so guests can keep a cart.
func Middleware(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: []byte(secret),
		Filter: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderAuthorization) == "" && c.Get(GuestHeader) != ""
		},
	})
}

// UserIDFromCtx extracts the user_id claim from the JWT token stored in
// c.Locals("user"). Numeric and string claims are both accepted.
func UserIDFromCtx(c *fiber.Ctx) (string, error) {
	u := c.Locals("user")
	if u == nil {
		return "", fiber.ErrUnauthorized
	}
	tok, ok := u.(*jwt.Token)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", fiber.ErrUnauthorized
	}
	switch v := claims["user_id"].(type) {
	case float64:
		if v <= 0 {
			return "", fiber.ErrUnauthorized
		}
		return strconv.FormatInt(int64(v), 10), nil
	case int:
		if v <= 0 {
			return "", fiber.ErrUnauthorized
		}
		return strconv.Itoa(v), nil
	case int64:
		if v <= 0 {
			return "", fiber.ErrUnauthorized
		}
		return strconv.FormatInt(v, 10), nil
	case string:
		if strings.TrimSpace(v) == "" || strings.HasPrefix(v, guestPrefix) {
			return "", fiber.ErrUnauthorized
		}
		return v, nil
	default:
		return "", fiber.ErrUnauthorized
	}
}

// ShopperID returns the authenticated user id, falling back to the guest id
// header. Guest ids are namespaced so they never collide with user ids.
func ShopperID(c *fiber.Ctx) (string, error) {
	if id, err := UserIDFromCtx(c); err == nil {
		return id, nil
	}
	if g := strings.TrimSpace(c.Get(GuestHeader)); g != "" {
		return GuestUserID(g), nil
	}
	return "", fiber.ErrUnauthorized
}

// GuestUserID maps a raw guest id to the user id its cart is stored under.
func GuestUserID(guestID string) string {
	return guestPrefix + guestID
}

// IsGuest reports whether userID belongs to a guest shopper.
func IsGuest(userID string) bool {
	return strings.HasPrefix(userID, guestPrefix)
}

// NewGuestID returns a fresh guest id for clients that do not have one yet.
func NewGuestID() string {
	return uuid.NewString()
}

// RoleAdmin is the role claim value that unlocks shop administration routes.
const RoleAdmin = "admin"

// RoleFromCtx returns the role claim of the request's token, or "".
func RoleFromCtx(c *fiber.Ctx) string {
	tok, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}

// RequireAdmin rejects requests whose token does not carry the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if RoleFromCtx(c) != RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"message": "forbidden"})
		}
		return c.Next()
	}
}
