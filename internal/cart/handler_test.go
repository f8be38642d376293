package cart

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront-backend/internal/auth"
)

func makeAppWithCartHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			id, err := strconv.Atoi(v)
			if err == nil {
				claims := jwt.MapClaims{"user_id": id}
				c.Locals("user", &jwt.Token{Claims: claims})
			}
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app
}

type request struct {
	method, path, body string
	user, guest        string
}

func do(t *testing.T, app *fiber.App, r request) (int, map[string]any) {
	t.Helper()
	var req = httptest.NewRequest(r.method, r.path, nil)
	if r.body != "" {
		req = httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		req.Header.Set("Content-Type", "application/json")
	}
	if r.user != "" {
		req.Header.Set("X-User-ID", r.user)
	}
	if r.guest != "" {
		req.Header.Set(auth.GuestHeader, r.guest)
	}
	res, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(res.Body)
	out := map[string]any{}
	if len(b) > 0 {
		require.NoError(t, json.Unmarshal(b, &out), string(b))
	}
	return res.StatusCode, out
}

func TestCartRoutes_RequireIdentity(t *testing.T) {
	svc, _, _ := newTestService()
	app := makeAppWithCartHandler(NewHandler(svc))

	status, _ := do(t, app, request{method: "GET", path: "/api/v1/shops/1/cart"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestCartRoutes_AddSetRemove(t *testing.T) {
	svc, _, _ := newTestService()
	app := makeAppWithCartHandler(NewHandler(svc))

	status, body := do(t, app, request{method: "POST", path: "/api/v1/shops/1/cart/lines", user: "42", body: `{"productId":1,"quantity":2}`})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(2), body["totalItems"])
	assert.Equal(t, "36", body["totalAmount"])

	status, body = do(t, app, request{method: "POST", path: "/api/v1/shops/1/cart/lines", user: "42", body: `{"productId":2,"variantIndex":1,"quantity":1}`})
	require.Equal(t, fiber.StatusOK, status)
	lines := body["lines"].([]any)
	require.Len(t, lines, 2)
	assert.Equal(t, "v-large", lines[1].(map[string]any)["variantId"])
	assert.Equal(t, "51", body["totalAmount"])

	status, body = do(t, app, request{method: "PUT", path: "/api/v1/shops/1/cart/lines", user: "42", body: `{"productId":1,"quantity":0}`})
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["lines"], 1)

	status, body = do(t, app, request{method: "DELETE", path: "/api/v1/shops/1/cart/lines?productId=2&variantId=v-large", user: "42"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["lines"])
}

func TestCartRoutes_QuantityValidation(t *testing.T) {
	svc, _, _ := newTestService()
	app := makeAppWithCartHandler(NewHandler(svc))

	status, body := do(t, app, request{method: "POST", path: "/api/v1/shops/1/cart/lines", user: "42", body: `{"productId":1,"quantity":0}`})
	require.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body["code"])
	assert.Contains(t, body["errors"], "quantity")

	status, body = do(t, app, request{method: "POST", path: "/api/v1/shops/1/cart/lines", user: "42", body: `{"productId":404,"quantity":1}`})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestCartRoutes_ValidateAndApply(t *testing.T) {
	svc, _, _ := newTestService(Cart{Key: alice, Lines: []Line{{ProductID: 3, Quantity: 10}}})
	app := makeAppWithCartHandler(NewHandler(svc))

	status, body := do(t, app, request{method: "GET", path: "/api/v1/shops/1/cart/validate", user: "42"})
	require.Equal(t, fiber.StatusOK, status)
	v := body["validation"].(map[string]any)
	assert.Equal(t, false, v["valid"])
	assert.Nil(t, body["cart"])

	status, body = do(t, app, request{method: "GET", path: "/api/v1/shops/1/cart/validate?apply=true", user: "42"})
	require.Equal(t, fiber.StatusOK, status)
	cart := body["cart"].(map[string]any)
	assert.Equal(t, float64(3), cart["totalItems"])
}

func TestCartRoutes_GuestThenMergeOnLogin(t *testing.T) {
	svc, _, _ := newTestService()
	app := makeAppWithCartHandler(NewHandler(svc))

	status, _ := do(t, app, request{method: "POST", path: "/api/v1/shops/1/cart/lines", guest: "abc", body: `{"productId":1,"quantity":1}`})
	require.Equal(t, fiber.StatusOK, status)

	status, _ = do(t, app, request{method: "POST", path: "/api/v1/shops/1/cart/merge", guest: "abc", body: `{"guestId":"abc"}`})
	assert.Equal(t, fiber.StatusUnauthorized, status, "guests cannot claim another guest cart")

	status, body := do(t, app, request{method: "POST", path: "/api/v1/shops/1/cart/merge", user: "42", body: `{"guestId":"abc"}`})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(1), body["totalItems"])

	status, body = do(t, app, request{method: "GET", path: "/api/v1/shops/1/cart", guest: "abc"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body["lines"])
}

func TestCartRoutes_MergeLinesAndClear(t *testing.T) {
	svc, _, _ := newTestService()
	app := makeAppWithCartHandler(NewHandler(svc))

	status, body := do(t, app, request{method: "POST", path: "/api/v1/shops/1/cart/merge", user: "42", body: `{"lines":[{"productId":1,"quantity":2},{"productId":3,"quantity":1}]}`})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(3), body["totalItems"])

	status, _ = do(t, app, request{method: "DELETE", path: "/api/v1/shops/1/cart", user: "42"})
	require.Equal(t, fiber.StatusOK, status)

	_, body = do(t, app, request{method: "GET", path: "/api/v1/shops/1/cart", user: "42"})
	assert.Equal(t, float64(0), body["totalItems"])
}
