package category

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wichananm65/storefront-backend/internal/apperr"
)

func newTestApp(seed ...Category) (*fiber.App, *Service) {
	svc := NewService(NewInMemoryRepository(seed))
	h := NewHandler(svc)
	app := fiber.New()
	h.RegisterPublicRoutes(app)
	app.Use(func(c *fiber.Ctx) error {
		if role := c.Get("X-Role"); role != "" {
			c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"user_id": 1, "role": role}})
		}
		return c.Next()
	})
	h.RegisterProtectedRoutes(app)
	return app, svc
}

func TestService_CreateAndList(t *testing.T) {
	_, svc := newTestApp()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, "Toys", 2)
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, " Food ", 1)
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, "Toys", 0)
	require.NoError(t, err, "names are unique per shop only")

	_, err = svc.Create(ctx, 1, "toys", 0)
	assert.ErrorIs(t, err, ErrDuplicateName)
	_, err = svc.Create(ctx, 1, "  ", 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	items, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Food", items[0].Name)
	assert.Equal(t, "Toys", items[1].Name)
}

func TestHandler_Routes(t *testing.T) {
	app, _ := newTestApp(Category{ID: 4, ShopID: 1, Name: "Toys"})

	res, err := app.Test(httptest.NewRequest("GET", "/api/v1/shops/1/categories", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, res.StatusCode)
	var items []Category
	b, _ := io.ReadAll(res.Body)
	require.NoError(t, json.Unmarshal(b, &items))
	require.Len(t, items, 1)
	assert.Equal(t, int64(4), items[0].ID)

	req := httptest.NewRequest("POST", "/api/v1/shops/1/categories", strings.NewReader(`{"categoryName":"Beds"}`))
	req.Header.Set("Content-Type", "application/json")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.StatusCode)

	req = httptest.NewRequest("POST", "/api/v1/shops/1/categories", strings.NewReader(`{"categoryName":"Beds"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "admin")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, res.StatusCode)

	req = httptest.NewRequest("DELETE", "/api/v1/categories/4", nil)
	req.Header.Set("X-Role", "admin")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, res.StatusCode)

	req = httptest.NewRequest("DELETE", "/api/v1/categories/4", nil)
	req.Header.Set("X-Role", "admin")
	res, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, res.StatusCode)
}
