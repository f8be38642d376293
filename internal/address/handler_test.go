package address

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
)

func makeAppWithAddressHandler(a *Handler) *fiber.App {
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
	a.RegisterProtectedRoutes(app)
	return app
}

var home = Postal{Name: "Ann Lee", Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"}

type response struct {
	Code int
	Body []byte
}

func send(t *testing.T, app *fiber.App, method, path, user, body string) response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	res, err := app.Test(req)
	require.NoError(t, err)
	b, _ := io.ReadAll(res.Body)
	return response{Code: res.StatusCode, Body: b}
}

func TestAddressRoutes(t *testing.T) {
	repo := NewInMemoryRepository([]Address{{ID: 1, UserID: "42", Label: "Home", Postal: home}})
	app := makeAppWithAddressHandler(NewHandler(NewService(repo)))

	rec := send(t, app, "GET", "/api/v1/addresses", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, rec.Code)

	rec = send(t, app, "GET", "/api/v1/addresses", "42", "")
	require.Equal(t, fiber.StatusOK, rec.Code)
	var list []Address
	require.NoError(t, json.Unmarshal(rec.Body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Springfield", list[0].Postal.City)

	rec = send(t, app, "POST", "/api/v1/addresses", "42", `{"label":"Work","postal":{"name":"Ann","line1":"9 Dock Rd","city":"Shelbyville","postalCode":"555","country":"us"}}`)
	require.Equal(t, fiber.StatusCreated, rec.Code)
	var created Address
	require.NoError(t, json.Unmarshal(rec.Body, &created))
	assert.Equal(t, "US", created.Postal.Country)

	rec = send(t, app, "POST", "/api/v1/addresses", "42", `{"label":"Bad","postal":{"name":"Ann"}}`)
	require.Equal(t, fiber.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body, &body))
	fields := body["errors"].(map[string]any)
	assert.Equal(t, "is required", fields["line1"])
	assert.Equal(t, "is required", fields["country"])

	rec = send(t, app, "DELETE", "/api/v1/addresses/1", "7", "")
	assert.Equal(t, fiber.StatusNotFound, rec.Code, "another user's address")

	rec = send(t, app, "DELETE", "/api/v1/addresses/1", "42", "")
	assert.Equal(t, fiber.StatusNoContent, rec.Code)
}
