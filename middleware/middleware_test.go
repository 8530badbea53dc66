package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"certportal/apperror"
	"certportal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func newApp(m *JWTManager) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))})
	app.Get("/me", m.Middleware(), func(c *fiber.Ctx) error {
		actor := ActorFrom(c)
		return JsonResponse(c, fiber.StatusOK, true, "ok", fiber.Map{"userId": actor.UserID, "role": actor.Role})
	})
	app.Get("/admin", m.Middleware(), RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return JsonResponse(c, fiber.StatusOK, true, "ok", nil)
	})
	return app
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("s3cret", time.Hour)
	token, err := m.Issue(&models.User{ID: "u-1", Role: models.RoleAdmin, Email: "a@ncit.edu.np"})
	require.NoError(t, err)

	actor, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{UserID: "u-1", Role: models.RoleAdmin}, actor)

	_, err = NewJWTManager("other", time.Hour).Parse(token)
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("s3cret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := m.Issue(&models.User{ID: "u-1", Role: models.RoleUser})
	require.NoError(t, err)

	_, err = m.Parse(token)
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))
}

func TestJWTManager_RejectsOtherAlgorithms(t *testing.T) {
	m := NewJWTManager("s3cret", time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": "u-1", "role": "admin"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Parse(signed)
	assert.True(t, apperror.Is(err, apperror.CodeUnauthorized))
}

func TestMiddleware(t *testing.T) {
	m := NewJWTManager("s3cret", time.Hour)
	app := newApp(m)
	userToken, _ := m.Issue(&models.User{ID: "u-1", Role: models.RoleUser})
	adminToken, _ := m.Issue(&models.User{ID: "a-1", Role: models.RoleAdmin})

	cases := []struct {
		name   string
		path   string
		header string
		cookie string
		status int
	}{
		{"no token", "/me", "", "", fiber.StatusUnauthorized},
		{"bad scheme", "/me", "Token " + userToken, "", fiber.StatusUnauthorized},
		{"garbage", "/me", "Bearer nope", "", fiber.StatusUnauthorized},
		{"bearer", "/me", "Bearer " + userToken, "", fiber.StatusOK},
		{"cookie", "/me", "", userToken, fiber.StatusOK},
		{"user on admin route", "/admin", "Bearer " + userToken, "", fiber.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + adminToken, "", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tc.cookie})
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			env := decode(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.status == fiber.StatusOK, env.Status)
		})
	}
}

func TestErrorHandlerMapsCodes(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))})
	errs := map[string]error{
		"/notfound":   apperror.NotFound("Certificate not found"),
		"/transition": apperror.InvalidTransition("Only pending requests can be issued!"),
		"/forbidden":  apperror.Forbidden("nope"),
		"/validation": apperror.Field("title", "Title is required!"),
		"/conflict":   apperror.Conflict("User already exist!"),
		"/dependency": apperror.Dependency("Failed to upload", errors.New("x")),
		"/internal":   apperror.Internal("database error", errors.New("secret detail")),
		"/plain":      errors.New("boom"),
		"/fiber":      fiber.NewError(fiber.StatusRequestEntityTooLarge, "Request Entity Too Large"),
	}
	for path, err := range errs {
		err := err
		app.Get(path, func(c *fiber.Ctx) error { return err })
	}

	want := map[string]int{
		"/notfound":   404,
		"/transition": 409,
		"/forbidden":  403,
		"/validation": 422,
		"/conflict":   409,
		"/dependency": 502,
		"/internal":   500,
		"/plain":      500,
		"/fiber":      413,
	}
	for path, status := range want {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		env := decode(t, resp)
		assert.Equal(t, status, resp.StatusCode, path)
		assert.False(t, env.Status, path)

		switch path {
		case "/validation":
			assert.JSONEq(t, `{"title":"Title is required!"}`, string(env.Data))
		case "/internal":
			assert.NotContains(t, env.Message, "secret detail")
		}
	}
}
