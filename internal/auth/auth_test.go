package auth

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, exp, err := tm.GenerateToken("admin")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	tm := NewTokenManager("secret", 1)
	token, _, err := tm.GenerateToken("admin")
	require.NoError(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestComparePassword(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "hunter2"))
	assert.Error(t, ComparePassword(hash, "hunter3"))
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	token, _, err := tm.GenerateToken("admin")
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(fiber.StatusUnauthorized)
		},
	})
	app.Get("/", NewAuthMiddleware(tm).Handle, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		require.True(t, ok)
		return c.SendString(principal.Username)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing", status: fiber.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + token, status: fiber.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", status: fiber.StatusUnauthorized},
		{name: "valid", header: "Bearer " + token, status: fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "admin", string(body))
			}
		})
	}
}
