package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestIssueAndParseToken(t *testing.T) {
	token, issued, err := IssueToken(testSecret, 42, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, issued.JTI)

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, issued.JTI, claims.JTI)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 2*time.Second)
}

func TestParseToken_Rejects(t *testing.T) {
	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.Itoa(7),
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	expired, _, err := IssueToken(testSecret, 7, -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"malformed", "malformed.token.here"},
		{"expired", expired},
		{"wrong secret", sign(base(), "another-secret-another-secret-1234")},
		{"wrong issuer", func() string { c := base(); c["iss"] = "someone-else"; return sign(c, testSecret) }()},
		{"wrong audience", func() string { c := base(); c["aud"] = "other-client"; return sign(c, testSecret) }()},
		{"missing expiry", func() string { c := base(); delete(c, "exp"); return sign(c, testSecret) }()},
		{"non numeric subject", func() string { c := base(); c["sub"] = "abc"; return sign(c, testSecret) }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(testSecret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestExtractToken(t *testing.T) {
	app := fiber.New()
	app.Get("/header", func(c *fiber.Ctx) error { return c.SendString(ExtractToken(c, false)) })
	app.Get("/query", func(c *fiber.Ctx) error { return c.SendString(ExtractToken(c, true)) })

	read := func(req *http.Request) string {
		resp, err := app.Test(req)
		require.NoError(t, err)
		buf := make([]byte, 64)
		n, _ := resp.Body.Read(buf)
		return string(buf[:n])
	}

	req := httptest.NewRequest(http.MethodGet, "/header", nil)
	req.Header.Set("Authorization", "Bearer abc")
	assert.Equal(t, "abc", read(req))

	req = httptest.NewRequest(http.MethodGet, "/header", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Equal(t, "", read(req))

	req = httptest.NewRequest(http.MethodGet, "/header", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", read(req))

	assert.Equal(t, "", read(httptest.NewRequest(http.MethodGet, "/header?token=q", nil)))
	assert.Equal(t, "q", read(httptest.NewRequest(http.MethodGet, "/query?token=q", nil)))
}
