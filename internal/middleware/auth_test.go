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

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func baseClaims(userID uint, exp time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": TokenIssuer,
		"aud": TokenAudience,
		"exp": time.Now().Add(exp).Unix(),
		"jti": "123-abcd",
	}
}

func TestParseAccessToken(t *testing.T) {
	tests := []struct {
		name    string
		claims  func() jwt.MapClaims
		raw     string
		wantID  uint
		wantErr bool
	}{
		{
			name:   "Happy Path",
			claims: func() jwt.MapClaims { return baseClaims(123, time.Hour) },
			wantID: 123,
		},
		{
			name:    "Expired Token",
			claims:  func() jwt.MapClaims { return baseClaims(123, -time.Hour) },
			wantErr: true,
		},
		{
			name: "Wrong Issuer",
			claims: func() jwt.MapClaims {
				c := baseClaims(1, time.Hour)
				c["iss"] = "someone-else"
				return c
			},
			wantErr: true,
		},
		{
			name: "Wrong Audience",
			claims: func() jwt.MapClaims {
				c := baseClaims(1, time.Hour)
				c["aud"] = "other-client"
				return c
			},
			wantErr: true,
		},
		{
			name: "Non numeric subject",
			claims: func() jwt.MapClaims {
				c := baseClaims(1, time.Hour)
				c["sub"] = "alice"
				return c
			},
			wantErr: true,
		},
		{
			name:    "Malformed Token",
			raw:     "malformed.token.here",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			if tt.claims != nil {
				raw = signToken(t, tt.claims())
			}
			got, err := ParseAccessToken(testSecret, raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.UserID)
			assert.Equal(t, "123-abcd", got.JTI)
		})
	}
}

func TestRequestToken(t *testing.T) {
	app := fiber.New()
	app.Get("/token", func(c *fiber.Ctx) error {
		return c.SendString(RequestToken(c, "ynet_session"))
	})

	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"Bearer header wins", "Bearer abc", "cookie-token", "abc"},
		{"Cookie fallback", "", "cookie-token", "cookie-token"},
		{"Basic auth ignored", "Basic dXNlcjpwYXNz", "", ""},
		{"Nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/token", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "ynet_session", Value: tt.cookie})
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			buf := make([]byte, 64)
			n, _ := resp.Body.Read(buf)
			assert.Equal(t, tt.want, string(buf[:n]))
		})
	}
}
