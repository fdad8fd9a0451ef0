// Package middleware provides authentication, logging, tracing, metrics and rate limiting for the HTTP layer.
package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenIssuer is the iss claim stamped on every access token.
	TokenIssuer = "ynetwork-api"
	// TokenAudience is the aud claim stamped on every access token.
	TokenAudience = "ynetwork-client"
)

// TokenClaims is the validated subset of an access token.
type TokenClaims struct {
	UserID uint
	JTI    string
}

// ErrInvalidToken is returned for any token that fails parsing or claim validation.
var ErrInvalidToken = errors.New("invalid or expired token")

// ParseAccessToken validates signature, expiry, issuer and audience and returns the subject and token id.
func ParseAccessToken(secret, tokenString string) (TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return TokenClaims{}, ErrInvalidToken
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return TokenClaims{}, ErrInvalidToken
	}

	jti, _ := claims["jti"].(string)
	return TokenClaims{UserID: uint(userID), JTI: jti}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(c *fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// RequestToken returns the bearer token if present, otherwise the session cookie value.
func RequestToken(c *fiber.Ctx, cookieName string) string {
	if token := BearerToken(c); token != "" {
		return token
	}
	if cookieName == "" {
		return ""
	}
	return c.Cookies(cookieName)
}
