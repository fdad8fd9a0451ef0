package server

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"ynetwork/internal/cache"
	"ynetwork/internal/middleware"
	"ynetwork/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Fiber locals set by AuthRequired.
const (
	localUserID  = "userID"
	localUser    = "user"
	localTokenID = "tokenID"
)

var errInvalidTicket = errors.New("invalid or expired websocket ticket")

// AuthRequired accepts a bearer token, the session cookie, or (on /api/ws only) a
// single-use ticket. Revoked tokens, deleted accounts and banned users are rejected.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Nested groups may run this twice; a consumed ticket cannot be checked again.
		if _, ok := c.Locals(localUserID).(uint); ok {
			return c.Next()
		}

		ctx := c.UserContext()
		var userID uint

		if ticket := c.Query("ticket"); ticket != "" && c.Path() == "/api/ws" {
			uid, err := s.consumeWSTicket(ctx, ticket)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			userID = uid
		} else {
			token := middleware.RequestToken(c, s.config.SessionCookieName)
			if token == "" {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Authorization required"))
			}
			claims, err := middleware.ParseAccessToken(s.config.JWTSecret, token)
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired token"))
			}
			if s.isRevoked(ctx, claims.JTI) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
			userID = claims.UserID
			c.Locals(localTokenID, claims.JTI)
		}

		user, err := s.userSvc.GetUserByID(ctx, userID)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Account no longer exists"))
			}
			return models.RespondError(c, err)
		}
		if user.IsBanned {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("This account has been suspended"))
		}

		c.Locals(localUserID, userID)
		c.Locals(localUser, user)
		c.SetUserContext(middleware.WithUserID(ctx, userID))
		return c.Next()
	}
}

// AdminRequired rejects non-admin users with 403. It must run after AuthRequired.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, ok := c.Locals(localUser).(*models.User)
		if !ok {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}
		if !user.IsAdmin() {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// optionalUserID identifies the caller on public routes without enforcing authentication.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	token := middleware.RequestToken(c, s.config.SessionCookieName)
	if token == "" {
		return 0
	}
	claims, err := middleware.ParseAccessToken(s.config.JWTSecret, token)
	if err != nil || s.isRevoked(c.UserContext(), claims.JTI) {
		return 0
	}
	return claims.UserID
}

func (s *Server) isRevoked(ctx context.Context, jti string) bool {
	if jti == "" || s.redis == nil {
		return false
	}
	n, err := s.redis.Exists(ctx, cache.BlacklistKey(jti)).Result()
	return err == nil && n > 0
}

// consumeWSTicket atomically reads and deletes a ticket so it works exactly once.
func (s *Server) consumeWSTicket(ctx context.Context, ticket string) (uint, error) {
	if s.redis == nil {
		return 0, errInvalidTicket
	}
	raw, err := s.redis.GetDel(ctx, cache.WSTicketKey(ticket)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, errInvalidTicket
		}
		return 0, err
	}
	uid, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil || uid == 0 {
		return 0, errInvalidTicket
	}
	return uint(uid), nil
}
