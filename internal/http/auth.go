package http

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"memoir/internal/models"
	"memoir/internal/service"
)

const currentUserKey = "currentUser"

// AuthMiddleware requires a valid bearer token (signed access token or
// personal access token) and stores the resolved user on the request.
func AuthMiddleware(userService *service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			return unauthorized(c, "missing or malformed authorization header")
		}
		user, err := userService.AuthenticateToken(c.Context(), token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || errors.Is(err, service.ErrInvalidCredentials) {
				return unauthorized(c, "invalid access token")
			}
			return internalError(c, err)
		}
		c.Locals(currentUserKey, user)
		return c.Next()
	}
}

// OptionalAuthMiddleware resolves a bearer token when one is present and
// lets anonymous requests through. A token that is present but invalid is
// still rejected.
func OptionalAuthMiddleware(userService *service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c)
		if !ok {
			if strings.TrimSpace(c.Get(fiber.HeaderAuthorization)) != "" {
				return unauthorized(c, "malformed authorization header")
			}
			return c.Next()
		}
		user, err := userService.AuthenticateToken(c.Context(), token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) || errors.Is(err, service.ErrInvalidCredentials) {
				return unauthorized(c, "invalid access token")
			}
			return internalError(c, err)
		}
		c.Locals(currentUserKey, user)
		return c.Next()
	}
}

func CurrentUser(c *fiber.Ctx) models.User {
	raw := c.Locals(currentUserKey)
	if raw == nil {
		return models.User{}
	}
	user, _ := raw.(models.User)
	return user
}

// CurrentUserID returns nil for anonymous requests.
func CurrentUserID(c *fiber.Ctx) *int64 {
	user := CurrentUser(c)
	if user.ID == 0 {
		return nil
	}
	id := user.ID
	return &id
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authz := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authz == "" {
		return "", false
	}
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return "", false
	}
	return strings.TrimSpace(authz[len("Bearer "):]), true
}
