package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Protect attaches bearer token validation and the role gate to router. With an empty
// secret the API runs unauthenticated and nothing is attached.
func Protect(router fiber.Router, secret string, roles ...string) {
	if strings.TrimSpace(secret) == "" {
		return
	}

	router.Use(JWTProtected(secret))
	if len(roles) > 0 {
		router.Use(RequireRole(roles...))
	}
}
