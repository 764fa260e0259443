package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	config "github.com/mit45/AutoSocial-Ai/configs"
	"github.com/mit45/AutoSocial-Ai/pkg/utils"
)

const APIKeyHeader = "X-API-Key"

type AuthMiddleware struct {
	cfg config.Config
}

func NewAuthMiddleware(cfg config.Config) *AuthMiddleware {
	if cfg.APIKey == "" && cfg.SecretKey == "" {
		slog.Warn("API_ACCESS_KEY and SECRET_KEY are unset, the API is open")
	}
	return &AuthMiddleware{cfg: cfg}
}

// AuthMiddleware accepts the static API key (header or api_key query) or an
// operator JWT in the Authorization header.
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.cfg.APIKey == "" && m.cfg.SecretKey == "" {
			c.Locals("operator", "anonymous")
			return c.Next()
		}

		apiKey := c.Get(APIKeyHeader)
		if apiKey == "" {
			apiKey = c.Query("api_key")
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "))

		if apiKey == "" && tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing API key or token",
			})
		}

		if apiKey != "" {
			if !utils.KeysEqual(apiKey, m.cfg.APIKey) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "Invalid API key",
				})
			}
			c.Locals("operator", "api-key")
			return c.Next()
		}

		if m.cfg.SecretKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Token authentication is not configured",
			})
		}
		claims, err := utils.ValidateToken(m.cfg.SecretKey, tokenString)
		if err != nil {
			slog.Info("token validation failed", "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		if !utils.OperatorAllowed(claims.Operator, m.cfg.Operators) {
			slog.Info("operator not allowed", "operator", claims.Operator, "token_id", claims.ID)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Operator not allowed",
			})
		}

		c.Locals("operator", claims.Operator)
		return c.Next()
	}
}
