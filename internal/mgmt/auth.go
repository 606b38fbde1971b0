package mgmt

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/studio-agent/internal/config"
)

// Role defines the access level of a caller.
type Role string

const (
	RoleOperator Role = "operator"
	RoleReadOnly Role = "readonly"
)

const (
	localRole  = "role"
	localActor = "actor"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Mode      string // api-key, jwt or none
	APIKey    string
	JWTSecret []byte
}

// Claims are the JWT claims accepted in jwt mode. The subject becomes the
// actor recorded in the audit log.
type Claims struct {
	Role Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func isProbe(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

// NewAuthMiddleware returns a Fiber middleware that validates the Authorization header.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Mode == config.AuthModeNone {
			c.Locals(localRole, RoleOperator)
			c.Locals(localActor, "anonymous")
			return c.Next()
		}

		path := c.Path()
		if isProbe(path) {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header is required")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_auth_scheme", "Unauthorized",
				"Authorization header must use Bearer scheme")
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		switch cfg.Mode {
		case config.AuthModeAPIKey:
			if cfg.APIKey != "" && token == cfg.APIKey {
				c.Locals(localRole, RoleOperator)
				c.Locals(localActor, "api-key")
				return c.Next()
			}
		case config.AuthModeJWT:
			claims, err := parseToken(token, cfg.JWTSecret)
			if err == nil {
				role := claims.Role
				if role != RoleOperator {
					role = RoleReadOnly
				}
				c.Locals(localRole, role)
				c.Locals(localActor, claims.Subject)
				return c.Next()
			}
			logger.Debug().Err(err).Msg("jwt rejected")
		}

		logger.Warn().
			Str("path", path).
			Str("method", c.Method()).
			Str("mode", cfg.Mode).
			Msg("unauthorized request: invalid credentials")

		return problemResponse(c, fiber.StatusUnauthorized,
			"invalid_credentials", "Unauthorized",
			"Invalid credentials")
	}
}

func parseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidSubject
	}
	return claims, nil
}

// requireRole rejects read-only callers on write routes.
func requireRole(minRole Role) fiber.Handler {
	roleLevel := map[Role]int{
		RoleReadOnly: 1,
		RoleOperator: 2,
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals(localRole).(Role)
		if roleLevel[role] < roleLevel[minRole] {
			return problemResponse(c, fiber.StatusForbidden,
				"insufficient_role", "Forbidden",
				"Insufficient permissions for this operation")
		}
		return c.Next()
	}
}

func actorOf(c *fiber.Ctx) string {
	if a, ok := c.Locals(localActor).(string); ok && a != "" {
		return a
	}
	return "unknown"
}
