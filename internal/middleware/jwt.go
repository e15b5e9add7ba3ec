package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

const (
	localUserID   = "user_id"
	localUserRole = "user_role"
)

// JWTConfig configures bearer token validation.
type JWTConfig struct {
	Secret string
	// Issuer is enforced when non-empty.
	Issuer string
}

// EnrollmentClaims is the token payload issued by the campus identity provider.
// StudentID takes precedence over a numeric subject.
type EnrollmentClaims struct {
	Role      string `json:"role"`
	StudentID *uint  `json:"student_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTProtected validates HS256 bearer tokens and stores the caller id and
// role on the request locals.
func JWTProtected(cfg JWTConfig) fiber.Handler {
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(options...)
	key := []byte(cfg.Secret)

	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "bearer token required")
		}

		var claims EnrollmentClaims
		token, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
			return key, nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		userID, ok := claims.userID()
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}
		role := normalizeRoleValue(claims.Role)
		if role == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token role missing")
		}

		c.Locals(localUserID, userID)
		c.Locals(localUserRole, role)
		return c.Next()
	}
}

// UserIDFromLocals returns the authenticated caller id, or 0.
func UserIDFromLocals(c *fiber.Ctx) uint {
	switch id := c.Locals(localUserID).(type) {
	case uint:
		return id
	case int:
		if id > 0 {
			return uint(id)
		}
	case string:
		if parsed, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64); err == nil {
			return uint(parsed)
		}
	}
	return 0
}

func (c EnrollmentClaims) userID() (uint, bool) {
	if c.StudentID != nil && *c.StudentID > 0 {
		return *c.StudentID, true
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Subject), 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
