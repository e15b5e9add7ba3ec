package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

// Roles carried in the JWT role claim.
const (
	RoleStudent   = "student"
	RoleAdmin     = "admin"
	RoleTeacher   = "teacher"
	RoleRegistrar = "registrar"
)

// StaffRoles may act on behalf of any student and read course analytics.
var StaffRoles = []string{RoleAdmin, RoleTeacher, RoleRegistrar}

// IsStaffRole reports whether role belongs to registrar-side staff.
func IsStaffRole(role string) bool {
	role = normalizeRoleValue(role)
	for _, staff := range StaffRoles {
		if role == staff {
			return true
		}
	}
	return false
}

// RoleFromLocals returns the normalised role placed on the request by JWTProtected.
func RoleFromLocals(c *fiber.Ctx) string {
	return normalizeRoleValue(c.Locals(localUserRole))
}

// RequireRole rejects callers whose role is not in roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := normalizeRoleValue(role); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role := RoleFromLocals(c)
		if role == "" {
			return utils.SendError(c, fiber.StatusForbidden, "role claim missing")
		}
		if _, ok := allowed[role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}

// RequireStaff is RequireRole over StaffRoles.
func RequireStaff() fiber.Handler {
	return RequireRole(StaffRoles...)
}

func normalizeRoleValue(value interface{}) string {
	var raw string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		raw = v
	case fmt.Stringer:
		raw = v.String()
	default:
		raw = fmt.Sprintf("%v", value)
	}
	return strings.ToLower(strings.TrimSpace(raw))
}
