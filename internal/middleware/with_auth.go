package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-enrollment-api/internal/utils"
)

// Audience selects who may reach a handler wrapped by WithAuth.
type Audience int

const (
	// AudienceAnyone admits anonymous callers.
	AudienceAnyone Audience = iota
	// AudienceUser admits any authenticated caller.
	AudienceUser
	// AudienceStudent admits students acting for themselves.
	AudienceStudent
	// AudienceStaff admits admins, teachers and registrars.
	AudienceStaff
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Audience Audience
}

// WithAuth guards a single handler. It is the per-route counterpart of the
// group-level RequireRole middleware.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if opts.Audience == AudienceAnyone {
			return handler(c)
		}
		if UserIDFromLocals(c) == 0 {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		role := RoleFromLocals(c)
		switch opts.Audience {
		case AudienceStudent:
			if role != RoleStudent {
				return utils.Fail(c, fiber.StatusForbidden, "students only", nil)
			}
		case AudienceStaff:
			if !IsStaffRole(role) {
				return utils.Fail(c, fiber.StatusForbidden, "staff only", nil)
			}
		}
		return handler(c)
	}
}
