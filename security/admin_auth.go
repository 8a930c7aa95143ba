package security

import (
	"strings"

	"checkin-system/internal/handlers"
	"checkin-system/internal/services"
	"checkin-system/internal/status"

	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/hook"
)

// RequireAdmin rejects requests without a valid admin bearer token and stores
// the verified claims under handlers.ClaimsKey.
func RequireAdmin(auth *services.AuthService) *hook.Handler[*core.RequestEvent] {
	return &hook.Handler[*core.RequestEvent]{
		Id: "requireAdmin",
		Func: func(e *core.RequestEvent) error {
			claims, err := auth.Verify(bearerToken(e.Request.Header.Get("Authorization")))
			if err != nil {
				return handlers.Fail(e, err)
			}
			if claims.Role != services.RoleAdmin {
				return handlers.Fail(e, status.ErrForbidden)
			}

			e.Set(handlers.ClaimsKey, claims)
			return e.Next()
		},
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
