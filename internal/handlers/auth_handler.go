package handlers

import (
	"checkin-system/internal/services"
	"checkin-system/internal/status"
	"checkin-system/internal/validation"

	"github.com/pocketbase/pocketbase/core"
)

// ClaimsKey is where the admin middleware stores verified token claims on the request event.
const ClaimsKey = "adminClaims"

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Login(e *core.RequestEvent) error {
	var req services.LoginRequest
	if err := e.BindBody(&req); err != nil {
		return badBody(e, err)
	}
	if err := validation.ValidateStruct(req); err != nil {
		return Fail(e, err)
	}

	result, err := h.auth.Login(req)
	if err != nil {
		return Fail(e, err)
	}
	return OK(e, "Login successful", result)
}

// Verify echoes the claims of the bearer token that passed the admin middleware.
func (h *AuthHandler) Verify(e *core.RequestEvent) error {
	claims, _ := e.Get(ClaimsKey).(*services.AdminClaims)
	if claims == nil {
		return Fail(e, status.ErrInvalidToken)
	}
	return OK(e, "Token is valid", map[string]any{
		"user": services.AdminUser{
			UID:      claims.UID,
			Username: claims.Username,
			Role:     claims.Role,
			Email:    claims.Email,
		},
		"expires_at": claims.ExpiresAt,
	})
}
