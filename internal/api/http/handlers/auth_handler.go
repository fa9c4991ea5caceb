package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/rsams/attendance-service/internal/api/dto"
	"github.com/rsams/attendance-service/internal/auth"
	"github.com/rsams/attendance-service/internal/service"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

// AuthHandler exposes registration, login and self-service account endpoints.
type AuthHandler struct {
	authn    *service.Authenticator
	accounts *service.AccountService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authn *service.Authenticator, accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{authn: authn, accounts: accounts}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	session, err := h.authn.Register(c.UserContext(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
		Name:      req.Name,
		StudentID: req.StudentID,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(dto.OK("User registered successfully", dto.NewAuthResponse(session)))
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	session, err := h.authn.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Login successful", dto.NewAuthResponse(session)))
}

// Profile handles GET /auth/profile.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}
	return c.JSON(dto.OK("", fiber.Map{"user": dto.NewAccountResponse(principal.Account)}))
}

// UpdateProfile handles PUT /auth/profile.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}

	var req dto.UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	account, err := h.accounts.UpdateOwnProfile(c.UserContext(), principal.Account, req.ProfileUpdate())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("Profile updated successfully", fiber.Map{"user": dto.NewAccountResponse(account)}))
}

// ChangePassword handles PUT /auth/change-password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.authn.ChangePassword(c.UserContext(), principal.ID(), req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(dto.OK("Password changed successfully", nil))
}
