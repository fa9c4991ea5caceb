package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rsams/attendance-service/internal/api/dto"
	"github.com/rsams/attendance-service/internal/auth"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

// ProfileHandler serves the role-gated profile views under /teacher and /student.
type ProfileHandler struct{}

// NewProfileHandler constructs handler.
func NewProfileHandler() *ProfileHandler {
	return &ProfileHandler{}
}

// Teacher handles GET /teacher/profile.
func (h *ProfileHandler) Teacher(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}
	resp := dto.NewAccountResponse(principal.Account)
	return c.JSON(dto.OK("", fiber.Map{"user": resp, "profile": resp.TeacherProfile}))
}

// Student handles GET /student/profile.
func (h *ProfileHandler) Student(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}
	resp := dto.NewAccountResponse(principal.Account)
	if resp.StudentProfile == nil {
		return apperrors.NewNotFound("Student profile", nil)
	}
	return c.JSON(dto.OK("", fiber.Map{"user": resp, "profile": resp.StudentProfile}))
}
