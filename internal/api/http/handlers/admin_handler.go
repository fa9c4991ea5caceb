package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/rsams/attendance-service/internal/api/dto"
	"github.com/rsams/attendance-service/internal/auth"
	"github.com/rsams/attendance-service/internal/domain"
	"github.com/rsams/attendance-service/internal/events"
	"github.com/rsams/attendance-service/internal/service"
	apperrors "github.com/rsams/attendance-service/pkg/util/errorutil"
)

// AdminHandler exposes account administration for ADMIN callers.
type AdminHandler struct {
	accounts  *service.AccountService
	dashboard *service.DashboardService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(accounts *service.AccountService, dashboard *service.DashboardService) *AdminHandler {
	return &AdminHandler{accounts: accounts, dashboard: dashboard}
}

// Dashboard handles GET /admin/dashboard.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	stats, cached, err := h.dashboard.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", fiber.Map{"accounts": stats, "cached": cached}))
}

// ListUsers handles GET /admin/users?role=&search=&page=&limit=.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	input := service.ListAccountsInput{
		Search: c.Query("search"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}
	if role := strings.ToUpper(strings.TrimSpace(c.Query("role"))); role != "" {
		r := domain.Role(role)
		input.Role = &r
	}

	list, err := h.accounts.ListAccounts(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", dto.AccountListResponse{
		Users: dto.NewAccountResponses(list.Accounts),
		Pagination: dto.Pagination{
			Page:  list.Page,
			Limit: list.Limit,
			Total: list.Total,
			Pages: list.Pages,
		},
	}))
}

// CreateUser handles POST /admin/users.
func (h *AdminHandler) CreateUser(c *fiber.Ctx) error {
	var req dto.CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	account, err := h.accounts.CreateAccount(c.UserContext(), actorOf(c), service.RegisterInput{
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
	return c.Status(http.StatusCreated).JSON(dto.OK("User created successfully", fiber.Map{"user": dto.NewAccountResponse(account)}))
}

// GetUser handles GET /admin/users/:id.
func (h *AdminHandler) GetUser(c *fiber.Ctx) error {
	account, err := h.accounts.GetAccount(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("", fiber.Map{"user": dto.NewAccountResponse(account)}))
}

// UpdateUser handles PUT /admin/users/:id.
func (h *AdminHandler) UpdateUser(c *fiber.Ctx) error {
	var req dto.UpdateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	account, err := h.accounts.UpdateAccount(c.UserContext(), actorOf(c), c.Params("id"), service.AccountUpdate{
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
		IsActive: req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("User updated successfully", fiber.Map{"user": dto.NewAccountResponse(account)}))
}

// DeactivateUser handles DELETE /admin/users/:id as a soft delete.
func (h *AdminHandler) DeactivateUser(c *fiber.Ctx) error {
	if err := h.accounts.DeactivateAccount(c.UserContext(), actorOf(c), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.OK("User deactivated successfully", nil))
}

// UnlockUser handles POST /admin/users/:id/unlock.
func (h *AdminHandler) UnlockUser(c *fiber.Ctx) error {
	account, err := h.accounts.UnlockAccount(c.UserContext(), actorOf(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.OK("User unlocked successfully", fiber.Map{"user": dto.NewAccountResponse(account)}))
}

func actorOf(c *fiber.Ctx) events.Actor {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return events.Actor{}
	}
	return events.Actor{ActorID: principal.ID(), Role: principal.Role()}
}
