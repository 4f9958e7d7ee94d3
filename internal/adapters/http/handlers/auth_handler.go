package handlers

import (
	"errors"
	"strings"

	"vetbridge-affiliate/internal/adapters/http/middleware"
	"vetbridge-affiliate/internal/core/services"
	"vetbridge-affiliate/internal/pkg/response"
	"vetbridge-affiliate/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles operator authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles operator login
// @Summary Login operator
// @Description Authenticate an operator and return an access token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.BadRequest(c, validate.Message(err))
	}

	result, err := h.authService.Login(c.Context(), &services.LoginInput{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, services.ErrOperatorInactive) {
			return response.Forbidden(c, "Operator account is inactive")
		}
		return respondError(c, err, "Failed to login")
	}

	return response.Success(c, "Login successful", result)
}

// Me returns the authenticated operator
// @Summary Current operator
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	operatorID, ok := c.Locals(middleware.LocalOperatorID).(uint)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	operator, err := h.authService.GetOperatorByID(c.Context(), operatorID)
	if err != nil {
		if errors.Is(err, services.ErrOperatorNotFound) {
			return response.NotFound(c, "Operator not found")
		}
		return respondError(c, err, "Failed to get operator")
	}

	return response.Success(c, "Operator retrieved successfully", operator)
}
