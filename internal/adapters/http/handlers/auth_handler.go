package handlers

import (
	"strings"

	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles the token endpoints
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// TokenRequest represents the credentials exchanged for tokens
type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest carries a refresh token
type RefreshRequest struct {
	Refresh string `json:"refresh"`
}

// ObtainToken exchanges credentials for tokens
// @Summary Obtain token pair
// @Description Authenticate with email and password and return access and refresh tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body TokenRequest true "Credentials"
// @Success 200 {object} services.TokenResponse
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/token/ [post]
func (h *AuthHandler) ObtainToken(c *fiber.Ctx) error {
	var req TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	// Validate required fields
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	tokens, err := h.authService.ObtainToken(c.UserContext(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return response.FromError(c, err, "Failed to obtain token")
	}

	return c.JSON(tokens)
}

// RefreshToken rotates a refresh token
// @Summary Refresh token pair
// @Description Exchange a refresh token for a new pair; the old refresh token is revoked
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest true "Refresh token"
// @Success 200 {object} services.TokenResponse
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/token/refresh/ [post]
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Refresh == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	tokens, err := h.authService.RefreshToken(c.UserContext(), req.Refresh)
	if err != nil {
		return response.FromError(c, err, "Failed to refresh token")
	}

	return c.JSON(tokens)
}

// Revoke revokes a refresh token
// @Summary Revoke refresh token
// @Description Log out an API client by revoking its refresh token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest true "Refresh token"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /api/token/revoke/ [post]
func (h *AuthHandler) Revoke(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.Refresh == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	if err := h.authService.Revoke(c.UserContext(), req.Refresh); err != nil {
		return response.FromError(c, err, "Failed to revoke token")
	}

	return response.Success(c, "Token revoked", nil)
}

// Register creates a member account
// @Summary Register
// @Description Create a MEMBER account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body services.RegisterInput true "Registration data"
// @Success 201 {object} response.Response{data=models.UserResponse}
// @Failure 400 {object} response.Response
// @Router /api/register/ [post]
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input services.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.authService.Register(c.UserContext(), &input)
	if err != nil {
		return response.FromError(c, err, "Failed to register user")
	}

	return response.Created(c, "User registered successfully", user.ToResponse())
}
