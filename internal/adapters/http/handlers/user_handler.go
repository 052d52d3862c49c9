package handlers

import (
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// ListUsers handles listing users (Staff and Admin)
// @Summary List users
// @Description Get a paginated list of users, optionally filtered by username or email
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param search query string false "Username or email substring"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(10)
// @Success 200 {object} response.Response{data=pagination.Response}
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users/ [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	result, err := h.userService.ListUsers(c.UserContext(), c.Query("search"), pagination.GetParams(c))
	if err != nil {
		return response.InternalServerError(c, "Failed to list users")
	}

	return response.Success(c, "Users retrieved successfully", result)
}

// CreateUser handles creating a user with any role (Admin only)
// @Summary Create user
// @Description Create an account with the given role (Admin only)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateUserInput true "User data"
// @Success 201 {object} response.Response{data=models.UserResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /users/ [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var input services.CreateUserInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.CreateUser(c.UserContext(), &input)
	if err != nil {
		return response.FromError(c, err, "Failed to create user")
	}

	return response.Created(c, "User created successfully", user.ToResponse())
}

// GetProfile returns the caller's own account
// @Summary Get current user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Failure 401 {object} response.Response
// @Router /users/me/ [get]
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}

	user, err := h.userService.GetUser(c.UserContext(), actor.ID, actor)
	if err != nil {
		return response.FromError(c, err, "Failed to get profile")
	}

	return response.Success(c, "Profile retrieved successfully", user.ToResponse())
}

// GetUser handles getting a user by ID (self, or Staff and Admin)
// @Summary Get user by ID
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id}/ [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := pathID(c, "user")
	if err != nil {
		return response.FromError(c, err, "Invalid user ID")
	}
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}

	user, err := h.userService.GetUser(c.UserContext(), id, actor)
	if err != nil {
		return response.FromError(c, err, "Failed to get user")
	}

	return response.Success(c, "User retrieved successfully", user.ToResponse())
}

// UpdateUser handles full and partial user updates
// @Summary Update user
// @Description Update one's own profile, or any user as Admin. Only Admin may change role or is_active.
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param body body services.UpdateUserInput true "Fields to change"
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id}/ [patch]
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := pathID(c, "user")
	if err != nil {
		return response.FromError(c, err, "Invalid user ID")
	}
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}

	var input services.UpdateUserInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	user, err := h.userService.UpdateUser(c.UserContext(), id, actor, &input)
	if err != nil {
		return response.FromError(c, err, "Failed to update user")
	}

	return response.Success(c, "User updated successfully", user.ToResponse())
}

// DeleteUser handles deleting a user (Admin only)
// @Summary Delete user
// @Tags Users
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /users/{id}/ [delete]
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := pathID(c, "user")
	if err != nil {
		return response.FromError(c, err, "Invalid user ID")
	}
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}

	if err := h.userService.DeleteUser(c.UserContext(), id, actor); err != nil {
		return response.FromError(c, err, "Failed to delete user")
	}

	return response.NoContent(c)
}
