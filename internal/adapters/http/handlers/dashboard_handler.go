package handlers

import (
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	dashboardService *services.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GetMyDashboard returns the dashboard for the caller's role
// @Summary Get my dashboard
// @Description Loan counts and penalties for the caller; staff also get catalog and circulation totals
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=services.Dashboard}
// @Failure 401 {object} response.Response
// @Router /api/dashboard/ [get]
func (h *DashboardHandler) GetMyDashboard(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}

	dashboard, err := h.dashboardService.ForUser(c.UserContext(), actor)
	if err != nil {
		return response.InternalServerError(c, "Failed to get dashboard")
	}

	return response.Success(c, "Dashboard retrieved successfully", dashboard)
}
