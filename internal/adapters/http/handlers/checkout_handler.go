package handlers

import (
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CheckoutHandler handles the lending ledger endpoints
type CheckoutHandler struct {
	ledgerService *services.LedgerService
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(ledgerService *services.LedgerService) *CheckoutHandler {
	return &CheckoutHandler{ledgerService: ledgerService}
}

// BookRequest names the book to check out or return
type BookRequest struct {
	Book uint `json:"book" example:"1"`
}

// Checkout lends a copy to the caller
// @Summary Check out a book
// @Tags Checkout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BookRequest true "Book to check out"
// @Success 201 {object} response.Response{data=models.TransactionResponse}
// @Failure 400 {object} response.Response "No copies available, or already checked out"
// @Failure 404 {object} response.Response
// @Router /bookcheckout/ [post]
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}
	bookID, err := bookIDFromBody(c)
	if err != nil {
		return response.FromError(c, err, "Invalid request body")
	}

	entry, err := h.ledgerService.Checkout(c.UserContext(), actor.ID, bookID)
	if err != nil {
		return response.FromError(c, err, "Failed to check out book")
	}

	return response.Created(c, "Book checked out successfully", entry.ToResponse())
}

// Return closes the caller's open loan of a book
// @Summary Return a book
// @Tags Checkout
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BookRequest true "Book to return"
// @Success 200 {object} response.Response{data=models.TransactionResponse}
// @Failure 400 {object} response.Response "Not checked out"
// @Failure 404 {object} response.Response
// @Router /bookcheckout/return/ [post]
func (h *CheckoutHandler) Return(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}
	bookID, err := bookIDFromBody(c)
	if err != nil {
		return response.FromError(c, err, "Invalid request body")
	}

	entry, err := h.ledgerService.Return(c.UserContext(), actor.ID, bookID)
	if err != nil {
		return response.FromError(c, err, "Failed to return book")
	}

	return response.Success(c, "Book returned successfully", entry.ToResponse())
}

// IsReturned reports whether the caller's latest loan of a book is closed
// @Summary Loan status
// @Tags Checkout
// @Produce json
// @Security BearerAuth
// @Param book query int true "Book ID"
// @Success 200 {object} response.Response{data=services.LoanStatus}
// @Failure 400 {object} response.Response "Never checked out"
// @Failure 404 {object} response.Response
// @Router /bookcheckout/is-returned/ [get]
func (h *CheckoutHandler) IsReturned(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}
	bookID, err := parseID(c.Query("book"), "book")
	if err != nil {
		return response.FromError(c, err, "Invalid query")
	}

	status, err := h.ledgerService.Status(c.UserContext(), actor.ID, bookID)
	if err != nil {
		return response.FromError(c, err, "Failed to get loan status")
	}

	return response.Success(c, status.Message, status)
}

// ListEntries lists ledger entries: the caller's own, or everyone's for staff
// @Summary List ledger entries
// @Tags Checkout
// @Produce json
// @Security BearerAuth
// @Param user query int false "Borrower filter (staff only)"
// @Param open query bool false "Only open loans"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(10)
// @Success 200 {object} response.Response{data=pagination.Response}
// @Router /bookcheckout/ [get]
func (h *CheckoutHandler) ListEntries(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}

	filter := repositories.TransactionFilter{UserID: actor.ID}
	if actor.Role.Can(domain.CapViewAllLoans) {
		filter.UserID = 0
		if raw := c.Query("user"); raw != "" {
			if filter.UserID, err = parseID(raw, "user"); err != nil {
				return response.FromError(c, err, "Invalid query")
			}
		}
	}
	open, err := parseBoolQuery(c, "open")
	if err != nil {
		return response.FromError(c, err, "Invalid query")
	}
	filter.OpenOnly = open != nil && *open

	result, err := h.ledgerService.List(c.UserContext(), filter, pagination.GetParams(c))
	if err != nil {
		return response.InternalServerError(c, "Failed to list transactions")
	}

	return response.Success(c, "Transactions retrieved successfully", result)
}

// BorrowingHistory lists the caller's loans, newest first
// @Summary Borrowing history
// @Tags Checkout
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(10)
// @Success 200 {object} response.Response{data=pagination.Response}
// @Router /users/borrowing_history/ [get]
func (h *CheckoutHandler) BorrowingHistory(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return response.FromError(c, err, "Unauthorized")
	}

	result, err := h.ledgerService.History(c.UserContext(), actor.ID, pagination.GetParams(c))
	if err != nil {
		return response.InternalServerError(c, "Failed to get borrowing history")
	}

	return response.Success(c, "Borrowing history retrieved successfully", result)
}
