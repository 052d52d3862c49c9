package handlers

import (
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// BookHandler handles catalog endpoints
type BookHandler struct {
	catalogService *services.CatalogService
}

// NewBookHandler creates a new book handler
func NewBookHandler(catalogService *services.CatalogService) *BookHandler {
	return &BookHandler{catalogService: catalogService}
}

// ListBooks handles catalog search
// @Summary List books
// @Description Search, order, filter and page through the catalog
// @Tags Books
// @Produce json
// @Param search query string false "Title, author or ISBN substring"
// @Param ordering query string false "title, author or isbn; prefix with - for descending"
// @Param available query bool false "Only books with (true) or without (false) copies on the shelf"
// @Param page query int false "Page number" default(1)
// @Param page_size query int false "Items per page" default(10)
// @Success 200 {object} response.Response{data=pagination.Response}
// @Failure 400 {object} response.Response
// @Router /books/ [get]
func (h *BookHandler) ListBooks(c *fiber.Ctx) error {
	available, err := parseBoolQuery(c, "available")
	if err != nil {
		return response.FromError(c, err, "Invalid query")
	}

	result, err := h.catalogService.List(c.UserContext(), services.BookQuery{
		Search:    c.Query("search"),
		Ordering:  c.Query("ordering"),
		Available: available,
		Params:    pagination.GetParams(c),
	})
	if err != nil {
		return response.InternalServerError(c, "Failed to list books")
	}

	return response.Success(c, "Books retrieved successfully", result)
}

// GetBook handles getting a book by ID
// @Summary Get book
// @Tags Books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} response.Response{data=models.BookResponse}
// @Failure 404 {object} response.Response
// @Router /books/{id}/ [get]
func (h *BookHandler) GetBook(c *fiber.Ctx) error {
	id, err := pathID(c, "book")
	if err != nil {
		return response.FromError(c, err, "Invalid book ID")
	}

	book, err := h.catalogService.Get(c.UserContext(), id)
	if err != nil {
		return response.FromError(c, err, "Failed to get book")
	}

	return response.Success(c, "Book retrieved successfully", book.ToResponse())
}

// CreateBook handles adding a book (Staff and Admin)
// @Summary Create book
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.BookInput true "Book data"
// @Success 201 {object} response.Response{data=models.BookResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /books/ [post]
func (h *BookHandler) CreateBook(c *fiber.Ctx) error {
	var input services.BookInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	book, err := h.catalogService.Create(c.UserContext(), &input)
	if err != nil {
		return response.FromError(c, err, "Failed to create book")
	}

	return response.Created(c, "Book created successfully", book.ToResponse())
}

// ReplaceBook handles a full update; title, author and isbn are required
// @Summary Replace book
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body services.BookInput true "Book data"
// @Success 200 {object} response.Response{data=models.BookResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/ [put]
func (h *BookHandler) ReplaceBook(c *fiber.Ctx) error {
	return h.update(c, true)
}

// UpdateBook handles a partial update
// @Summary Update book
// @Tags Books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param body body services.BookInput true "Fields to change"
// @Success 200 {object} response.Response{data=models.BookResponse}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/ [patch]
func (h *BookHandler) UpdateBook(c *fiber.Ctx) error {
	return h.update(c, false)
}

func (h *BookHandler) update(c *fiber.Ctx, full bool) error {
	id, err := pathID(c, "book")
	if err != nil {
		return response.FromError(c, err, "Invalid book ID")
	}

	var input services.BookInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if full && (input.Title == nil || input.Author == nil || input.ISBN == nil) {
		return response.FromError(c, domain.Invalid("Title, author and isbn are required"), "Invalid request body")
	}

	book, err := h.catalogService.Update(c.UserContext(), id, &input)
	if err != nil {
		return response.FromError(c, err, "Failed to update book")
	}

	return response.Success(c, "Book updated successfully", book.ToResponse())
}

// DeleteBook handles removing a book with no copies on loan
// @Summary Delete book
// @Tags Books
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 204
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /books/{id}/ [delete]
func (h *BookHandler) DeleteBook(c *fiber.Ctx) error {
	id, err := pathID(c, "book")
	if err != nil {
		return response.FromError(c, err, "Invalid book ID")
	}

	if err := h.catalogService.Delete(c.UserContext(), id); err != nil {
		return response.FromError(c, err, "Failed to delete book")
	}

	return response.NoContent(c)
}
