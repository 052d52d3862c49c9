package handlers

import (
	"encoding/json"
	"strconv"
	"strings"

	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// parseID parses a positive numeric id; field names the value in the error
func parseID(raw, field string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.Invalid("A valid " + field + " id is required")
	}
	return uint(id), nil
}

// pathID reads the :id route parameter
func pathID(c *fiber.Ctx, field string) (uint, error) {
	return parseID(c.Params("id"), field)
}

// bookRef accepts the book id as a JSON number or string
type bookRef struct {
	Book json.RawMessage `json:"book"`
}

// bookIDFromBody reads "book" from a JSON or form body
func bookIDFromBody(c *fiber.Ctx) (uint, error) {
	raw := c.FormValue("book")
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationJSON) {
		var ref bookRef
		if err := c.BodyParser(&ref); err != nil {
			return 0, domain.Invalid("Invalid request body")
		}
		raw = strings.Trim(string(ref.Book), `"`)
	}
	return parseID(raw, "book")
}

// currentActor returns the caller set by the auth middleware
func currentActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return domain.Actor{}, domain.ErrTokenInvalid
	}
	return actor, nil
}

// parseBoolQuery reads an optional true/false query parameter
func parseBoolQuery(c *fiber.Ctx, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, domain.Invalid("Query parameter " + key + " must be true or false")
	}
	return &v, nil
}
