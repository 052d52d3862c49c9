package middleware

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// Session keys
const (
	SessionUserKey = "user_id"
	flashKey       = "_flash"

	// LocalUser holds the signed-in *models.User on page routes
	LocalUser = "user"
	// LocalCSRF holds the CSRF token rendered into page forms
	LocalCSRF = "csrf"
)

// UserLoader loads the account behind a page session
type UserLoader interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// NewSessionStore creates the cookie-backed session store for pages
func NewSessionStore(cfg *config.Config) *session.Store {
	return session.New(session.Config{
		Expiration:     time.Duration(cfg.Session.ExpiryHours) * time.Hour,
		KeyLookup:      "cookie:libraryhub_session",
		CookieDomain:   cfg.Cookie.Domain,
		CookieSecure:   cfg.Cookie.Secure,
		CookieHTTPOnly: true,
		CookieSameSite: cfg.Cookie.SameSite,
	})
}

// CSRF protects page forms. Tokens are read from the _csrf form field.
func CSRF(cfg *config.Config) fiber.Handler {
	return csrf.New(csrf.Config{
		KeyLookup:      "form:_csrf",
		CookieName:     "libraryhub_csrf",
		CookieSameSite: cfg.Cookie.SameSite,
		CookieSecure:   cfg.Cookie.Secure,
		CookieHTTPOnly: true,
		Expiration:     1 * time.Hour,
		ContextKey:     LocalCSRF,
	})
}

// SessionAuth loads the signed-in user for page routes. Anonymous visitors
// pass through; a session pointing at a missing or inactive account is
// cleared.
func SessionAuth(store *session.Store, users UserLoader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return err
		}

		id, ok := sess.Get(SessionUserKey).(uint)
		if !ok || id == 0 {
			return c.Next()
		}

		user, err := users.GetByID(c.UserContext(), id)
		if err != nil || !user.IsActive {
			if err != nil {
				slog.DebugContext(c.UserContext(), "dropping stale session", slog.Uint64("user_id", uint64(id)))
			}
			sess.Delete(SessionUserKey)
			if err := sess.Save(); err != nil {
				return err
			}
			return c.Next()
		}

		setIdentity(c, user.ID, user.Username, user.Role)
		c.Locals(LocalUser, user)
		return c.Next()
	}
}

// RequireLogin redirects anonymous visitors to the login page
func RequireLogin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentActor(c); !ok {
			return c.Redirect("/login/?next=" + url.QueryEscape(c.OriginalURL()))
		}
		return c.Next()
	}
}

// RequirePageCapability sends signed-in users without capability back to
// their dashboard with a flash message
func RequirePageCapability(store *session.Store, capability domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := CurrentActor(c)
		if !ok {
			return c.Redirect("/login/?next=" + url.QueryEscape(c.OriginalURL()))
		}
		if !actor.Role.Can(capability) {
			if err := Flash(c, store, domain.ErrPermissionDenied.Error()); err != nil {
				return err
			}
			return c.Redirect("/dashboard/")
		}
		return c.Next()
	}
}

// CurrentUser returns the signed-in page user, if any
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(LocalUser).(*models.User)
	return user
}

// Flash stores a one-shot message for the next rendered page
func Flash(c *fiber.Ctx, store *session.Store, message string) error {
	sess, err := store.Get(c)
	if err != nil {
		return err
	}
	messages, _ := sess.Get(flashKey).([]string)
	sess.Set(flashKey, append(messages, message))
	return sess.Save()
}

// PopFlashes returns and clears pending flash messages
func PopFlashes(c *fiber.Ctx, store *session.Store) ([]string, error) {
	sess, err := store.Get(c)
	if err != nil {
		return nil, err
	}
	messages, _ := sess.Get(flashKey).([]string)
	if len(messages) == 0 {
		return nil, nil
	}
	sess.Delete(flashKey)
	return messages, sess.Save()
}
