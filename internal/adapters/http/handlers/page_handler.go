package handlers

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/core/services"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// PageHandler serves the server-rendered pages
type PageHandler struct {
	sessions  *session.Store
	auth      *services.AuthService
	users     *services.UserService
	catalog   *services.CatalogService
	ledger    *services.LedgerService
	dashboard *services.DashboardService
	logger    *slog.Logger
}

// NewPageHandler creates a new page handler
func NewPageHandler(
	sessions *session.Store,
	auth *services.AuthService,
	users *services.UserService,
	catalog *services.CatalogService,
	ledger *services.LedgerService,
	dashboard *services.DashboardService,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		sessions:  sessions,
		auth:      auth,
		users:     users,
		catalog:   catalog,
		ledger:    ledger,
		dashboard: dashboard,
		logger:    logger,
	}
}

// render fills in the layout fields and renders a page
func (h *PageHandler) render(c *fiber.Ctx, name, title string, data fiber.Map) error {
	flashes, err := middleware.PopFlashes(c, h.sessions)
	if err != nil {
		return err
	}
	if data == nil {
		data = fiber.Map{}
	}
	data["Title"] = title
	data["User"] = middleware.CurrentUser(c)
	data["CSRF"] = c.Locals(middleware.LocalCSRF)
	data["Flashes"] = flashes
	return c.Render(name, data)
}

// failure turns an error into a message for the page; unexpected errors are
// logged and hidden
func (h *PageHandler) failure(c *fiber.Ctx, err error) string {
	if response.StatusFor(err) == fiber.StatusInternalServerError {
		h.logger.ErrorContext(c.UserContext(), "page request failed",
			slog.String("path", c.Path()),
			slog.String("error", err.Error()),
		)
	}
	return domain.Message(err, "Something went wrong, please try again")
}

func (h *PageHandler) redirectWithFlash(c *fiber.Ctx, to, message string) error {
	if err := middleware.Flash(c, h.sessions, message); err != nil {
		return err
	}
	return c.Redirect(to)
}

// safeNext keeps post-login redirects on this site
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/dashboard/"
	}
	return next
}

// pagerQuery carries filters across pager links
func pagerQuery(values url.Values) string {
	for k, v := range values {
		if len(v) == 0 || v[0] == "" {
			values.Del(k)
		}
	}
	if len(values) == 0 {
		return ""
	}
	return values.Encode() + "&"
}

// ============================================================
// Home and session
// ============================================================

// Home renders the landing page
func (h *PageHandler) Home(c *fiber.Ctx) error {
	policy := h.ledger.Policy()
	return h.render(c, "home", "Home", fiber.Map{
		"LoanPeriodDays": policy.LoanPeriodDays,
		"PenaltyPerDay":  policy.PenaltyPerDay.StringFixed(2),
	})
}

// LoginForm renders the login page
func (h *PageHandler) LoginForm(c *fiber.Ctx) error {
	if _, ok := middleware.CurrentActor(c); ok {
		return c.Redirect("/dashboard/")
	}
	return h.render(c, "login", "Log in", fiber.Map{"Next": c.Query("next")})
}

// Login checks credentials and starts a page session
func (h *PageHandler) Login(c *fiber.Ctx) error {
	email := strings.TrimSpace(c.FormValue("email"))
	next := c.FormValue("next")

	user, err := h.auth.Authenticate(c.UserContext(), email, c.FormValue("password"))
	if err != nil {
		return h.render(c, "login", "Log in", fiber.Map{
			"Email": email,
			"Next":  next,
			"Error": h.failure(c, err),
		})
	}

	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	// New session id on privilege change
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(middleware.SessionUserKey, user.ID)
	if err := sess.Save(); err != nil {
		return err
	}

	h.logger.InfoContext(c.UserContext(), "page login", slog.String("username", user.Username))
	return c.Redirect(safeNext(next))
}

// LogoutForm asks for confirmation; the session ends only on POST
func (h *PageHandler) LogoutForm(c *fiber.Ctx) error {
	return h.render(c, "logout", "Log out", nil)
}

// Logout ends the page session
func (h *PageHandler) Logout(c *fiber.Ctx) error {
	sess, err := h.sessions.Get(c)
	if err != nil {
		return err
	}
	if err := sess.Destroy(); err != nil {
		return err
	}
	return c.Redirect("/login/")
}

// RegisterForm renders the registration page
func (h *PageHandler) RegisterForm(c *fiber.Ctx) error {
	return h.render(c, "register", "Register", fiber.Map{"Form": services.RegisterInput{}})
}

// Register creates a member account and sends the visitor to log in
func (h *PageHandler) Register(c *fiber.Ctx) error {
	var input services.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return h.render(c, "register", "Register", fiber.Map{
			"Form":  input,
			"Error": "Invalid form submission",
		})
	}

	if _, err := h.auth.Register(c.UserContext(), &input); err != nil {
		input.Password, input.ConfirmPassword = "", ""
		return h.render(c, "register", "Register", fiber.Map{
			"Form":  input,
			"Error": h.failure(c, err),
		})
	}

	return h.redirectWithFlash(c, "/login/", "Registration successful. Please log in.")
}

// ============================================================
// Dashboard and catalog
// ============================================================

// Dashboard renders the signed-in user's dashboard
func (h *PageHandler) Dashboard(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Redirect("/login/")
	}

	dashboard, err := h.dashboard.ForUser(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return h.render(c, "dashboard", "Dashboard", fiber.Map{"Dashboard": dashboard})
}

// Books renders the searchable catalog
func (h *PageHandler) Books(c *fiber.Ctx) error {
	search := strings.TrimSpace(c.Query("search"))
	ordering := c.Query("ordering", "title")

	page, err := h.catalog.List(c.UserContext(), services.BookQuery{
		Search:   search,
		Ordering: ordering,
		Params:   pagination.GetParams(c),
	})
	if err != nil {
		return err
	}

	return h.render(c, "books", "Books", fiber.Map{
		"Search":   search,
		"Ordering": ordering,
		"Page":     page,
		"Query":    pagerQuery(url.Values{"search": {search}, "ordering": {ordering}}),
	})
}

// BookDetail renders one book
func (h *PageHandler) BookDetail(c *fiber.Ctx) error {
	id, err := pathID(c, "book")
	if err != nil {
		return h.redirectWithFlash(c, "/book/", h.failure(c, err))
	}

	book, err := h.catalog.Get(c.UserContext(), id)
	if err != nil {
		return h.redirectWithFlash(c, "/book/", h.failure(c, err))
	}
	return h.render(c, "book_detail", book.Title, fiber.Map{"Book": book.ToResponse()})
}

// ============================================================
// Borrowings
// ============================================================

// Borrowings lists loans: everyone's for staff, one's own otherwise
func (h *PageHandler) Borrowings(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Redirect("/login/")
	}

	filter := repositories.TransactionFilter{UserID: actor.ID}
	staff := actor.Role.Can(domain.CapViewAllLoans)
	if staff {
		filter.UserID = 0
	}

	page, err := h.ledger.List(c.UserContext(), filter, pagination.GetParams(c))
	if err != nil {
		return err
	}
	return h.render(c, "transactions", "Borrowings", fiber.Map{
		"Page":         page,
		"ShowBorrower": staff,
	})
}

// BorrowingHistory lists the signed-in user's loans
func (h *PageHandler) BorrowingHistory(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Redirect("/login/")
	}

	page, err := h.ledger.History(c.UserContext(), actor.ID, pagination.GetParams(c))
	if err != nil {
		return err
	}
	return h.render(c, "transactions", "My borrowing history", fiber.Map{"Page": page})
}

// UserList lists accounts (Admin)
func (h *PageHandler) UserList(c *fiber.Ctx) error {
	search := strings.TrimSpace(c.Query("search"))

	page, err := h.users.ListUsers(c.UserContext(), search, pagination.GetParams(c))
	if err != nil {
		return err
	}
	return h.render(c, "user_list", "Users", fiber.Map{
		"Search": search,
		"Page":   page,
		"Query":  pagerQuery(url.Values{"search": {search}}),
	})
}

// ============================================================
// Borrow, return, status forms
// ============================================================

type bookForm struct {
	name   string
	title  string
	action string
	submit string
}

var (
	borrowForm = bookForm{name: "book_form", title: "Borrow a book", action: "/borrow_book/", submit: "Borrow"}
	returnForm = bookForm{name: "book_form", title: "Return a book", action: "/return_book/", submit: "Return"}
	statusForm = bookForm{name: "book_form", title: "Check book status", action: "/check_book_status/", submit: "Check"}
)

func (h *PageHandler) renderBookForm(c *fiber.Ctx, form bookForm, selected uint, extra fiber.Map) error {
	books, err := h.catalog.All(c.UserContext())
	if err != nil {
		return err
	}
	data := fiber.Map{
		"Books":    books,
		"Selected": selected,
		"Action":   form.action,
		"Submit":   form.submit,
	}
	for k, v := range extra {
		data[k] = v
	}
	return h.render(c, form.name, form.title, data)
}

// BorrowForm renders the checkout form
func (h *PageHandler) BorrowForm(c *fiber.Ctx) error {
	return h.renderBookForm(c, borrowForm, 0, nil)
}

// Borrow checks a book out to the signed-in user
func (h *PageHandler) Borrow(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Redirect("/login/")
	}
	bookID, err := parseID(c.FormValue("book"), "book")
	if err != nil {
		return h.renderBookForm(c, borrowForm, 0, fiber.Map{"Error": h.failure(c, err)})
	}

	entry, err := h.ledger.Checkout(c.UserContext(), actor.ID, bookID)
	if err != nil {
		return h.renderBookForm(c, borrowForm, bookID, fiber.Map{"Error": h.failure(c, err)})
	}

	return h.redirectWithFlash(c, "/user/borrowing_history/",
		fmt.Sprintf("You borrowed %q. It is due on %s.", entry.Book.Title, domain.FormatDate(entry.DueDate)))
}

// ReturnForm renders the return form
func (h *PageHandler) ReturnForm(c *fiber.Ctx) error {
	return h.renderBookForm(c, returnForm, 0, nil)
}

// Return closes the signed-in user's loan of a book
func (h *PageHandler) Return(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Redirect("/login/")
	}
	bookID, err := parseID(c.FormValue("book"), "book")
	if err != nil {
		return h.renderBookForm(c, returnForm, 0, fiber.Map{"Error": h.failure(c, err)})
	}

	entry, err := h.ledger.Return(c.UserContext(), actor.ID, bookID)
	if err != nil {
		return h.renderBookForm(c, returnForm, bookID, fiber.Map{"Error": h.failure(c, err)})
	}

	message := fmt.Sprintf("You returned %q. Thank you!", entry.Book.Title)
	if entry.Penalty.IsPositive() {
		message = fmt.Sprintf("You returned %q %d days late. A penalty of $%s has been charged.",
			entry.Book.Title, domain.DaysLate(entry.DueDate, *entry.ReturnDate), entry.Penalty.StringFixed(2))
	}
	return h.redirectWithFlash(c, "/user/borrowing_history/", message)
}

// StatusForm renders the status query form
func (h *PageHandler) StatusForm(c *fiber.Ctx) error {
	return h.renderBookForm(c, statusForm, 0, nil)
}

// CheckStatus reports whether the signed-in user's latest loan of a book is closed
func (h *PageHandler) CheckStatus(c *fiber.Ctx) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.Redirect("/login/")
	}
	bookID, err := parseID(c.FormValue("book"), "book")
	if err != nil {
		return h.renderBookForm(c, statusForm, 0, fiber.Map{"Error": h.failure(c, err)})
	}

	status, err := h.ledger.Status(c.UserContext(), actor.ID, bookID)
	if err != nil {
		return h.renderBookForm(c, statusForm, bookID, fiber.Map{"Error": h.failure(c, err)})
	}
	return h.renderBookForm(c, statusForm, bookID, fiber.Map{"Status": status})
}
