package routes

import (
	"time"

	"libraryhub/internal/adapters/http/handlers"
	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"

	_ "libraryhub/docs" // Swagger docs
)

// Handlers groups every HTTP handler the routes need
type Handlers struct {
	Health    *handlers.HealthHandler
	Auth      *handlers.AuthHandler
	User      *handlers.UserHandler
	Book      *handlers.BookHandler
	Checkout  *handlers.CheckoutHandler
	Dashboard *handlers.DashboardHandler
	Page      *handlers.PageHandler
}

// Deps are the shared pieces route setup wires into middleware
type Deps struct {
	Config   *config.Config
	Handlers Handlers
	Sessions *session.Store
	Users    middleware.UserLoader
	Gatherer prometheus.Gatherer
}

// Setup configures all routes for the application
func Setup(app *fiber.App, d Deps) {
	h := d.Handlers

	// Health, metrics & docs
	app.Get("/health", h.Health.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(d.Gatherer)))
	app.Get("/swagger/*", swagger.HandlerDefault)

	setupAPIRoutes(app, h, d.Config)
	setupPageRoutes(app, h.Page, d.Sessions, d.Users, d.Config)
}

// setupAPIRoutes configures the JSON API
func setupAPIRoutes(app *fiber.App, h Handlers, cfg *config.Config) {
	auth := middleware.AuthMiddleware(cfg)

	api := app.Group("/api")
	api.Get("/", h.Health.Root)
	api.Get("/dashboard", auth, h.Dashboard.GetMyDashboard)

	// Token routes (public, rate limited)
	tokenRoutes := api.Group("/token", middleware.AuthRateLimiter(cfg.RateLimit.Auth), middleware.NoCacheHeaders())
	tokenRoutes.Post("/", h.Auth.ObtainToken)
	tokenRoutes.Post("/refresh", h.Auth.RefreshToken)
	tokenRoutes.Post("/revoke", h.Auth.Revoke)
	api.Post("/register", middleware.AuthRateLimiter(cfg.RateLimit.Auth), h.Auth.Register)

	// Catalog: reads are public, writes are staff only
	books := app.Group("/books")
	setupBookRoutes(books, h.Book, auth)

	// Users. Fixed paths go before /:id.
	users := app.Group("/users", auth)
	setupUserRoutes(users, h.User, h.Checkout)

	// Lending ledger (authenticated users)
	checkout := app.Group("/bookcheckout", auth, middleware.NoCacheHeaders())
	setupCheckoutRoutes(checkout, h.Checkout)
}

// setupBookRoutes configures catalog routes
func setupBookRoutes(router fiber.Router, handler *handlers.BookHandler, auth fiber.Handler) {
	cache := middleware.CacheControl(30 * time.Second)
	router.Get("/", cache, handler.ListBooks)
	router.Get("/:id", cache, handler.GetBook)

	staff := []fiber.Handler{auth, middleware.StaffOnly()}
	router.Post("/", append(staff, handler.CreateBook)...)
	router.Put("/:id", append(staff, handler.ReplaceBook)...)
	router.Patch("/:id", append(staff, handler.UpdateBook)...)
	router.Delete("/:id", append(staff, handler.DeleteBook)...)
}

// setupUserRoutes configures user routes (authenticated)
func setupUserRoutes(router fiber.Router, handler *handlers.UserHandler, checkout *handlers.CheckoutHandler) {
	router.Get("/borrowing_history", middleware.PrivateCacheHeaders(0), checkout.BorrowingHistory)
	router.Get("/me", handler.GetProfile)

	router.Get("/", middleware.RequireCapability(domain.CapViewUsers), handler.ListUsers)
	router.Post("/", middleware.AdminOnly(), handler.CreateUser)
	router.Get("/:id", handler.GetUser)
	router.Put("/:id", handler.UpdateUser)
	router.Patch("/:id", handler.UpdateUser)
	router.Delete("/:id", middleware.AdminOnly(), handler.DeleteUser)
}

// setupCheckoutRoutes configures ledger routes
func setupCheckoutRoutes(router fiber.Router, handler *handlers.CheckoutHandler) {
	router.Get("/", handler.ListEntries)
	router.Post("/", middleware.RequireCapability(domain.CapBorrow), handler.Checkout)
	router.Post("/return", middleware.RequireCapability(domain.CapBorrow), handler.Return)
	router.Get("/is-returned", handler.IsReturned)
}

// setupPageRoutes configures the server-rendered pages. Every page runs
// behind the session loader and CSRF protection.
func setupPageRoutes(app *fiber.App, handler *handlers.PageHandler, sessions *session.Store, users middleware.UserLoader, cfg *config.Config) {
	common := []fiber.Handler{middleware.SessionAuth(sessions, users), middleware.CSRF(cfg)}
	page := func(chain ...fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, common...), chain...)
	}
	login := middleware.RequireLogin()

	app.Get("/", page(handler.Home)...)
	app.Get("/home", page(handler.Home)...)

	app.Get("/login", page(handler.LoginForm)...)
	app.Post("/login", page(middleware.AuthRateLimiter(cfg.RateLimit.Auth), handler.Login)...)
	app.Get("/logout", page(login, handler.LogoutForm)...)
	app.Post("/logout", page(handler.Logout)...)
	app.Get("/register", page(handler.RegisterForm)...)
	app.Post("/register", page(middleware.AuthRateLimiter(cfg.RateLimit.Auth), handler.Register)...)

	app.Get("/dashboard", page(login, handler.Dashboard)...)
	app.Get("/book", page(handler.Books)...)
	app.Get("/book/:id", page(handler.BookDetail)...)

	app.Get("/borrowings", page(login, handler.Borrowings)...)
	app.Get("/user/borrowing_history", page(login, handler.BorrowingHistory)...)
	app.Get("/user/list", page(middleware.RequirePageCapability(sessions, domain.CapManageUsers), handler.UserList)...)

	app.Get("/borrow_book", page(login, handler.BorrowForm)...)
	app.Post("/borrow_book", page(login, handler.Borrow)...)
	app.Get("/return_book", page(login, handler.ReturnForm)...)
	app.Post("/return_book", page(login, handler.Return)...)
	app.Get("/check_book_status", page(login, handler.StatusForm)...)
	app.Post("/check_book_status", page(login, handler.CheckStatus)...)
}
