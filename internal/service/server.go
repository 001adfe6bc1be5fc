package service

import (
	"net/http"

	"stack_tracker/internal/app"
	"stack_tracker/internal/pkg/auth"
	"stack_tracker/internal/pkg/logger"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// authRateLimit throttles credential-bearing endpoints: sustained requests
// per second and the allowed burst.
const (
	authRateLimit = 5
	authRateBurst = 10
)

// Service encapsulates the HTTP server configuration, including the application's business logic,
// HTTP handlers, the token manager for session resolution, the server's run address, and a logger.
type Service struct {
	handlers    *handlers
	app         *app.App
	tokens      *auth.Tokens
	runAddress  string
	authLimiter *rate.Limiter
	log         *logger.Logger
}

// NewService creates and initializes a new Service instance.
// It sets up the handlers using the provided application and logger,
// and configures the server's run address.
func NewService(app *app.App, tokens *auth.Tokens, runAddress string, l *logger.Logger) *Service {
	handlers := newHandlers(app, l)
	return &Service{
		handlers:    handlers,
		app:         app,
		tokens:      tokens,
		runAddress:  runAddress,
		authLimiter: rate.NewLimiter(rate.Limit(authRateLimit), authRateBurst),
		log:         l,
	}
}

// throttle rejects requests beyond the limiter's budget with a 429.
func throttle(limiter *rate.Limiter) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				writeMessage(w, "ERROR: too many requests", http.StatusTooManyRequests)
				return
			}
			h.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}

// NewRouter sets up and returns a new chi.Router instance with the necessary middleware and routes.
// Request logging and session resolution apply globally; the guard chain
// gates the protected HTML routes.
func (service *Service) NewRouter() chi.Router {
	notFound := http.HandlerFunc(service.handlers.notFoundHandler)

	router := chi.NewRouter()
	router.Use(service.log.WithLogging())
	router.Use(auth.SessionMiddleware(service.tokens, service.app))

	// JSON API for the coin and item resources.
	router.Route("/api", func(r chi.Router) {
		r.Get("/coin", service.handlers.listCoinsHandler)
		r.Post("/coin", service.handlers.createCoinHandler)
		r.Put("/coin", service.handlers.updateCoinHandler)
		r.Delete("/coin", service.handlers.deleteCoinHandler)

		r.Get("/item", service.handlers.listItemsHandler)
		r.Post("/item", service.handlers.createItemHandler)
		r.Put("/item", service.handlers.updateItemHandler)
		r.Delete("/item", service.handlers.deleteItemHandler)
	})

	// Public pages.
	router.Get("/", service.handlers.indexPage)
	router.Get("/home", service.handlers.indexPage)
	router.Get("/confirm/{token}", service.handlers.confirmHandler)

	// Credential-bearing endpoints share one rate limiter.
	router.Group(func(r chi.Router) {
		r.Use(throttle(service.authLimiter))
		r.Get("/login", service.handlers.loginPage)
		r.Post("/login", service.handlers.loginSubmit)
		r.Get("/register", service.handlers.registerPage)
		r.Post("/register", service.handlers.registerSubmit)
	})

	// Pages that require an authenticated session.
	router.Group(func(r chi.Router) {
		r.Use(auth.Gate(notFound, auth.RequireAuth))
		r.Get("/logout", service.handlers.logoutHandler)
		r.Get("/unconfirmed", service.handlers.unconfirmedPage)
		r.Get("/resend", service.handlers.resendHandler)
	})

	// Pages that additionally require a confirmed account.
	router.Group(func(r chi.Router) {
		r.Use(auth.Gate(notFound, auth.RequireAuth, auth.RequireConfirmed))
		r.Get("/inventory", service.handlers.inventoryPage)
	})

	// The admin page denies non-admins with a 404, not a 403.
	router.Group(func(r chi.Router) {
		r.Use(auth.Gate(notFound, auth.RequireAuth, auth.RequireConfirmed, auth.RequireAdmin))
		r.Get("/administrator", service.handlers.administratorPage)
	})

	router.NotFound(service.handlers.notFoundHandler)
	return router
}
