// Server-rendered pages. These are thin shells over the same app-layer
// operations the JSON API uses; flash messages travel as a query parameter
// on redirects.
package service

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"stack_tracker/internal/app"
	"stack_tracker/internal/models"
	"stack_tracker/internal/pkg/auth"

	"github.com/go-chi/chi/v5"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// pageData is the context handed to every page template.
type pageData struct {
	Flash string
	User  *models.User
	Coins []models.CoinRecord
	Items []models.ItemRecord
}

// render executes the named page template, answering 500 when it fails.
func (handlers *handlers) render(res http.ResponseWriter, name string, data pageData) {
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplates.ExecuteTemplate(res, name, data); err != nil {
		handlers.log.Sugar().Errorf("Failed to render template %s: %s", name, err)
	}
}

// redirectFlash redirects to the target page carrying a flash message.
func redirectFlash(res http.ResponseWriter, req *http.Request, target, flash string) {
	if flash != "" {
		target += "?flash=" + url.QueryEscape(flash)
	}
	http.Redirect(res, req, target, http.StatusSeeOther)
}

// setSessionCookie installs the session token as an HTTP-only cookie.
func setSessionCookie(res http.ResponseWriter, token string) {
	http.SetCookie(res, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(auth.SessionTokenExp),
	})
}

// clearSessionCookie removes the session cookie.
func clearSessionCookie(res http.ResponseWriter) {
	http.SetCookie(res, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (handlers *handlers) pageContext(req *http.Request) pageData {
	return pageData{
		Flash: req.URL.Query().Get("flash"),
		User:  auth.UserFromContext(req.Context()),
	}
}

// indexPage serves / and /home.
func (handlers *handlers) indexPage(res http.ResponseWriter, req *http.Request) {
	handlers.render(res, "index.html", handlers.pageContext(req))
}

// loginPage serves the login form.
func (handlers *handlers) loginPage(res http.ResponseWriter, req *http.Request) {
	handlers.render(res, "login.html", handlers.pageContext(req))
}

// loginSubmit processes a login attempt. Unknown email and wrong password
// answer with the same message.
func (handlers *handlers) loginSubmit(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	if err := req.ParseForm(); err != nil {
		redirectFlash(res, req, "/login", "Incorrect username or password")
		return
	}

	token, err := handlers.app.Login(ctx, req.PostFormValue("email"), req.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, app.ErrMissingEmailOrPassword) {
			redirectFlash(res, req, "/login", "Email and password are required")
			return
		}
		if errors.Is(err, app.ErrBadCredentials) {
			redirectFlash(res, req, "/login", "Incorrect username or password")
			return
		}
		redirectFlash(res, req, "/login", "Something went wrong; please try again")
		return
	}

	setSessionCookie(res, token)
	http.Redirect(res, req, "/home", http.StatusSeeOther)
}

// registerPage serves the registration form.
func (handlers *handlers) registerPage(res http.ResponseWriter, req *http.Request) {
	handlers.render(res, "register.html", handlers.pageContext(req))
}

// registerSubmit processes a registration attempt. A successful
// registration starts an authenticated (but unconfirmed) session and sends
// the confirmation email.
func (handlers *handlers) registerSubmit(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	if err := req.ParseForm(); err != nil {
		redirectFlash(res, req, "/register", "Email and password are required")
		return
	}

	email := req.PostFormValue("email")
	password := req.PostFormValue("password")
	if password != req.PostFormValue("confirm") {
		redirectFlash(res, req, "/register", "Passwords must match.")
		return
	}

	token, err := handlers.app.Register(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMissingEmailOrPassword):
			redirectFlash(res, req, "/register", "Email and password are required")
			return
		case errors.Is(err, app.ErrUserExists):
			redirectFlash(res, req, "/register", "A user with that email already exists")
			return
		case errors.Is(err, app.ErrConfirmationNotSent):
			// The account exists and the session is valid; only delivery failed.
			setSessionCookie(res, token)
			redirectFlash(res, req, "/unconfirmed", "Your account was created but the confirmation email could not be sent. Use resend to try again.")
			return
		default:
			redirectFlash(res, req, "/register", "Something went wrong; please try again")
			return
		}
	}

	setSessionCookie(res, token)
	redirectFlash(res, req, "/unconfirmed", "A confirmation email has been sent.")
}

// logoutHandler ends the session both server-side and in the browser.
func (handlers *handlers) logoutHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	user := auth.UserFromContext(req.Context())
	if user != nil {
		if err := handlers.app.Logout(ctx, user.Email); err != nil {
			handlers.log.Sugar().Errorf("Failed to log out %s: %s", user.Email, err)
		}
	}

	clearSessionCookie(res)
	redirectFlash(res, req, "/login", "You have been logged out")
}

// confirmHandler validates an emailed confirmation token. Invalid and
// expired tokens produce the same flash message.
func (handlers *handlers) confirmHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	alreadyConfirmed, err := handlers.app.Confirm(ctx, chi.URLParam(req, "token"))
	if err != nil {
		redirectFlash(res, req, "/login", "The confirmation link is invalid or has expired.")
		return
	}

	if alreadyConfirmed {
		redirectFlash(res, req, "/home", "Account already confirmed.")
		return
	}
	redirectFlash(res, req, "/home", "You have confirmed your account. Thanks!")
}

// unconfirmedPage reminds an authenticated-but-unconfirmed account to
// confirm. Confirmed accounts are sent home.
func (handlers *handlers) unconfirmedPage(res http.ResponseWriter, req *http.Request) {
	user := auth.UserFromContext(req.Context())
	if user != nil && user.Confirmed {
		http.Redirect(res, req, "/home", http.StatusSeeOther)
		return
	}
	handlers.render(res, "unconfirmed.html", handlers.pageContext(req))
}

// resendHandler re-sends the confirmation email. Only available to an
// authenticated-but-unconfirmed session.
func (handlers *handlers) resendHandler(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	user := auth.UserFromContext(req.Context())
	if user == nil || user.Confirmed {
		http.Redirect(res, req, "/home", http.StatusSeeOther)
		return
	}

	if err := handlers.app.ResendConfirmation(ctx, user.Email); err != nil {
		redirectFlash(res, req, "/unconfirmed", "Could not send the confirmation email; please try again later.")
		return
	}
	redirectFlash(res, req, "/unconfirmed", "A new confirmation email has been sent.")
}

// inventoryPage lists every recorded item.
func (handlers *handlers) inventoryPage(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	items, err := handlers.app.ListItems(ctx, nil)
	if err != nil {
		redirectFlash(res, req, "/home", "Could not load the inventory")
		return
	}

	data := handlers.pageContext(req)
	data.Items = make([]models.ItemRecord, 0, len(items))
	for i := range items {
		data.Items = append(data.Items, models.NewItemRecord(&items[i]))
	}
	handlers.render(res, "inventory.html", data)
}

// administratorPage lists the coin catalogue for admins.
func (handlers *handlers) administratorPage(res http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), requestTimeout)
	defer cancel()

	coins, err := handlers.app.ListCoins(ctx, nil)
	if err != nil {
		redirectFlash(res, req, "/home", "Could not load the coin catalogue")
		return
	}

	data := handlers.pageContext(req)
	data.Coins = make([]models.CoinRecord, 0, len(coins))
	for i := range coins {
		data.Coins = append(data.Coins, models.NewCoinRecord(&coins[i]))
	}
	handlers.render(res, "administrator.html", data)
}

// notFoundHandler renders the shared 404 page. Admin-gated routes answer
// with it as well so they stay indistinguishable from missing ones.
func (handlers *handlers) notFoundHandler(res http.ResponseWriter, req *http.Request) {
	res.Header().Set("Content-Type", "text/html; charset=utf-8")
	res.WriteHeader(http.StatusNotFound)
	if err := pageTemplates.ExecuteTemplate(res, "notfound.html", pageData{}); err != nil {
		handlers.log.Sugar().Errorf("Failed to render template notfound.html: %s", err)
	}
}
