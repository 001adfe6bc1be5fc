// Session resolution middleware and the guard chain gating protected routes.
package auth

import (
	"context"
	"net/http"

	"stack_tracker/internal/models"
)

// SessionCookieName is the cookie the session token travels in.
const SessionCookieName = "session"

// contextKey is a custom type used for storing values in a context without risking collisions.
type contextKey string

// ContextUser is the key used to store and retrieve the session user from the request context.
const ContextUser contextKey = "contextUser"

// UserLoader fetches an account by email during session resolution.
// The storage layer satisfies it.
type UserLoader interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
}

// Decision is the typed outcome of a guard: either the request may proceed,
// or it is redirected, or it is answered with a 404 so the route stays
// indistinguishable from a missing one.
type Decision struct {
	Allow      bool
	RedirectTo string
	NotFound   bool
}

// Guard inspects the session user (nil when unauthenticated) and decides
// whether the request may reach the handler.
type Guard func(user *models.User) Decision

// RequireAuth denies requests without an authenticated session, redirecting
// them to the login page.
func RequireAuth(user *models.User) Decision {
	if user == nil || !user.Authenticated {
		return Decision{RedirectTo: "/login"}
	}
	return Decision{Allow: true}
}

// RequireConfirmed sends authenticated-but-unconfirmed accounts to the
// unconfirmed notice page.
func RequireConfirmed(user *models.User) Decision {
	if user == nil || !user.Confirmed {
		return Decision{RedirectTo: "/unconfirmed"}
	}
	return Decision{Allow: true}
}

// RequireAdmin answers non-admin requests with a 404 rather than a 403 so
// the existence of the route leaks nothing.
func RequireAdmin(user *models.User) Decision {
	if user == nil || !user.IsAdmin {
		return Decision{NotFound: true}
	}
	return Decision{Allow: true}
}

// SessionMiddleware resolves the session cookie into a user and stores it
// in the request context. Requests without a valid session proceed with no
// user; the guards decide what that means per route. A session token whose
// account has logged out server-side resolves to no user.
func SessionMiddleware(tokens *Tokens, users UserLoader) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil {
				h.ServeHTTP(w, r)
				return
			}

			email, err := tokens.ParseSession(cookie.Value)
			if err != nil {
				h.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUser(r.Context(), email)
			if err != nil || !user.Authenticated {
				h.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ContextUser, user)
			h.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}

// UserFromContext returns the session user, or nil when the request carries
// no authenticated session.
func UserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(ContextUser).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// Gate evaluates guards in order before dispatching to the wrapped handler.
// The first denying guard wins; NotFound denials are rendered by the
// provided notFound handler so gated routes share the application's 404 page.
func Gate(notFound http.Handler, guards ...Guard) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			for _, guard := range guards {
				decision := guard(user)
				if decision.Allow {
					continue
				}
				if decision.NotFound {
					notFound.ServeHTTP(w, r)
					return
				}
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
				return
			}
			h.ServeHTTP(w, r)
		}
		return http.HandlerFunc(fn)
	}
}
