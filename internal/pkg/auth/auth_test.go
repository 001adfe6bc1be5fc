package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stack_tracker/internal/models"
)

func TestGuards(t *testing.T) {
	authenticated := &models.User{Email: "a@b.c", Authenticated: true}
	confirmed := &models.User{Email: "a@b.c", Authenticated: true, Confirmed: true}
	admin := &models.User{Email: "a@b.c", Authenticated: true, Confirmed: true, IsAdmin: true}
	loggedOut := &models.User{Email: "a@b.c"}

	testCases := []struct {
		name     string
		guard    Guard
		user     *models.User
		expected Decision
	}{
		{"auth denies nil user", RequireAuth, nil, Decision{RedirectTo: "/login"}},
		{"auth denies logged-out user", RequireAuth, loggedOut, Decision{RedirectTo: "/login"}},
		{"auth allows session", RequireAuth, authenticated, Decision{Allow: true}},
		{"confirmed denies unconfirmed", RequireConfirmed, authenticated, Decision{RedirectTo: "/unconfirmed"}},
		{"confirmed allows confirmed", RequireConfirmed, confirmed, Decision{Allow: true}},
		{"admin hides the route from non-admins", RequireAdmin, confirmed, Decision{NotFound: true}},
		{"admin hides the route from nil users", RequireAdmin, nil, Decision{NotFound: true}},
		{"admin allows admins", RequireAdmin, admin, Decision{Allow: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.guard(tc.user))
		})
	}
}

func TestGate(t *testing.T) {
	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	page := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withUser := func(r *http.Request, user *models.User) *http.Request {
		if user == nil {
			return r
		}
		return r.WithContext(context.WithValue(r.Context(), ContextUser, user))
	}

	gate := Gate(notFound, RequireAuth, RequireConfirmed, RequireAdmin)(page)

	testCases := []struct {
		name             string
		user             *models.User
		expectedStatus   int
		expectedLocation string
	}{
		{"no session redirects to login", nil, http.StatusSeeOther, "/login"},
		{"unconfirmed redirects to notice", &models.User{Authenticated: true}, http.StatusSeeOther, "/unconfirmed"},
		{"non-admin gets the 404 page", &models.User{Authenticated: true, Confirmed: true}, http.StatusNotFound, ""},
		{"admin passes every guard", &models.User{Authenticated: true, Confirmed: true, IsAdmin: true}, http.StatusOK, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := withUser(httptest.NewRequest(http.MethodGet, "/administrator", nil), tc.user)

			gate.ServeHTTP(rec, req)
			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, tc.expectedLocation, rec.Header().Get("Location"))
		})
	}
}

type staticUserLoader struct {
	user *models.User
}

func (l *staticUserLoader) GetUser(ctx context.Context, email string) (*models.User, error) {
	return l.user, nil
}

func TestSessionMiddleware(t *testing.T) {
	tokens := NewTokens("secret", "confirm-salt")
	token, err := tokens.GenerateSession("user@example.com")
	require.NoError(t, err)

	capture := func(target **models.User) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*target = UserFromContext(r.Context())
		})
	}

	t.Run("valid session resolves the user", func(t *testing.T) {
		var seen *models.User
		loader := &staticUserLoader{user: &models.User{Email: "user@example.com", Authenticated: true}}
		handler := SessionMiddleware(tokens, loader)(capture(&seen))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		require.NotNil(t, seen)
		assert.Equal(t, "user@example.com", seen.Email)
	})

	t.Run("logged-out account resolves to no user", func(t *testing.T) {
		var seen *models.User
		loader := &staticUserLoader{user: &models.User{Email: "user@example.com"}}
		handler := SessionMiddleware(tokens, loader)(capture(&seen))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Nil(t, seen)
	})

	t.Run("no cookie proceeds anonymously", func(t *testing.T) {
		var seen *models.User
		loader := &staticUserLoader{user: &models.User{Email: "user@example.com", Authenticated: true}}
		handler := SessionMiddleware(tokens, loader)(capture(&seen))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Nil(t, seen)
	})

	t.Run("tampered cookie proceeds anonymously", func(t *testing.T) {
		var seen *models.User
		loader := &staticUserLoader{user: &models.User{Email: "user@example.com", Authenticated: true}}
		handler := SessionMiddleware(tokens, loader)(capture(&seen))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token + "x"})
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Nil(t, seen)
	})
}
