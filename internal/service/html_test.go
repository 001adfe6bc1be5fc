package service

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"stack_tracker/internal/models"
	"stack_tracker/internal/pkg/auth"
	"stack_tracker/internal/pkg/security"
)

// noRedirectGet performs a GET or form POST without following redirects.
func noRedirectRequest(t *testing.T, ts *httptest.Server, method, path, form string, cookies []*http.Cookie) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(form))
	require.NoError(t, err)
	if form != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	_, err = io.Copy(io.Discard, resp.Body)
	require.NoError(t, err)

	return resp
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestRegisterWorkflow_Gomock(t *testing.T) {
	mockDB, mockMail, tokens, testServer := newTestService(t)

	t.Run("mismatched passwords rejected before any storage call", func(t *testing.T) {
		resp := noRedirectRequest(t, testServer, http.MethodPost, "/register",
			"email=new%40example.com&password=hunter22&confirm=hunter23", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/register?flash=Passwords+must+match.", resp.Header.Get("Location"))
	})

	t.Run("duplicate email leaves the account untouched", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "taken@example.com").
			Return(&models.User{Email: "taken@example.com", PasswordHash: "$stored"}, nil)

		resp := noRedirectRequest(t, testServer, http.MethodPost, "/register",
			"email=taken%40example.com&password=hunter22&confirm=hunter22", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/register?flash=A+user+with+that+email+already+exists", resp.Header.Get("Location"))
		assert.Nil(t, sessionCookie(t, resp))
	})

	t.Run("success stores a hash, mails a parsable link, starts a session", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "new@example.com").
			Return(nil, sql.ErrNoRows)
		mockDB.EXPECT().CreateUser(gomock.Any(), gomock.AssignableToTypeOf(&models.User{})).
			DoAndReturn(func(ctx context.Context, user *models.User) error {
				assert.Equal(t, "new@example.com", user.Email)
				assert.NotEqual(t, "hunter22", user.PasswordHash)
				assert.NoError(t, security.CheckPassword(user.PasswordHash, "hunter22"))
				assert.True(t, user.Authenticated)
				assert.False(t, user.Confirmed)
				return nil
			})
		mockMail.EXPECT().SendConfirmation(gomock.Any(), "new@example.com", gomock.Any()).
			DoAndReturn(func(ctx context.Context, to, link string) error {
				require.True(t, strings.HasPrefix(link, "http://stack.test/confirm/"))
				email, err := tokens.ParseConfirmation(strings.TrimPrefix(link, "http://stack.test/confirm/"))
				require.NoError(t, err)
				assert.Equal(t, "new@example.com", email)
				return nil
			})

		resp := noRedirectRequest(t, testServer, http.MethodPost, "/register",
			"email=new%40example.com&password=hunter22&confirm=hunter22", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/unconfirmed?flash=A+confirmation+email+has+been+sent.", resp.Header.Get("Location"))

		cookie := sessionCookie(t, resp)
		require.NotNil(t, cookie)
		email, err := tokens.ParseSession(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, "new@example.com", email)
	})

	t.Run("delivery failure still yields an authenticated session", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "luckless@example.com").
			Return(nil, sql.ErrNoRows)
		mockDB.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Return(nil)
		mockMail.EXPECT().SendConfirmation(gomock.Any(), "luckless@example.com", gomock.Any()).
			Return(assert.AnError)

		resp := noRedirectRequest(t, testServer, http.MethodPost, "/register",
			"email=luckless%40example.com&password=hunter22&confirm=hunter22", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Location"), "/unconfirmed?flash=")
		assert.Contains(t, resp.Header.Get("Location"), "could+not+be+sent")
		assert.NotNil(t, sessionCookie(t, resp))
	})
}

func TestLoginWorkflow_Gomock(t *testing.T) {
	mockDB, _, tokens, testServer := newTestService(t)

	hash, err := security.HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "ghost@example.com").
			Return(nil, sql.ErrNoRows)
		unknownResp := noRedirectRequest(t, testServer, http.MethodPost, "/login",
			"email=ghost%40example.com&password=whatever", nil)

		mockDB.EXPECT().GetUser(gomock.Any(), "real@example.com").
			Return(&models.User{Email: "real@example.com", PasswordHash: hash}, nil)
		wrongResp := noRedirectRequest(t, testServer, http.MethodPost, "/login",
			"email=real%40example.com&password=wrong", nil)

		assert.Equal(t, http.StatusSeeOther, unknownResp.StatusCode)
		assert.Equal(t, unknownResp.StatusCode, wrongResp.StatusCode)
		assert.Equal(t, "/login?flash=Incorrect+username+or+password", unknownResp.Header.Get("Location"))
		assert.Equal(t, unknownResp.Header.Get("Location"), wrongResp.Header.Get("Location"))
	})

	t.Run("valid credentials start a session and flag the account", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "real@example.com").
			Return(&models.User{Email: "real@example.com", PasswordHash: hash, Confirmed: true}, nil)
		mockDB.EXPECT().UpdateUser(gomock.Any(), gomock.AssignableToTypeOf(&models.User{})).
			DoAndReturn(func(ctx context.Context, user *models.User) error {
				assert.True(t, user.Authenticated)
				return nil
			})

		resp := noRedirectRequest(t, testServer, http.MethodPost, "/login",
			"email=real%40example.com&password=correct+horse", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/home", resp.Header.Get("Location"))

		cookie := sessionCookie(t, resp)
		require.NotNil(t, cookie)
		email, err := tokens.ParseSession(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, "real@example.com", email)
	})

	t.Run("missing password is its own message", func(t *testing.T) {
		resp := noRedirectRequest(t, testServer, http.MethodPost, "/login",
			"email=real%40example.com", nil)
		assert.Equal(t, "/login?flash=Email+and+password+are+required", resp.Header.Get("Location"))
	})
}

func TestConfirmLink_Gomock(t *testing.T) {
	mockDB, _, tokens, testServer := newTestService(t)

	expiredFlash := "/login?flash=The+confirmation+link+is+invalid+or+has+expired."

	t.Run("expired token rejected despite a valid signature", func(t *testing.T) {
		claims := auth.ConfirmationClaims{
			Email:   "slow@example.com",
			Purpose: testSalt,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/confirm/"+token, "", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, expiredFlash, resp.Header.Get("Location"))
	})

	t.Run("session token never doubles as a confirmation link", func(t *testing.T) {
		session, err := tokens.GenerateSession("sneaky@example.com")
		require.NoError(t, err)

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/confirm/"+session, "", nil)
		assert.Equal(t, expiredFlash, resp.Header.Get("Location"))
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		resp := noRedirectRequest(t, testServer, http.MethodGet, "/confirm/not-a-token", "", nil)
		assert.Equal(t, expiredFlash, resp.Header.Get("Location"))
	})

	t.Run("valid token confirms the account once", func(t *testing.T) {
		token, err := tokens.GenerateConfirmation("fresh@example.com")
		require.NoError(t, err)

		mockDB.EXPECT().GetUser(gomock.Any(), "fresh@example.com").
			Return(&models.User{Email: "fresh@example.com", Authenticated: true}, nil)
		mockDB.EXPECT().UpdateUser(gomock.Any(), gomock.AssignableToTypeOf(&models.User{})).
			DoAndReturn(func(ctx context.Context, user *models.User) error {
				assert.True(t, user.Confirmed)
				return nil
			})

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/confirm/"+token, "", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/home?flash=You+have+confirmed+your+account.+Thanks%21", resp.Header.Get("Location"))
	})

	t.Run("already confirmed account is a no-op", func(t *testing.T) {
		token, err := tokens.GenerateConfirmation("done@example.com")
		require.NoError(t, err)

		mockDB.EXPECT().GetUser(gomock.Any(), "done@example.com").
			Return(&models.User{Email: "done@example.com", Confirmed: true}, nil)

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/confirm/"+token, "", nil)
		assert.Equal(t, "/home?flash=Account+already+confirmed.", resp.Header.Get("Location"))
	})
}

func TestGuardedPages_Gomock(t *testing.T) {
	mockDB, _, tokens, testServer := newTestService(t)

	newSession := func(t *testing.T, email string) *http.Cookie {
		token, err := tokens.GenerateSession(email)
		require.NoError(t, err)
		return &http.Cookie{Name: auth.SessionCookieName, Value: token}
	}

	t.Run("inventory without a session redirects to login", func(t *testing.T) {
		resp := noRedirectRequest(t, testServer, http.MethodGet, "/inventory", "", nil)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("inventory with an unconfirmed session redirects to unconfirmed", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "new@example.com").
			Return(&models.User{Email: "new@example.com", Authenticated: true}, nil)

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/inventory", "",
			[]*http.Cookie{newSession(t, "new@example.com")})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/unconfirmed", resp.Header.Get("Location"))
	})

	t.Run("administrator is a 404 for a confirmed non-admin", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "user@example.com").
			Return(&models.User{Email: "user@example.com", Authenticated: true, Confirmed: true}, nil)

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/administrator", "",
			[]*http.Cookie{newSession(t, "user@example.com")})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("administrator renders for an admin", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "admin@example.com").
			Return(&models.User{Email: "admin@example.com", Authenticated: true, Confirmed: true, IsAdmin: true}, nil)
		mockDB.EXPECT().ListCoins(gomock.Any(), gomock.Nil()).
			Return([]models.Coin{*testCoin()}, nil)

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/administrator", "",
			[]*http.Cookie{newSession(t, "admin@example.com")})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("session of a logged-out account resolves to no user", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "gone@example.com").
			Return(&models.User{Email: "gone@example.com", Authenticated: false, Confirmed: true}, nil)

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/inventory", "",
			[]*http.Cookie{newSession(t, "gone@example.com")})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login", resp.Header.Get("Location"))
	})

	t.Run("logout clears the server-side flag and the cookie", func(t *testing.T) {
		mockDB.EXPECT().GetUser(gomock.Any(), "real@example.com").
			Return(&models.User{Email: "real@example.com", Authenticated: true, Confirmed: true}, nil).
			Times(2)
		mockDB.EXPECT().UpdateUser(gomock.Any(), gomock.AssignableToTypeOf(&models.User{})).
			DoAndReturn(func(ctx context.Context, user *models.User) error {
				assert.False(t, user.Authenticated)
				return nil
			})

		resp := noRedirectRequest(t, testServer, http.MethodGet, "/logout", "",
			[]*http.Cookie{newSession(t, "real@example.com")})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/login?flash=You+have+been+logged+out", resp.Header.Get("Location"))

		cookie := sessionCookie(t, resp)
		require.NotNil(t, cookie)
		assert.Empty(t, cookie.Value)
	})
}
